package dag

// findCycles runs Tarjan's strongly-connected-components algorithm over the
// dependency graph (edges point from a step to the parents it depends on)
// and returns the member set of every strongly connected component of size
// greater than one, plus any single-node self-loop.
//
// order fixes iteration order so results are deterministic across runs.
func findCycles(order []string, deps map[string]map[string]bool) [][]string {
	t := &tarjan{
		deps:    deps,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, name := range order {
		if _, visited := t.index[name]; !visited {
			t.strongConnect(name)
		}
	}

	var cycles [][]string
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			cycles = append(cycles, scc)
			continue
		}
		// A single-node SCC is only a cycle if it has a self-loop.
		n := scc[0]
		if deps[n][n] {
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

type tarjan struct {
	deps    map[string]map[string]bool
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	neighbors := make([]string, 0, len(t.deps[v]))
	for w := range t.deps[v] {
		neighbors = append(neighbors, w)
	}
	sortStrings(neighbors)

	for _, w := range neighbors {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// sortStrings is a tiny insertion sort: graphs here are small (step counts),
// so avoiding a sort.Strings import keeps this file dependency-free and the
// ordering is only needed for determinism, not performance.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
