package template

import (
	"errors"
	"fmt"
)

// node is an evaluable AST fragment. Evaluation is against an evalCtx that
// carries the flows/sources stores; member and index nodes carry their own
// textual path, used to report exactly which reference was unresolved.
type node interface {
	eval(ctx *evalCtx) (Value, error)
}

type evalCtx struct {
	flows   Value
	sources Value
}

type litNode struct{ val Value }

func (n litNode) eval(ctx *evalCtx) (Value, error) { return n.val, nil }

type identNode struct{ name string }

func (n identNode) eval(ctx *evalCtx) (Value, error) {
	switch n.name {
	case "flows":
		return ctx.flows, nil
	case "sources":
		return ctx.sources, nil
	}
	return Null(), &pathError{path: n.name, msg: fmt.Sprintf("undefined identifier %q", n.name)}
}

type memberNode struct {
	base node
	key  string
	path string
}

func (n memberNode) eval(ctx *evalCtx) (Value, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return Null(), err
	}
	val, ok := base.Get(n.key)
	if !ok {
		return Null(), &pathError{path: n.path, msg: fmt.Sprintf("unresolved reference %q", n.path)}
	}
	return val, nil
}

type indexNode struct {
	base  node
	index node
	path  string
}

func (n indexNode) eval(ctx *evalCtx) (Value, error) {
	base, err := n.base.eval(ctx)
	if err != nil {
		return Null(), err
	}
	idxVal, err := n.index.eval(ctx)
	if err != nil {
		return Null(), err
	}
	switch base.Kind {
	case KindList:
		if idxVal.Kind != KindInt {
			return Null(), &pathError{path: n.path, msg: "list index must be an integer"}
		}
		val, ok := base.Index(int(idxVal.I))
		if !ok {
			return Null(), &pathError{path: n.path, msg: fmt.Sprintf("list index out of range at %q", n.path)}
		}
		return val, nil
	case KindMap:
		if idxVal.Kind != KindString {
			return Null(), &pathError{path: n.path, msg: "map key must be a string"}
		}
		val, ok := base.Get(idxVal.S)
		if !ok {
			return Null(), &pathError{path: n.path, msg: fmt.Sprintf("unresolved reference %q", n.path)}
		}
		return val, nil
	}
	return Null(), &pathError{path: n.path, msg: fmt.Sprintf("%q is not indexable (%s)", n.path, base.TypeName())}
}

type concatNode struct{ left, right node }

func (n concatNode) eval(ctx *evalCtx) (Value, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return Null(), err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return Null(), err
	}
	if l.Kind != KindString || r.Kind != KindString {
		return Null(), &pathError{msg: fmt.Sprintf("cannot concatenate %s and %s with '+'", l.TypeName(), r.TypeName())}
	}
	return String(l.S + r.S), nil
}

type binOpNode struct {
	op          string
	left, right node
}

func (n binOpNode) eval(ctx *evalCtx) (Value, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return Null(), err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return Null(), err
	}
	switch n.op {
	case "==":
		return Bool(valuesEqual(l, r)), nil
	case "!=":
		return Bool(!valuesEqual(l, r)), nil
	}
	cmp, err := compareValues(l, r)
	if err != nil {
		return Null(), &pathError{msg: err.Error()}
	}
	switch n.op {
	case "<":
		return Bool(cmp < 0), nil
	case "<=":
		return Bool(cmp <= 0), nil
	case ">":
		return Bool(cmp > 0), nil
	case ">=":
		return Bool(cmp >= 0), nil
	}
	return Null(), fmt.Errorf("unknown operator %q", n.op)
}

type condNode struct {
	then, cond, els node
}

func (n condNode) eval(ctx *evalCtx) (Value, error) {
	c, err := n.cond.eval(ctx)
	if err != nil {
		return Null(), err
	}
	if c.Truthy() {
		return n.then.eval(ctx)
	}
	return n.els.eval(ctx)
}

type filterNode struct {
	base node
	name string
	args []node
}

func (n filterNode) eval(ctx *evalCtx) (Value, error) {
	if n.name == "default" {
		return n.evalDefault(ctx)
	}
	base, err := n.base.eval(ctx)
	if err != nil {
		return Null(), err
	}
	fn, ok := filters[n.name]
	if !ok {
		return Null(), &pathError{msg: fmt.Sprintf("unknown filter %q", n.name)}
	}
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(ctx)
		if err != nil {
			return Null(), err
		}
		args[i] = v
	}
	out, err := fn(base, args)
	if err != nil {
		return Null(), &pathError{msg: err.Error()}
	}
	return out, nil
}

// evalDefault intercepts base's unresolved-reference *pathError before it
// propagates, so `{{ flows.x.missing | default("none") }}` falls back
// instead of raising. An explicitly null base still falls back too.
func (n filterNode) evalDefault(ctx *evalCtx) (Value, error) {
	if len(n.args) != 1 {
		return Null(), &pathError{msg: "default: expected exactly one argument"}
	}
	fallback, err := n.args[0].eval(ctx)
	if err != nil {
		return Null(), err
	}
	base, err := n.base.eval(ctx)
	if err != nil {
		var perr *pathError
		if errors.As(err, &perr) {
			return fallback, nil
		}
		return Null(), err
	}
	if base.Kind == KindNull {
		return fallback, nil
	}
	return base, nil
}

// pathError is the internal representation raised during evaluation; Render
// wraps it into a pkg/errors.TemplateError whose Path is the unresolved
// path, or the whole template expression when the error carries no path.
type pathError struct {
	path string
	msg  string
}

func (e *pathError) Error() string { return e.msg }

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		// Allow cross-numeric comparison between int and float.
		if (a.Kind == KindInt || a.Kind == KindFloat) && (b.Kind == KindInt || b.Kind == KindFloat) {
			return numericValue(a) == numericValue(b)
		}
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindInt:
		return a.I == b.I
	case KindFloat:
		return a.F == b.F
	case KindString:
		return a.S == b.S
	default:
		return a.AsString() == b.AsString()
	}
}

func numericValue(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

func compareValues(a, b Value) (int, error) {
	if (a.Kind == KindInt || a.Kind == KindFloat) && (b.Kind == KindInt || b.Kind == KindFloat) {
		x, y := numericValue(a), numericValue(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s and %s", a.TypeName(), b.TypeName())
}

// parser is a small Pratt-style recursive-descent parser over the token
// stream produced by the lexer, implementing (lowest to highest
// precedence): inline conditional, concatenation, comparison, filter chain,
// member/index access, primary.
type parser struct {
	tokens []token
	pos    int
}

func parseExpr(src string) (node, error) {
	lex := newLexer(src)
	tokens, err := lex.tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return n, nil
}

func (p *parser) peek() token  { return p.tokens[p.pos] }
func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.peek().kind != k {
		return token{}, fmt.Errorf("expected %s, got %q", what, p.peek().text)
	}
	return p.advance(), nil
}

func (p *parser) parseTernary() (node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokKeywordIf {
		p.advance()
		cond, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokKeywordElse, "'else'"); err != nil {
			return nil, err
		}
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return condNode{then: left, cond: cond, els: els}, nil
	}
	return left, nil
}

func (p *parser) parseConcat() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPlus {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = concatNode{left: left, right: right}
	}
	return left, nil
}

var comparisonOps = map[tokenKind]string{
	tokEq: "==", tokNe: "!=", tokLt: "<", tokLe: "<=", tokGt: ">", tokGe: ">=",
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.peek().kind]; ok {
		p.advance()
		right, err := p.parseFilterChain()
		if err != nil {
			return nil, err
		}
		return binOpNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseFilterChain() (node, error) {
	left, err := p.parseAccess()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPipe {
		p.advance()
		name, err := p.expect(tokIdent, "filter name")
		if err != nil {
			return nil, err
		}
		var args []node
		if p.peek().kind == tokLParen {
			p.advance()
			for p.peek().kind != tokRParen {
				a, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.peek().kind == tokComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
		}
		left = filterNode{base: left, name: name.text, args: args}
	}
	return left, nil
}

func (p *parser) parseAccess() (node, error) {
	left, path, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokDot:
			p.advance()
			key, err := p.expect(tokIdent, "identifier after '.'")
			if err != nil {
				return nil, err
			}
			path = path + "." + key.text
			left = memberNode{base: left, key: key.text, path: path}
		case tokLBracket:
			p.advance()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			path = path + "[...]"
			left = indexNode{base: left, index: idx, path: path}
		default:
			return left, nil
		}
	}
}

func (p *parser) parsePrimary() (node, string, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		if t.isInt {
			return litNode{val: Int(t.intVal)}, "", nil
		}
		return litNode{val: Float(t.num)}, "", nil
	case tokString:
		p.advance()
		return litNode{val: String(t.text)}, "", nil
	case tokKeywordTrue:
		p.advance()
		return litNode{val: Bool(true)}, "", nil
	case tokKeywordFalse:
		p.advance()
		return litNode{val: Bool(false)}, "", nil
	case tokKeywordNull:
		p.advance()
		return litNode{val: Null()}, "", nil
	case tokIdent:
		p.advance()
		return identNode{name: t.text}, t.text, nil
	case tokLParen:
		p.advance()
		n, err := p.parseTernary()
		if err != nil {
			return nil, "", err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, "", err
		}
		return n, "(...)", nil
	}
	return nil, "", fmt.Errorf("unexpected token %q", t.text)
}
