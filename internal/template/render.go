package template

import (
	"regexp"
	"strings"

	flowerrors "github.com/flowctl/flowctl/pkg/errors"
)

var templatePattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Context supplies the two top-level names a template expression may
// reference: flows (each step's committed named outputs, keyed by step
// name) and sources (declared source configuration, keyed by source name).
type Context struct {
	Flows   map[string]any
	Sources map[string]any
}

// Render walks v and evaluates every `{{ expr }}` template found in a
// string leaf. A string that is nothing but a single template expression
// (after trimming whitespace) yields the expression's native typed result;
// any other string is rendered by substituting the stringified result of
// each embedded expression in place. Maps and slices are walked
// recursively; all other types pass through unchanged.
//
// Render fails strict: any unresolved flows/sources reference, or any
// other evaluation error, is returned as a *pkg/errors.TemplateError naming
// the offending path.
func Render(v any, ctx Context) (any, error) {
	ec := &evalCtx{flows: FromGo(ctx.Flows), sources: FromGo(ctx.Sources)}
	return renderValue(v, ec)
}

func renderValue(v any, ec *evalCtx) (any, error) {
	switch val := v.(type) {
	case string:
		return renderString(val, ec)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := renderValue(item, ec)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, ec)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func renderString(s string, ec *evalCtx) (any, error) {
	matches := templatePattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && strings.TrimSpace(s) == s[matches[0][0]:matches[0][1]] {
		expr := s[matches[0][2]:matches[0][3]]
		val, err := evalExprString(expr, ec)
		if err != nil {
			return nil, err
		}
		return val.ToGo(), nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		expr := s[m[2]:m[3]]
		val, err := evalExprString(expr, ec)
		if err != nil {
			return nil, err
		}
		sb.WriteString(val.AsString())
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

func evalExprString(expr string, ec *evalCtx) (Value, error) {
	trimmed := strings.TrimSpace(expr)
	n, err := parseExpr(trimmed)
	if err != nil {
		return Null(), &flowerrors.TemplateError{Path: trimmed, Message: err.Error()}
	}
	val, err := n.eval(ec)
	if err != nil {
		if pe, ok := err.(*pathError); ok {
			path := pe.path
			if path == "" {
				path = trimmed
			}
			return Null(), &flowerrors.TemplateError{Path: path, Message: pe.msg}
		}
		return Null(), &flowerrors.TemplateError{Path: trimmed, Message: err.Error()}
	}
	return val, nil
}
