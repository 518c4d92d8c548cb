package template

import (
	"fmt"
	"strings"
)

type filterFunc func(base Value, args []Value) (Value, error)

// filters is the named filter table applied via the `|` pipe syntax:
// `{{ flows.a.v | upper }}`. default is handled separately by
// filterNode.evalDefault, since it needs to intercept an unresolved
// reference before it raises rather than receive an already-evaluated base.
var filters = map[string]filterFunc{
	"tojson": func(base Value, args []Value) (Value, error) {
		return String(toJSON(base)), nil
	},
	"upper": func(base Value, args []Value) (Value, error) {
		if base.Kind != KindString {
			return Null(), fmt.Errorf("upper: expected string, got %s", base.TypeName())
		}
		return String(strings.ToUpper(base.S)), nil
	},
	"lower": func(base Value, args []Value) (Value, error) {
		if base.Kind != KindString {
			return Null(), fmt.Errorf("lower: expected string, got %s", base.TypeName())
		}
		return String(strings.ToLower(base.S)), nil
	},
	"length": func(base Value, args []Value) (Value, error) {
		switch base.Kind {
		case KindString:
			return Int(int64(len(base.S))), nil
		case KindList:
			return Int(int64(len(base.List))), nil
		case KindMap:
			return Int(int64(len(base.Map))), nil
		}
		return Null(), fmt.Errorf("length: unsupported type %s", base.TypeName())
	},
	"join": func(base Value, args []Value) (Value, error) {
		if base.Kind != KindList {
			return Null(), fmt.Errorf("join: expected list, got %s", base.TypeName())
		}
		sep := ""
		if len(args) == 1 {
			if args[0].Kind != KindString {
				return Null(), fmt.Errorf("join: separator must be a string")
			}
			sep = args[0].S
		}
		parts := make([]string, len(base.List))
		for i, item := range base.List {
			parts[i] = item.AsString()
		}
		return String(strings.Join(parts, sep)), nil
	},
	"replace": func(base Value, args []Value) (Value, error) {
		if base.Kind != KindString {
			return Null(), fmt.Errorf("replace: expected string, got %s", base.TypeName())
		}
		if len(args) != 2 || args[0].Kind != KindString || args[1].Kind != KindString {
			return Null(), fmt.Errorf("replace: expected two string arguments")
		}
		return String(strings.ReplaceAll(base.S, args[0].S, args[1].S)), nil
	},
	"trim": func(base Value, args []Value) (Value, error) {
		if base.Kind != KindString {
			return Null(), fmt.Errorf("trim: expected string, got %s", base.TypeName())
		}
		return String(strings.TrimSpace(base.S)), nil
	},
}
