// Package template implements the strict expression language described in
// §4.3: dotted/bracketed member access over flows/sources, string
// concatenation, inline conditionals, filter chains, and comparison
// operators, evaluated against a tagged variant value model rather than
// Go's native dynamic typing.
package template

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is the tagged variant every expression evaluates to. Exactly one of
// the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	F    float64
	S    string
	List []Value
	Map  map[string]Value
}

func Null() Value           { return Value{Kind: KindNull} }
func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value     { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func String(s string) Value { return Value{Kind: KindString, S: s} }
func List(items []Value) Value {
	return Value{Kind: KindList, List: items}
}
func Map(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// Truthy follows the usual scripting-language rules: false, 0, 0.0, "",
// null, an empty list, and an empty map are falsy; everything else is
// truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	case KindList:
		return len(v.List) > 0
	case KindMap:
		return len(v.Map) > 0
	}
	return false
}

// TypeName returns a short name used in error messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// AsString renders a Value the way it is substituted into a surrounding
// template string: strings pass through verbatim, other scalars use their
// natural textual form, and containers fall back to a JSON-ish rendering so
// the result is at least inspectable.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'f', -1, 64)
	case KindString:
		return v.S
	case KindList, KindMap:
		return toJSON(v)
	}
	return ""
}

// ToGo converts a Value back into the plain Go representation used
// throughout the rest of the runner (map[string]any, []any, and the usual
// scalar types).
func (v Value) ToGo() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.B
	case KindInt:
		return v.I
	case KindFloat:
		return v.F
	case KindString:
		return v.S
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.ToGo()
		}
		return out
	}
	return nil
}

// FromGo lifts a plain Go value (as produced by YAML/JSON decoding, or by a
// connector's result data) into the tagged variant.
func FromGo(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(val)
	case int:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case string:
		return String(val)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromGo(item)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = FromGo(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", val))
	}
}

// Get performs strict member access on a map-kinded Value. ok is false when
// v is not a map or the key is absent; callers turn that into a
// TemplateError with the accumulated path.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Null(), false
	}
	val, ok := v.Map[key]
	return val, ok
}

// Index performs strict bracketed access on a list-kinded Value.
func (v Value) Index(i int) (Value, bool) {
	if v.Kind != KindList {
		return Null(), false
	}
	if i < 0 || i >= len(v.List) {
		return Null(), false
	}
	return v.List[i], true
}

func toJSON(v Value) string {
	var b strings.Builder
	writeJSON(&b, v)
	return b.String()
}

func writeJSON(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.B))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.I, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(v.F, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(v.S))
	case KindList:
		b.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(b, item)
		}
		b.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeJSON(b, v.Map[k])
		}
		b.WriteByte('}')
	}
}
