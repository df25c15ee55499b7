// Package value implements the open, JSON-shaped value type returned by
// state collectors. A Value is one of null, bool, number, string, an ordered
// list, a keyed map that remembers insertion order, or a reference to a host
// object (the page window or document) that must never be traversed.
package value

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies which case of the variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
	KindHost
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindHost:
		return "host"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Host object names accepted by Host.
const (
	HostWindow   = "window"
	HostDocument = "document"
)

// Value is an immutable tagged union. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	n      float64
	s      string
	items  []Value
	keys   []string
	fields map[string]Value
}

// Field is a single key/value pair used to build maps.
type Field struct {
	Key   string
	Value Value
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Int(n int) Value { return Value{kind: KindNumber, n: float64(n)} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Host returns a reference to a host object such as the page window.
func Host(name string) Value { return Value{kind: KindHost, s: name} }

// List returns an ordered list of the given items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Strings is a convenience for a list of string values.
func Strings(ss []string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Value{kind: KindList, items: items}
}

// Map returns a map holding fields in the order given. A repeated key
// overwrites the earlier value but keeps its original position.
func Map(fields ...Field) Value {
	v := Value{kind: KindMap, fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, ok := v.fields[f.Key]; !ok {
			v.keys = append(v.keys, f.Key)
		}
		v.fields[f.Key] = f.Value
	}
	return v
}

// HostPlaceholder is the string a host reference is replaced with when the
// value leaves the process.
func HostPlaceholder(name string) string {
	if name == "" {
		return "[Host]"
	}
	return "[" + strings.ToUpper(name[:1]) + name[1:] + "]"
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool { return v.b }
func (v Value) Number() float64 { return v.n }

// Str returns the string payload, or the host name for host references.
func (v Value) Str() string { return v.s }

// Len returns the number of list items or map entries.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.keys)
	}
	return 0
}

// Items returns a copy of the list items.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Index returns the i'th list item.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.items) {
		return Null()
	}
	return v.items[i]
}

// Keys returns the map keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	cp := make([]string, len(v.keys))
	copy(cp, v.keys)
	return cp
}

// Get looks up key in a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	f, ok := v.fields[key]
	return f, ok
}

// Fields returns the map entries in insertion order.
func (v Value) Fields() []Field {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Field, len(v.keys))
	for i, k := range v.keys {
		out[i] = Field{Key: k, Value: v.fields[k]}
	}
	return out
}

// With returns a copy of the map with key set to val.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindMap {
		return Map(F(key, val))
	}
	return Map(append(v.Fields(), F(key, val))...)
}

// Equal reports deep equality. Map comparison ignores key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString, KindHost:
		return v.s == o.s
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for k, fv := range v.fields {
			ov, ok := o.fields[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v to plain Go values: nil, bool, float64, string,
// []any and map[string]any. Host references become their placeholder.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindHost:
		return HostPlaceholder(v.s)
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.fields[k].Interface()
		}
		return out
	}
	return nil
}

// From converts plain Go data into a Value. Maps with string keys are
// ordered by key since Go maps carry no order of their own. Types that are
// not understood are rendered with fmt.
func From(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Int(t)
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		if err != nil {
			return String(fmt.Sprint(t))
		}
		return Number(f)
	case []string:
		return Strings(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = From(item)
		}
		return List(items...)
	case []Value:
		return List(t...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = F(k, From(t[k]))
		}
		return Map(fields...)
	case map[string]int:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = F(k, Int(t[k]))
		}
		return Map(fields...)
	case error:
		return String(t.Error())
	case fmt.Stringer:
		return String(t.String())
	}
	return String(fmt.Sprint(x))
}
