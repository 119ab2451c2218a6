package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the variants a Value can hold.
type ValueKind uint8

// Supported value kinds for open-ended detail and metadata maps.
const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

// Value is a tagged union over the JSON scalar and container types. Status
// details and metadata use it instead of raw interface values so the engine
// stays type-safe while preserving JSON-shaped flexibility. The zero Value is
// null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	boo  bool
	obj  map[string]Value
	arr  []Value
}

// NullValue returns the null variant.
func NullValue() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a float64.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, boo: b} }

// MapValue wraps a map of values. The input is cloned.
func MapValue(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return Value{kind: KindMap, obj: out}
}

// ListValue wraps a list of values. The input is cloned.
func ListValue(items ...Value) Value {
	out := make([]Value, len(items))
	for i, v := range items {
		out[i] = v.Clone()
	}
	return Value{kind: KindList, arr: out}
}

// ValueFromAny converts a JSON-decoded interface value into a Value. Numeric
// inputs are widened to float64. Unsupported types are rejected.
func ValueFromAny(v any) (Value, error) {
	switch typed := v.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(typed), nil
	case bool:
		return BoolValue(typed), nil
	case float64:
		return NumberValue(typed), nil
	case float32:
		return NumberValue(float64(typed)), nil
	case int:
		return NumberValue(float64(typed)), nil
	case int32:
		return NumberValue(float64(typed)), nil
	case int64:
		return NumberValue(float64(typed)), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("convert number %q: %w", typed, err)
		}
		return NumberValue(f), nil
	case map[string]any:
		out := make(map[string]Value, len(typed))
		for k, item := range typed {
			converted, err := ValueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			out[k] = converted
		}
		return Value{kind: KindMap, obj: out}, nil
	case []any:
		out := make([]Value, len(typed))
		for i, item := range typed {
			converted, err := ValueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			out[i] = converted
		}
		return Value{kind: KindList, arr: out}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Kind returns the variant discriminator.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload when the value is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload when the value is a number.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload when the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.boo, v.kind == KindBool }

// AsMap returns a cloned map payload when the value is a map.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Value, len(v.obj))
	for k, item := range v.obj {
		out[k] = item.Clone()
	}
	return out, true
}

// AsList returns a cloned list payload when the value is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.arr))
	for i, item := range v.arr {
		out[i] = item.Clone()
	}
	return out, true
}

// Interface converts the value back to plain Go types (string, float64, bool,
// map[string]any, []any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.boo
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return MapValue(v.obj)
	case KindList:
		return ListValue(v.arr...)
	default:
		return v
	}
}

// Equal reports deep value equality. Map equality ignores key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.boo == o.boo
	case KindMap:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, item := range v.obj {
			other, ok := o.obj[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i, item := range v.arr {
			if !item.Equal(o.arr[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MarshalJSON encodes the value as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boo)
	case KindMap:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]json.RawMessage, len(v.obj))
		for _, k := range keys {
			raw, err := json.Marshal(v.obj[k])
			if err != nil {
				return nil, err
			}
			out[k] = raw
		}
		return json.Marshal(out)
	case KindList:
		items := make([]json.RawMessage, len(v.arr))
		for i, item := range v.arr {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			items[i] = raw
		}
		return json.Marshal(items)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes plain JSON into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	converted, err := ValueFromAny(decoded)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

// CloneValueMap deep-copies a map of values. Nil input yields nil.
func CloneValueMap(in map[string]Value) map[string]Value {
	if in == nil {
		return nil
	}
	out := make(map[string]Value, len(in))
	for k, item := range in {
		out[k] = item.Clone()
	}
	return out
}

// ValueMapsEqual reports key/value equality of two value maps.
func ValueMapsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, item := range a {
		other, ok := b[k]
		if !ok || !item.Equal(other) {
			return false
		}
	}
	return true
}
