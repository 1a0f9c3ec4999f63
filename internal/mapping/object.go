package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/buger/jsonparser"
)

// Object is a JSON object that remembers the order in which its keys were
// inserted. Decode produces *Object for every JSON object it meets so that
// mapped responses keep the upstream key order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ObjectFromMap builds an Object from a plain map. Keys are inserted in
// sorted order since Go maps carry no order of their own.
func ObjectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := &Object{keys: keys, values: make(map[string]any, len(m))}
	for _, k := range keys {
		o.values[k] = m[k]
	}
	return o
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position and only its value is replaced.
func (o *Object) Set(key string, v any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// ToMap converts the object, recursively, into plain maps and slices.
// Key order is lost.
func (o *Object) ToMap() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = Plain(o.values[k])
	}
	return out
}

// ToMapShallow converts only the top level into a plain map; nested values
// keep their representation.
func (o *Object) ToMapShallow() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.values[k]
	}
	return out
}

// MarshalJSON encodes the object with its keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order at every depth.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("mapping: expected JSON object, got %T", v)
	}
	*o = *obj
	return nil
}

// Decode parses a JSON document. Objects become *Object, arrays []any,
// numbers json.Number; strings, booleans and null map to their Go values.
func Decode(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("mapping: decode: invalid JSON")
	}
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("mapping: decode: %w", err)
	}
	return decodeValue(value, dataType)
}

func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.Object:
		return decodeObject(value)
	case jsonparser.Array:
		return decodeArray(value)
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, fmt.Errorf("mapping: decode string: %w", err)
		}
		return s, nil
	case jsonparser.Number:
		return json.Number(string(value)), nil
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("mapping: decode: unexpected value %q", value)
	}
}

func decodeObject(data []byte) (*Object, error) {
	obj := NewObject()
	// ObjectEach hands over keys already unescaped.
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		v, err := decodeValue(value, dataType)
		if err != nil {
			return err
		}
		obj.Set(string(key), v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(data []byte) ([]any, error) {
	out := make([]any, 0)
	var firstErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = err
			return
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			firstErr = err
			return
		}
		out = append(out, v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, fmt.Errorf("mapping: decode array: %w", err)
	}
	return out, nil
}

// Clone returns a deep copy of a JSON value. Plain maps are copied as plain
// maps; *Object values are copied with their key order.
func Clone(v any) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return (*Object)(nil)
		}
		out := &Object{keys: make([]string, len(t.keys)), values: make(map[string]any, len(t.keys))}
		copy(out.keys, t.keys)
		for k, val := range t.values {
			out.values[k] = Clone(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// Plain converts a JSON value into plain maps, slices and float64/int64
// numbers, the representation most third-party libraries expect.
func Plain(v any) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		return t.ToMap()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
