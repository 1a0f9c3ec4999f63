// Package mapping renames and transforms the keys of JSON values according to
// a declarative mapping specification. It is used to normalize the response
// shapes of third-party provider APIs into canonical application objects.
package mapping

import (
	"fmt"
	"sort"
	"strconv"
)

// Rule describes what happens to a single key of a JSON object.
// The concrete rules are Rename, Transform, Nested and Each.
type Rule interface {
	isRule()
}

// Spec maps source keys to the rule applied to them. Keys absent from the
// spec pass through unchanged.
type Spec map[string]Rule

// Rename writes the value under a new key name.
type Rename string

// TransformFunc converts a single value. It must not mutate its argument.
type TransformFunc func(v any) (any, error)

// Transform renames the key and replaces the value with Fn(value). An empty
// Key keeps the original name.
type Transform struct {
	Key string
	Fn  TransformFunc
}

// Nested applies a spec to the object stored under the key. The key itself
// is not renamed.
type Nested Spec

// Each applies a spec to every element of the array stored under the key.
type Each Spec

func (Rename) isRule()    {}
func (Transform) isRule() {}
func (Nested) isRule()    {}
func (Each) isRule()      {}

// MappingError reports a transform function that failed.
type MappingError struct {
	// Key is the spec key whose transform failed.
	Key string
	// Path locates the value inside the mapped document, e.g. "$.items[2].price".
	Path string
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping: transform for key %q at %s failed: %v", e.Key, e.Path, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// Map returns a new value with spec applied. The input is never modified.
// Non-object values are returned as a deep copy without applying the spec.
func Map(value any, spec Spec) (any, error) {
	return mapValue(value, spec, "$")
}

func mapValue(value any, spec Spec, path string) (any, error) {
	switch v := value.(type) {
	case *Object:
		if v == nil {
			return nil, nil
		}
		return mapObject(v, spec, path)
	case map[string]any:
		obj, err := mapObject(ObjectFromMap(v), spec, path)
		if err != nil {
			return nil, err
		}
		return obj.ToMapShallow(), nil
	default:
		return Clone(value), nil
	}
}

func mapObject(in *Object, spec Spec, path string) (*Object, error) {
	out := &Object{keys: make([]string, 0, len(in.keys)), values: make(map[string]any, len(in.keys))}

	for _, key := range in.keys {
		val := in.values[key]
		childPath := path + "." + key

		rule, ok := spec[key]
		if !ok || rule == nil {
			out.Set(key, Clone(val))
			continue
		}

		switch r := rule.(type) {
		case Rename:
			out.Set(string(r), Clone(val))

		case Transform:
			target := r.Key
			if target == "" {
				target = key
			}
			if r.Fn == nil {
				out.Set(target, Clone(val))
				continue
			}
			res, err := applyTransform(r.Fn, Clone(val))
			if err != nil {
				return nil, &MappingError{Key: key, Path: childPath, Err: err}
			}
			out.Set(target, res)

		case Nested:
			res, err := mapValue(val, Spec(r), childPath)
			if err != nil {
				return nil, err
			}
			out.Set(key, res)

		case Each:
			res, err := mapEach(val, Spec(r), childPath)
			if err != nil {
				return nil, err
			}
			out.Set(key, res)

		default:
			return nil, fmt.Errorf("mapping: unsupported rule %T for key %q", rule, key)
		}
	}

	return out, nil
}

func mapEach(value any, spec Spec, path string) (any, error) {
	arr, ok := value.([]any)
	if !ok {
		return Clone(value), nil
	}
	out := make([]any, len(arr))
	for i, el := range arr {
		mapped, err := mapValue(el, spec, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

// applyTransform runs fn and converts a panic into an error.
func applyTransform(fn TransformFunc, v any) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(v)
}

// Keys returns the source keys named by the spec, sorted.
func (s Spec) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
