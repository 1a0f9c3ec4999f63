package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// DefaultTransformTimeout bounds the execution of a single jq transform.
const DefaultTransformTimeout = 1 * time.Second

// ParseSpecJSON parses a JSON mapping document. See ParseSpec.
func ParseSpecJSON(data []byte) (Spec, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return Spec{}, nil
	}
	return ParseSpec(doc)
}

// ParseSpecYAML parses a YAML mapping document. See ParseSpec.
func ParseSpecYAML(data []byte) (Spec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping: parse yaml: %w", err)
	}
	if doc == nil {
		return Spec{}, nil
	}
	return ParseSpec(doc)
}

// ParseSpec builds a Spec from a decoded mapping document.
//
// Each member of the document becomes a rule:
//
//	"user_id": "id"                                   rename
//	"created": {"key": "createdAt", "transform": ".*1000"}  rename + jq transform
//	"profile": {"avatar": "avatarUrl"}                nested spec
//	"items":   [{"sku_id": "sku"}]                    spec applied to each element
//
// An object is read as a transform only when its members are "key" (a string)
// and optionally "transform" (a jq program); every other object is nested.
func ParseSpec(doc any) (Spec, error) {
	return parseSpec(doc, "$")
}

func parseSpec(doc any, path string) (Spec, error) {
	members, err := objectMembers(doc)
	if err != nil {
		return nil, fmt.Errorf("mapping: spec at %s: %w", path, err)
	}

	spec := make(Spec, len(members))
	for _, m := range members {
		rule, err := parseRule(m.value, path+"."+m.key)
		if err != nil {
			return nil, err
		}
		spec[m.key] = rule
	}
	return spec, nil
}

func parseRule(v any, path string) (Rule, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("mapping: spec at %s: rename target is empty", path)
		}
		return Rename(t), nil

	case []any:
		if len(t) != 1 {
			return nil, fmt.Errorf("mapping: spec at %s: array rule must hold exactly one spec, got %d", path, len(t))
		}
		inner, err := parseSpec(t[0], path+"[]")
		if err != nil {
			return nil, err
		}
		return Each(inner), nil

	case *Object, map[string]any:
		members, err := objectMembers(t)
		if err != nil {
			return nil, fmt.Errorf("mapping: spec at %s: %w", path, err)
		}
		if key, expr, ok := transformShape(members); ok {
			return newTransform(key, expr, path)
		}
		inner, err := parseSpec(t, path)
		if err != nil {
			return nil, err
		}
		return Nested(inner), nil

	default:
		return nil, fmt.Errorf("mapping: spec at %s: unsupported rule of type %T", path, v)
	}
}

type member struct {
	key   string
	value any
}

func objectMembers(doc any) ([]member, error) {
	switch t := doc.(type) {
	case *Object:
		out := make([]member, 0, t.Len())
		for _, k := range t.keys {
			out = append(out, member{key: k, value: t.values[k]})
		}
		return out, nil
	case map[string]any:
		o := ObjectFromMap(t)
		return objectMembers(o)
	default:
		return nil, fmt.Errorf("expected an object, got %T", doc)
	}
}

// transformShape reports whether members look like {"key": "...", "transform": "..."}.
func transformShape(members []member) (key, expr string, ok bool) {
	var hasKey bool
	for _, m := range members {
		switch m.key {
		case "key":
			s, isString := m.value.(string)
			if !isString {
				return "", "", false
			}
			key, hasKey = s, true
		case "transform":
			s, isString := m.value.(string)
			if !isString {
				return "", "", false
			}
			expr = s
		default:
			return "", "", false
		}
	}
	return key, expr, hasKey
}

func newTransform(key, expr, path string) (Rule, error) {
	if expr == "" {
		if key == "" {
			return nil, fmt.Errorf("mapping: spec at %s: transform needs a key or an expression", path)
		}
		return Rename(key), nil
	}
	fn, err := JQ(expr)
	if err != nil {
		return nil, fmt.Errorf("mapping: spec at %s: %w", path, err)
	}
	return Transform{Key: key, Fn: fn}, nil
}

// JQ compiles a jq program into a TransformFunc. The program runs with the
// value as its input and must produce exactly one output; no output maps to
// null.
func JQ(expr string) (TransformFunc, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed for %q: %w", expr, err)
	}

	return func(v any) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTransformTimeout)
		defer cancel()

		iter := code.RunWithContext(ctx, jqValue(v))
		var results []any
		for {
			out, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := out.(error); isErr {
				return nil, err
			}
			results = append(results, out)
			if len(results) > 1 {
				return nil, fmt.Errorf("jq expression %q produced more than one value", expr)
			}
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	}, nil
}

// jqValue converts a JSON value into the types gojq accepts.
func jqValue(v any) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = jqValue(t.values[k])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jqValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jqValue(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case int64:
		return int(t)
	case int32:
		return int(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
