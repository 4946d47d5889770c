package models

import (
	"math"
)

// Equal reports deep equality between two contexts. It compares graphs
// structurally and value trees recursively, treating NaN as equal to NaN so
// snapshot round-trips of degenerate constants still compare clean.
func (c *Context) Equal(o *Context) bool {
	if c == nil || o == nil {
		return c == o
	}
	if !c.Graph.Equal(o.Graph) {
		return false
	}
	if c.Meta.Tick != o.Meta.Tick {
		return false
	}
	if !valueEqual(anyMap(c.Meta.Input), anyMap(o.Meta.Input)) {
		return false
	}
	if len(c.Constants) != len(o.Constants) {
		return false
	}
	for k, v := range c.Constants {
		ov, ok := o.Constants[k]
		if !ok || !floatEqual(v, ov) {
			return false
		}
	}
	return valueEqual(anyMap(c.Values), anyMap(o.Values))
}

// anyMap normalizes a nil map so empty and nil compare equal.
func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !valueEqual(v, ov) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []float64:
		bv, ok := b.([]float64)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !floatEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case []int:
		bv, ok := b.([]int)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case map[string]float64:
		bv, ok := b.(map[string]float64)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !floatEqual(v, ov) {
				return false
			}
		}
		return true
	case float64:
		bv, ok := b.(float64)
		return ok && floatEqual(av, bv)
	default:
		return a == b
	}
}
