// Package policy provides the default gatekeeper applied to rules at
// registration and to contexts after transformation.
package policy

import (
	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/rules"
)

// Limits bounds what the default validator accepts.
type Limits struct {
	// MaxEdges is the largest graph edge count a context may carry.
	// Zero disables the check.
	MaxEdges int `json:"max_edges" yaml:"max_edges"`

	// MaxDepth is the deepest nesting allowed in the context value tree.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// MaxKeys caps the number of top-level keys in the value tree.
	// Zero disables the check.
	MaxKeys int `json:"max_keys" yaml:"max_keys"`
}

// DefaultLimits returns the default policy bounds.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 16}
}

// LimitValidator is the default rules.Validator: structural checks on rules
// and resource bounds on contexts. Both predicates are deterministic,
// side-effect-free, and never panic on well-formed input.
type LimitValidator struct {
	limits Limits
}

// NewLimitValidator creates a validator with the given bounds.
func NewLimitValidator(limits Limits) *LimitValidator {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = DefaultLimits().MaxDepth
	}
	return &LimitValidator{limits: limits}
}

// CheckRule accepts any named rule that carries a transform.
func (v *LimitValidator) CheckRule(r *rules.Rule) bool {
	if r == nil || r.Name == "" {
		return false
	}
	return r.Transform() != nil
}

// ValidateContext accepts contexts whose graph is present and whose value
// tree stays inside the configured bounds.
func (v *LimitValidator) ValidateContext(ctx *models.Context) bool {
	if ctx == nil || ctx.Graph == nil {
		return false
	}
	if v.limits.MaxEdges > 0 && ctx.Graph.NumEdges() > v.limits.MaxEdges {
		return false
	}
	if v.limits.MaxKeys > 0 && len(ctx.Values) > v.limits.MaxKeys {
		return false
	}
	return depthOf(ctx.Values, 1) <= v.limits.MaxDepth
}

// depthOf measures the nesting depth of a value tree.
func depthOf(v any, depth int) int {
	switch t := v.(type) {
	case map[string]any:
		max := depth
		for _, e := range t {
			if d := depthOf(e, depth+1); d > max {
				max = d
			}
		}
		return max
	case []any:
		max := depth
		for _, e := range t {
			if d := depthOf(e, depth+1); d > max {
				max = d
			}
		}
		return max
	default:
		return depth
	}
}
