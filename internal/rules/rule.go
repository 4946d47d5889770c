// Package rules implements the named, versioned context transformations and
// the ordered engine that applies them.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/voxelgraph/emurun/internal/models"
)

var (
	// ErrRuleRejected means a rule failed policy validation at creation
	// or registration time.
	ErrRuleRejected = errors.New("rules: rule rejected by policy validator")

	// ErrContextRejected means a transformed context failed policy
	// validation.
	ErrContextRejected = errors.New("rules: context rejected by policy validator")

	// ErrDuplicateRule means a rule with the same id is already
	// registered. Registration fails without mutating engine state.
	ErrDuplicateRule = errors.New("rules: duplicate rule id")

	// ErrNilTransform means a rule was constructed without a transform.
	ErrNilTransform = errors.New("rules: transform is required")
)

// Transform is the capability every rule implements: given a context,
// return a new context. Transforms must treat their input as owned for the
// duration of the call and must not retain references past their scope.
type Transform func(*models.Context) (*models.Context, error)

// Validator gates rules before acceptance and contexts after transformation.
// Implementations must be deterministic and side-effect-free.
type Validator interface {
	CheckRule(r *Rule) bool
	ValidateContext(ctx *models.Context) bool
}

// Rule is a uniquely identified transformation over a simulation context.
// The id is generated at construction and immutable for the rule's lifetime;
// the version may be advanced through UpdateVersion.
type Rule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Version     string         `json:"version"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	transform Transform
}

// Option customizes a rule at construction.
type Option func(*Rule)

// WithAuthor sets the rule author.
func WithAuthor(author string) Option {
	return func(r *Rule) { r.Author = author }
}

// WithVersion sets the initial version.
func WithVersion(version string) Option {
	return func(r *Rule) { r.Version = version }
}

// WithMetadata attaches arbitrary metadata.
func WithMetadata(md map[string]any) Option {
	return func(r *Rule) { r.Metadata = md }
}

// New creates a rule and gates it through the validator. A nil validator
// skips the gate (engines re-check at registration).
func New(name, description string, transform Transform, validator Validator, opts ...Option) (*Rule, error) {
	if transform == nil {
		return nil, ErrNilTransform
	}
	r := &Rule{
		ID:          "rule-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:        name,
		Description: description,
		Author:      "unknown",
		Version:     "1.0.0",
		transform:   transform,
	}
	for _, opt := range opts {
		opt(r)
	}
	if validator != nil && !validator.CheckRule(r) {
		return nil, fmt.Errorf("%w: %s", ErrRuleRejected, name)
	}
	return r, nil
}

// Apply runs the transform against a copy of the context. The original is
// never handed to the transform, so a failing rule cannot corrupt the
// caller's state. Transform errors propagate unmodified.
func (r *Rule) Apply(ctx *models.Context) (*models.Context, error) {
	out, err := r.transform(ctx.Clone())
	if err != nil {
		return nil, fmt.Errorf("rule %q (v%s): %w", r.Name, r.Version, err)
	}
	if out == nil {
		return nil, fmt.Errorf("rule %q (v%s): transform returned nil context", r.Name, r.Version)
	}
	return out, nil
}

// Transform exposes the underlying transform for validators that need to
// check its presence.
func (r *Rule) Transform() Transform {
	return r.transform
}

// UpdateVersion advances the rule's version string.
func (r *Rule) UpdateVersion(logger *slog.Logger, newVersion string) {
	if logger != nil {
		logger.Info("rule version updated", "rule", r.Name, "from", r.Version, "to", newVersion)
	}
	r.Version = newVersion
}
