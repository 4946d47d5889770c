package rules

import (
	"fmt"
	"log/slog"

	"github.com/voxelgraph/emurun/internal/models"
)

// Engine is an ordered rule registry. Registration order is evaluation
// order; there is no priority system. Engines are not safe for concurrent
// mutation; the owning runtime serializes access.
type Engine struct {
	rules     []*Rule
	validator Validator
	logger    *slog.Logger
}

// NewEngine creates an engine gated by the given validator. The validator
// may be nil, in which case registration accepts any well-formed rule.
func NewEngine(validator Validator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{validator: validator, logger: logger}
}

// Register appends a rule to the registry. It fails with ErrDuplicateRule if
// the id is already present and ErrRuleRejected if the validator rejects the
// rule; in both cases engine state is untouched.
func (e *Engine) Register(r *Rule) error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", ErrRuleRejected)
	}
	for _, existing := range e.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: %s (%s)", ErrDuplicateRule, r.Name, r.ID)
		}
	}
	if e.validator != nil && !e.validator.CheckRule(r) {
		return fmt.Errorf("%w: %s", ErrRuleRejected, r.Name)
	}
	e.rules = append(e.rules, r)
	e.logger.Debug("rule registered", "rule", r.Name, "version", r.Version, "order", len(e.rules))
	return nil
}

// Evaluate folds the context through every registered rule in registration
// order. Each rule receives a copy of the running context and its output
// becomes the input to the next rule. A transform error aborts the pipeline
// immediately; later rules are not applied.
func (e *Engine) Evaluate(ctx *models.Context) (*models.Context, error) {
	cur := ctx
	for _, r := range e.rules {
		next, err := r.Apply(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Evolve is the contract point for rule synthesis from a technology
// context. Synthesis is not implemented; the empty result is part of the
// contract and callers may rely on it.
func (e *Engine) Evolve(techContext *models.Context) []*Rule {
	e.logger.Debug("evolve requested", "rules", len(e.rules))
	return []*Rule{}
}

// Rules returns the registry in evaluation order. The slice is a copy;
// the rules themselves are shared.
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Len returns the number of registered rules.
func (e *Engine) Len() int {
	return len(e.rules)
}
