// Package physics implements the secondary rule stage of a simulation step:
// a separate ordered rule set applied to a deep copy of the context, plus
// injection of default simulation constants.
package physics

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/rules"
)

// ConstantLightSpeed is the context constant injected when absent. The
// emulated field has no propagation limit, so it is positive infinity.
const ConstantLightSpeed = "c"

// FieldSimulator applies physics rules to contexts. It owns its own rule
// engine, gated by the same validator as the primary engine, and validates
// every context it produces.
type FieldSimulator struct {
	engine    *rules.Engine
	validator rules.Validator
	logger    *slog.Logger
}

// NewFieldSimulator creates a field simulator. Validator and logger may be
// nil; a nil validator skips post-apply validation.
func NewFieldSimulator(validator rules.Validator, logger *slog.Logger) *FieldSimulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldSimulator{
		engine:    rules.NewEngine(validator, logger),
		validator: validator,
		logger:    logger,
	}
}

// Register adds a physics rule through the validator gate.
func (f *FieldSimulator) Register(r *rules.Rule) error {
	return f.engine.Register(r)
}

// Rules returns the registered physics rules in evaluation order.
func (f *FieldSimulator) Rules() []*rules.Rule {
	return f.engine.Rules()
}

// Apply runs the physics rule set over a deep copy of the context, injects
// default constants, and validates the result. The input context is never
// mutated; the returned context is a fresh value owned by the caller.
func (f *FieldSimulator) Apply(ctx *models.Context) (*models.Context, error) {
	if ctx == nil {
		return nil, fmt.Errorf("physics: nil context")
	}

	out, err := f.engine.Evaluate(ctx.DeepClone())
	if err != nil {
		return nil, err
	}

	if out.Constants == nil {
		out.Constants = make(map[string]float64)
	}
	if _, ok := out.Constants[ConstantLightSpeed]; !ok {
		out.Constants[ConstantLightSpeed] = math.Inf(1)
		f.logger.Debug("injected default constant", "constant", ConstantLightSpeed)
	}

	if f.validator != nil && !f.validator.ValidateContext(out) {
		return nil, fmt.Errorf("physics: %w", rules.ErrContextRejected)
	}
	return out, nil
}
