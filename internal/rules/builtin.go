package rules

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/voxelgraph/emurun/internal/models"
)

// Context value keys written by the built-in rules.
const (
	KeyEnergy     = "energy"
	KeyLastSignal = "last_signal"
	KeyInputCount = "input_count"
)

// NewSignalTraceRule returns a rule that records the tick's input under
// KeyLastSignal and counts how many inputs have been observed.
func NewSignalTraceRule(validator Validator) (*Rule, error) {
	transform := func(ctx *models.Context) (*models.Context, error) {
		count := 0
		if n, ok := ctx.Values[KeyInputCount].(int); ok {
			count = n
		}
		if ctx.Meta.Input != nil {
			sig := make(map[string]any, len(ctx.Meta.Input))
			for k, v := range ctx.Meta.Input {
				sig[k] = v
			}
			ctx.Values[KeyLastSignal] = sig
			count++
		}
		ctx.Values[KeyInputCount] = count
		return ctx, nil
	}
	return New("signal-trace", "Records the most recent input signal on the context.",
		transform, validator, WithAuthor("emurun"))
}

// NewEnergyRule returns a rule that accumulates total activation energy:
// the sum of node features scaled by the input gain.
func NewEnergyRule(validator Validator) (*Rule, error) {
	transform := func(ctx *models.Context) (*models.Context, error) {
		if ctx.Graph == nil {
			return nil, fmt.Errorf("no graph in context")
		}
		gain := 1.0
		if v, ok := ctx.Meta.Input["gain"].(float64); ok {
			gain = v
		}
		prev := 0.0
		if v, ok := ctx.Values[KeyEnergy].(float64); ok {
			prev = v
		}
		ctx.Values[KeyEnergy] = prev + floats.Sum(ctx.Graph.Features)*gain
		return ctx, nil
	}
	return New("energy", "Accumulates total activation energy over the node features.",
		transform, validator, WithAuthor("emurun"))
}

// NewFieldDecayRule returns a physics rule that decays accumulated energy
// each tick.
func NewFieldDecayRule(validator Validator, factor float64) (*Rule, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("rules: decay factor must be in (0, 1], got %g", factor)
	}
	transform := func(ctx *models.Context) (*models.Context, error) {
		if v, ok := ctx.Values[KeyEnergy].(float64); ok {
			ctx.Values[KeyEnergy] = v * factor
		}
		return ctx, nil
	}
	return New("field-decay", "Decays accumulated activation energy.",
		transform, validator, WithAuthor("emurun"),
		WithMetadata(map[string]any{"factor": factor}))
}
