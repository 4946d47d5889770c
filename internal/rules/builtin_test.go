package rules

import (
	"math"
	"testing"
)

func TestSignalTraceRule(t *testing.T) {
	r, err := NewSignalTraceRule(nil)
	if err != nil {
		t.Fatalf("NewSignalTraceRule: %v", err)
	}

	ctx := newTestContext(t)
	ctx.Meta.Input = map[string]any{"x": 1.0}
	out, err := r.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	sig, ok := out.Values[KeyLastSignal].(map[string]any)
	if !ok || sig["x"] != 1.0 {
		t.Errorf("expected last signal {x:1}, got %v", out.Values[KeyLastSignal])
	}
	if out.Values[KeyInputCount] != 1 {
		t.Errorf("expected input count 1, got %v", out.Values[KeyInputCount])
	}

	// No input on this tick leaves the count in place.
	out.Meta.Input = nil
	out2, err := r.Apply(out)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out2.Values[KeyInputCount] != 1 {
		t.Errorf("expected count to stay at 1, got %v", out2.Values[KeyInputCount])
	}
}

func TestEnergyRule(t *testing.T) {
	r, err := NewEnergyRule(nil)
	if err != nil {
		t.Fatalf("NewEnergyRule: %v", err)
	}

	ctx := newTestContext(t) // features sum to 3
	ctx.Meta.Input = map[string]any{"gain": 2.0}
	out, err := r.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Values[KeyEnergy].(float64); got != 6.0 {
		t.Errorf("expected energy 6.0, got %v", got)
	}

	// Energy accumulates across applications.
	out.Meta.Input = nil
	out2, err := r.Apply(out)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out2.Values[KeyEnergy].(float64); got != 9.0 {
		t.Errorf("expected energy 9.0, got %v", got)
	}
}

func TestEnergyRule_NoGraph(t *testing.T) {
	r, err := NewEnergyRule(nil)
	if err != nil {
		t.Fatalf("NewEnergyRule: %v", err)
	}
	ctx := newTestContext(t)
	ctx.Graph = nil
	if _, err := r.Apply(ctx); err == nil {
		t.Fatal("expected error for missing graph")
	}
}

func TestFieldDecayRule(t *testing.T) {
	r, err := NewFieldDecayRule(nil, 0.5)
	if err != nil {
		t.Fatalf("NewFieldDecayRule: %v", err)
	}
	ctx := newTestContext(t)
	ctx.Values[KeyEnergy] = 8.0
	out, err := r.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := out.Values[KeyEnergy].(float64); math.Abs(got-4.0) > 1e-12 {
		t.Errorf("expected energy 4.0, got %v", got)
	}
}

func TestFieldDecayRule_BadFactor(t *testing.T) {
	for _, f := range []float64{0, -0.5, 1.5} {
		if _, err := NewFieldDecayRule(nil, f); err == nil {
			t.Errorf("expected error for factor %g", f)
		}
	}
}
