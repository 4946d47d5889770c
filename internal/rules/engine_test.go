package rules

import (
	"errors"
	"fmt"
	"testing"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/models"
)

// appendRule builds a rule that appends its marker to the "trace" value,
// making evaluation order observable.
func appendRule(t *testing.T, name, marker string) *Rule {
	t.Helper()
	r, err := New(name, "append "+marker, func(ctx *models.Context) (*models.Context, error) {
		trace, _ := ctx.Values["trace"].(string)
		ctx.Values["trace"] = trace + marker
		return ctx, nil
	}, nil)
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	return r
}

func newTestContext(t *testing.T) *models.Context {
	t.Helper()
	g, err := graph.FromEdges([]float64{1, 2}, []graph.Edge{{Source: 0, Target: 1, Weight: 0.5}})
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return models.NewContext(g)
}

func TestNew(t *testing.T) {
	r, err := New("decay", "applies decay", func(ctx *models.Context) (*models.Context, error) {
		return ctx, nil
	}, nil, WithAuthor("field-team"), WithVersion("2.1.0"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.ID == "" || r.Name != "decay" || r.Author != "field-team" || r.Version != "2.1.0" {
		t.Errorf("unexpected rule fields: %+v", r)
	}
}

func TestNew_NilTransform(t *testing.T) {
	if _, err := New("broken", "", nil, nil); !errors.Is(err, ErrNilTransform) {
		t.Fatalf("expected ErrNilTransform, got %v", err)
	}
}

type rejectAllValidator struct{}

func (rejectAllValidator) CheckRule(*Rule) bool                 { return false }
func (rejectAllValidator) ValidateContext(*models.Context) bool { return false }

func TestNew_ValidatorRejects(t *testing.T) {
	_, err := New("rejected", "", func(ctx *models.Context) (*models.Context, error) {
		return ctx, nil
	}, rejectAllValidator{})
	if !errors.Is(err, ErrRuleRejected) {
		t.Fatalf("expected ErrRuleRejected, got %v", err)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Values["trace"] = "seed"

	r := appendRule(t, "marker", "X")
	out, err := r.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Values["trace"] != "seedX" {
		t.Errorf("expected transformed output, got %v", out.Values["trace"])
	}
	if ctx.Values["trace"] != "seed" {
		t.Errorf("input context was mutated: %v", ctx.Values["trace"])
	}
}

func TestApply_NilOutput(t *testing.T) {
	r, err := New("void", "", func(*models.Context) (*models.Context, error) {
		return nil, nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Apply(newTestContext(t)); err == nil {
		t.Fatal("expected error for nil transform output")
	}
}

func TestEngine_RegisterDuplicate(t *testing.T) {
	e := NewEngine(nil, nil)
	r := appendRule(t, "a", "A")
	if err := e.Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	before := e.Len()

	if err := e.Register(r); !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}
	if e.Len() != before {
		t.Errorf("failed registration changed rule count: %d != %d", e.Len(), before)
	}
}

func TestEngine_RegisterRejected(t *testing.T) {
	e := NewEngine(rejectAllValidator{}, nil)
	// Build the rule without the gating validator so registration does the
	// rejecting.
	r := appendRule(t, "a", "A")
	if err := e.Register(r); !errors.Is(err, ErrRuleRejected) {
		t.Fatalf("expected ErrRuleRejected, got %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("rejected registration changed rule count: %d", e.Len())
	}
}

func TestEngine_EvaluateOrder(t *testing.T) {
	e := NewEngine(nil, nil)
	for _, m := range []string{"A", "B", "C"} {
		if err := e.Register(appendRule(t, "rule-"+m, m)); err != nil {
			t.Fatalf("Register(%s): %v", m, err)
		}
	}

	out, err := e.Evaluate(newTestContext(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := out.Values["trace"]; got != "ABC" {
		t.Errorf("expected rules applied in registration order, trace %v", got)
	}
}

func TestEngine_EvaluateFailFast(t *testing.T) {
	e := NewEngine(nil, nil)
	if err := e.Register(appendRule(t, "first", "A")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	boom := fmt.Errorf("dependency missing")
	failing, err := New("second", "", func(*models.Context) (*models.Context, error) {
		return nil, boom
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Register(failing); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := e.Register(appendRule(t, "third", "C")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = e.Evaluate(newTestContext(t))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transform error, got %v", err)
	}
}

// A rule that reads a value an earlier rule must have produced errors out
// when evaluated without its producer; the pipeline does not reorder or
// retry around it.
func TestEngine_MissingDependencyFailsFast(t *testing.T) {
	producer, err := New("producer", "", func(ctx *models.Context) (*models.Context, error) {
		ctx.Values["a"] = 1.0
		return ctx, nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	consumer, err := New("consumer", "", func(ctx *models.Context) (*models.Context, error) {
		v, ok := ctx.Values["a"].(float64)
		if !ok {
			return nil, fmt.Errorf("value %q not present", "a")
		}
		ctx.Values["b"] = v * 2
		return ctx, nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ordered := NewEngine(nil, nil)
	if err := ordered.Register(producer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := ordered.Register(consumer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	out, err := ordered.Evaluate(newTestContext(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Values["b"] != 2.0 {
		t.Errorf("expected b=2 from the dependent rule, got %v", out.Values["b"])
	}

	alone := NewEngine(nil, nil)
	if err := alone.Register(consumer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := alone.Evaluate(newTestContext(t)); err == nil {
		t.Fatal("expected an error when the dependency was never produced")
	}
}

func TestEngine_EvolveReturnsEmpty(t *testing.T) {
	e := NewEngine(nil, nil)
	got := e.Evolve(newTestContext(t))
	if got == nil || len(got) != 0 {
		t.Errorf("Evolve must return an empty non-nil slice, got %v", got)
	}
}

func TestEngine_RulesCopy(t *testing.T) {
	e := NewEngine(nil, nil)
	if err := e.Register(appendRule(t, "a", "A")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rs := e.Rules()
	rs[0] = nil
	if e.Rules()[0] == nil {
		t.Error("Rules must return a copy of the registry slice")
	}
}
