// Package simulation provides a multi-tick test harness for validating
// emergent dynamics of the emulation runtime.
//
// The harness exercises the real rule engine, scheduler pool, field
// simulator, and SQLite snapshot store, no mocks. Scenarios are Go builders
// that construct graphs, register rule sets, and run configurable numbers of
// ticks, capturing per-tick contexts and snapshot references for
// property-based assertions.
//
// Each test gets an isolated snapshot database via t.TempDir().
//
// Usage:
//
//	func TestEnergyConvergence(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:       "energy-convergence",
//	        GraphNodes: 32,
//	        Rules:      simulation.BuiltinRules(),
//	        Physics:    simulation.DecayPhysics(0.5),
//	        Ticks:      simulation.UniformTicks(10, map[string]any{"gain": 1.0}),
//	    })
//	    simulation.AssertEnergyConverges(t, result, 30.0, 32.5, 8)
//	}
package simulation
