package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/snapshot"
	"github.com/voxelgraph/emurun/internal/visualization"
)

// LoadGraphInput are the arguments for emurun_load_graph.
type LoadGraphInput struct {
	Source    string  `json:"source,omitempty" jsonschema:"path to a JSON volume file; empty synthesizes a volume"`
	Shape     [3]int  `json:"shape,omitempty" jsonschema:"synthetic volume dimensions"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum edge weight magnitude"`
	MaxEdges  int     `json:"max_edges,omitempty" jsonschema:"edge count ceiling"`
}

// LoadGraphOutput reports the loaded graph's dimensions.
type LoadGraphOutput struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

func (s *Server) handleLoadGraph(ctx context.Context, req *sdk.CallToolRequest, args LoadGraphInput) (*sdk.CallToolResult, LoadGraphOutput, error) {
	g, err := s.buildGraph(args.Source, args.Shape, args.Threshold, args.MaxEdges)
	if err != nil {
		return nil, LoadGraphOutput{}, err
	}
	if err := s.runtime.LoadGraph(g); err != nil {
		return nil, LoadGraphOutput{}, err
	}
	return nil, LoadGraphOutput{Nodes: g.NumNodes(), Edges: g.NumEdges()}, nil
}

// StepInput are the arguments for emurun_step.
type StepInput struct {
	Input map[string]any `json:"input,omitempty" jsonschema:"input signal merged into the context for this tick"`
}

// StepOutput summarizes the context after a tick.
type StepOutput struct {
	Tick   int     `json:"tick"`
	Energy float64 `json:"energy"`
	State  string  `json:"state"`
}

func (s *Server) handleStep(ctx context.Context, req *sdk.CallToolRequest, args StepInput) (*sdk.CallToolResult, StepOutput, error) {
	out, err := s.runtime.Step(ctx, args.Input)
	if err != nil {
		return nil, StepOutput{State: string(s.runtime.State())}, err
	}
	return nil, StepOutput{
		Tick:   out.Meta.Tick,
		Energy: energyOf(out.Values),
		State:  string(s.runtime.State()),
	}, nil
}

// RunInput are the arguments for emurun_run.
type RunInput struct {
	Steps  int              `json:"steps" jsonschema:"number of ticks to execute"`
	Inputs []map[string]any `json:"inputs,omitempty" jsonschema:"per-tick input signals"`
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (*sdk.CallToolResult, StepOutput, error) {
	if args.Steps <= 0 {
		return nil, StepOutput{}, fmt.Errorf("steps must be positive, got %d", args.Steps)
	}
	out, err := s.runtime.Run(ctx, args.Steps, args.Inputs)
	if err != nil {
		return nil, StepOutput{State: string(s.runtime.State())}, err
	}
	return nil, StepOutput{
		Tick:   out.Meta.Tick,
		Energy: energyOf(out.Values),
		State:  string(s.runtime.State()),
	}, nil
}

// SnapshotOutput carries a snapshot reference.
type SnapshotOutput struct {
	Ref string `json:"ref"`
}

func (s *Server) handleSnapshot(ctx context.Context, req *sdk.CallToolRequest, args struct{}) (*sdk.CallToolResult, SnapshotOutput, error) {
	ref, err := s.runtime.Snapshot(ctx)
	if err != nil {
		return nil, SnapshotOutput{}, err
	}
	if keep := s.cfg.SnapshotRetention; keep > 0 {
		if _, err := s.store.ApplyRetention(ctx, keep); err != nil {
			s.logger.Warn("retention sweep failed", "error", err)
		}
	}
	return nil, SnapshotOutput{Ref: ref.String()}, nil
}

// RestoreInput are the arguments for emurun_restore.
type RestoreInput struct {
	Ref string `json:"ref" jsonschema:"snapshot reference to restore"`
}

func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (*sdk.CallToolResult, StepOutput, error) {
	ref, err := snapshot.ParseRef(args.Ref)
	if err != nil {
		return nil, StepOutput{}, err
	}
	out, err := s.runtime.Restore(ctx, ref)
	if err != nil {
		return nil, StepOutput{}, err
	}
	return nil, StepOutput{
		Tick:   out.Meta.Tick,
		Energy: energyOf(out.Values),
		State:  string(s.runtime.State()),
	}, nil
}

// SnapshotsOutput lists references in creation order.
type SnapshotsOutput struct {
	Refs []string `json:"refs"`
}

func (s *Server) handleSnapshots(ctx context.Context, req *sdk.CallToolRequest, args struct{}) (*sdk.CallToolResult, SnapshotsOutput, error) {
	refs, err := s.store.List(ctx)
	if err != nil {
		return nil, SnapshotsOutput{}, err
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	return nil, SnapshotsOutput{Refs: out}, nil
}

// GraphInput are the arguments for emurun_graph.
type GraphInput struct {
	MaxNodes   int  `json:"max_nodes,omitempty" jsonschema:"cap on rendered nodes"`
	ShowShards bool `json:"show_shards,omitempty" jsonschema:"include shard aggregates"`
}

// GraphOutput carries the rendered DOT document.
type GraphOutput struct {
	DOT string `json:"dot"`
}

func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (*sdk.CallToolResult, GraphOutput, error) {
	dot, err := visualization.RenderDOT(s.runtime.Context(), visualization.Options{
		MaxNodes:   args.MaxNodes,
		ShowShards: args.ShowShards,
	})
	if err != nil {
		return nil, GraphOutput{}, err
	}
	return nil, GraphOutput{DOT: dot}, nil
}

// energyOf extracts the accumulated energy value, if present.
func energyOf(values map[string]any) float64 {
	if v, ok := values[rules.KeyEnergy].(float64); ok {
		return v
	}
	return 0
}
