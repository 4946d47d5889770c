// Package mcp provides an MCP (Model Context Protocol) control surface for
// a single emulation runtime.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voxelgraph/emurun/internal/config"
	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/physics"
	"github.com/voxelgraph/emurun/internal/policy"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/runtime"
	"github.com/voxelgraph/emurun/internal/sched"
	"github.com/voxelgraph/emurun/internal/shards"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

// Server wraps the MCP SDK server around one runtime instance. Stdio serves
// a single client, which satisfies the runtime's external-serialization
// contract.
type Server struct {
	server  *sdk.Server
	runtime *runtime.Runtime
	store   *snapshot.SQLiteStore
	cfg     config.Config
	logger  *slog.Logger
}

// ServerInfo identifies the server to clients.
type ServerInfo struct {
	Name    string
	Version string
}

// NewServer builds a runtime from cfg and exposes it over MCP tools.
func NewServer(info ServerInfo, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := snapshot.NewSQLiteStore(cfg.SnapshotDir)
	if err != nil {
		return nil, err
	}

	validator := policy.NewLimitValidator(cfg.Policy)
	engine := rules.NewEngine(validator, logger)
	field := physics.NewFieldSimulator(validator, logger)
	if err := registerBuiltins(engine, field, validator); err != nil {
		store.Close()
		return nil, err
	}

	shardCount := cfg.Shards
	if shardCount == 0 {
		shardCount = cfg.MaxWorkers
	}
	rt, err := runtime.New(runtime.Options{
		Engine:    engine,
		Physics:   field,
		Validator: validator,
		Pool:      sched.NewPool(cfg.MaxWorkers),
		ShardSet:  shards.NewSet(shardCount),
		Store:     store,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    info.Name,
		Version: info.Version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		runtime: rt,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// registerBuiltins wires the built-in primary and physics rules.
func registerBuiltins(engine *rules.Engine, field *physics.FieldSimulator, validator rules.Validator) error {
	trace, err := rules.NewSignalTraceRule(validator)
	if err != nil {
		return err
	}
	energy, err := rules.NewEnergyRule(validator)
	if err != nil {
		return err
	}
	decay, err := rules.NewFieldDecayRule(validator, 0.9)
	if err != nil {
		return err
	}
	if err := engine.Register(trace); err != nil {
		return err
	}
	if err := engine.Register(energy); err != nil {
		return err
	}
	return field.Register(decay)
}

// registerTools registers all emurun MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_load_graph",
		Description: "Build a graph from a volume source (or synthesize one) and load it into the runtime",
	}, s.handleLoadGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_step",
		Description: "Advance the simulation by one tick with an optional input signal",
	}, s.handleStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_run",
		Description: "Advance the simulation by multiple ticks, feeding one input per tick",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_snapshot",
		Description: "Persist the current context and return its snapshot reference",
	}, s.handleSnapshot)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_restore",
		Description: "Replace the current context with a stored snapshot",
	}, s.handleRestore)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_snapshots",
		Description: "List snapshot references in creation order",
	}, s.handleSnapshots)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "emurun_graph",
		Description: "Render the current context's graph in DOT (Graphviz) format",
	}, s.handleGraph)
}

// Run serves the runtime over stdio transport until the client disconnects
// or a signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close snapshot store: %w", cerr)
	}
	return err
}

// buildGraph constructs a graph from the configured builder settings,
// overridden per call.
func (s *Server) buildGraph(source string, shape [3]int, threshold float64, maxEdges int) (*graph.Graph, error) {
	cfg := s.cfg.Graph
	if shape != [3]int{} {
		cfg.Shape = shape
	}
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if maxEdges > 0 {
		cfg.MaxEdges = maxEdges
	}
	return graph.Build(source, cfg)
}
