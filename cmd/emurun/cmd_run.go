package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/metrics"
	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/rules"
)

// runSummary is the final report printed after a run.
type runSummary struct {
	Steps     int      `json:"steps"`
	Tick      int      `json:"tick"`
	Nodes     int      `json:"nodes"`
	Edges     int      `json:"edges"`
	Energy    float64  `json:"energy"`
	Snapshots []string `json:"snapshots,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a graph and drive the simulation for a number of ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			source, _ := cmd.Flags().GetString("source")
			inputsPath, _ := cmd.Flags().GetString("inputs")
			snapshotEvery, _ := cmd.Flags().GetInt("snapshot-every")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			m := metrics.NewNop()
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				m = metrics.New(reg)
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Error("metrics listener stopped", "error", err)
					}
				}()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			rt, store, err := buildRuntime(cfg, logger, m)
			if err != nil {
				return err
			}
			defer store.Close()

			g, err := graph.Build(source, cfg.Graph)
			if err != nil {
				return err
			}
			if err := rt.LoadGraph(g); err != nil {
				return err
			}

			inputs, err := loadInputs(inputsPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			summary := runSummary{Steps: steps, Nodes: g.NumNodes(), Edges: g.NumEdges()}
			var final *models.Context
			for i := 0; i < steps; i++ {
				var input map[string]any
				if i < len(inputs) {
					input = inputs[i]
				}
				final, err = rt.Step(ctx, input)
				if err != nil {
					return fmt.Errorf("step %d of %d: %w", i+1, steps, err)
				}
				if snapshotEvery > 0 && (i+1)%snapshotEvery == 0 {
					ref, err := rt.Snapshot(ctx)
					if err != nil {
						return err
					}
					summary.Snapshots = append(summary.Snapshots, ref.String())
					if keep := cfg.SnapshotRetention; keep > 0 {
						if _, err := store.ApplyRetention(ctx, keep); err != nil {
							logger.Warn("retention sweep failed", "error", err)
						}
					}
				}
			}

			summary.Tick = final.Meta.Tick
			if v, ok := final.Values[rules.KeyEnergy].(float64); ok {
				summary.Energy = v
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("ran %d steps over %d nodes / %d edges\n", summary.Steps, summary.Nodes, summary.Edges)
			fmt.Printf("final tick %d, energy %.4f\n", summary.Tick, summary.Energy)
			for _, ref := range summary.Snapshots {
				fmt.Printf("snapshot %s\n", ref)
			}
			return nil
		},
	}

	cmd.Flags().Int("steps", 1, "Number of ticks to execute")
	cmd.Flags().String("source", "", "JSON volume file (empty synthesizes a volume)")
	cmd.Flags().String("inputs", "", "JSON file with an array of per-tick input objects")
	cmd.Flags().Int("snapshot-every", 0, "Snapshot cadence in ticks (0 disables)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// loadInputs reads the per-tick input sequence from a JSON file.
func loadInputs(path string) ([]map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs %s: %w", path, err)
	}
	var inputs []map[string]any
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("parse inputs %s: %w", path, err)
	}
	return inputs, nil
}
