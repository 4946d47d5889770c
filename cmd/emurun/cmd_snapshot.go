package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxelgraph/emurun/internal/identity"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and manage persisted context snapshots",
	}
	cmd.AddCommand(
		newSnapshotListCmd(),
		newSnapshotShowCmd(),
		newSnapshotBranchCmd(),
	)
	return cmd
}

// openStore opens the configured snapshot store for a snapshot subcommand.
func openStore(cmd *cobra.Command) (*snapshot.SQLiteStore, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return snapshot.NewSQLiteStore(cfg.SnapshotDir)
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshot references in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			refs, err := store.List(context.Background())
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				out := make([]string, len(refs))
				for i, ref := range refs {
					out[i] = ref.String()
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}
			if len(refs) == 0 {
				fmt.Println("no snapshots")
				return nil
			}
			for _, ref := range refs {
				if t, err := ref.Time(); err == nil {
					fmt.Printf("%s  %s\n", ref, t.UTC().Format("2006-01-02T15:04:05.000Z"))
				} else {
					fmt.Println(ref)
				}
			}
			return nil
		},
	}
}

func newSnapshotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a snapshot's context summary and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := snapshot.ParseRef(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			sim, err := store.Restore(ctx, ref)
			if err != nil {
				return err
			}
			meta, err := store.Meta(ctx, ref)
			if err != nil {
				return err
			}

			energy := 0.0
			if v, ok := sim.Values[rules.KeyEnergy].(float64); ok {
				energy = v
			}
			summary := map[string]any{
				"ref":    ref.String(),
				"tick":   sim.Meta.Tick,
				"nodes":  sim.Graph.NumNodes(),
				"edges":  sim.Graph.NumEdges(),
				"energy": energy,
				"meta":   json.RawMessage(meta),
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("%s: tick %d, %d nodes, %d edges, energy %.4f\n",
				ref, sim.Meta.Tick, sim.Graph.NumNodes(), sim.Graph.NumEdges(), energy)
			if meta != "{}" {
				fmt.Printf("meta: %s\n", meta)
			}
			return nil
		},
	}
}

func newSnapshotBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch <ref>",
		Short: "Branch a snapshot into a new lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := snapshot.ParseRef(args[0])
			if err != nil {
				return err
			}
			tags, _ := cmd.Flags().GetStringSlice("tag")
			branchMeta := make(map[string]any, len(tags))
			for _, tag := range tags {
				k, v, ok := strings.Cut(tag, "=")
				if !ok {
					return fmt.Errorf("tag %q is not key=value", tag)
				}
				branchMeta[k] = v
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := snapshot.NewSQLiteStore(cfg.SnapshotDir)
			if err != nil {
				return err
			}
			defer store.Close()

			mgr := identity.NewManager(store, newLogger(cfg))
			ref, err := mgr.Branch(context.Background(), base, branchMeta)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"base": base.String(), "branch": ref.String(),
				})
			}
			fmt.Printf("branched %s -> %s\n", base, ref)
			return nil
		},
	}
	cmd.Flags().StringSlice("tag", nil, "Branch metadata as key=value (repeatable)")
	return cmd
}
