package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxelgraph/emurun/internal/snapshot"
	"github.com/voxelgraph/emurun/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <ref>",
		Short: "Render a snapshotted context's graph as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := snapshot.ParseRef(args[0])
			if err != nil {
				return err
			}
			maxNodes, _ := cmd.Flags().GetInt("max-nodes")
			showShards, _ := cmd.Flags().GetBool("shards")

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			sim, err := store.Restore(context.Background(), ref)
			if err != nil {
				return err
			}

			dot, err := visualization.RenderDOT(sim, visualization.Options{
				MaxNodes:   maxNodes,
				ShowShards: showShards,
			})
			if err != nil {
				return err
			}
			fmt.Print(dot)
			return nil
		},
	}

	cmd.Flags().Int("max-nodes", 0, "Cap on rendered nodes (0 uses the default)")
	cmd.Flags().Bool("shards", false, "Include shard aggregate boxes")
	return cmd
}
