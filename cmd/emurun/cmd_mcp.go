package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/voxelgraph/emurun/internal/mcp"
)

func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Serve the runtime as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(mcp.ServerInfo{
				Name:    "emurun",
				Version: version,
			}, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			return server.Run(context.Background())
		},
	}
}
