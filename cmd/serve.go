package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/internal/config"
	"github.com/tanmaysk001/Browser-Agent/internal/mcp"
	"github.com/tanmaysk001/Browser-Agent/internal/observability"
	"github.com/tanmaysk001/Browser-Agent/internal/service"
)

// newServeCmd creates the `serve` command, which speaks MCP over stdio.
func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the browser tools, and the agent itself, over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if factory == nil {
				// The console human would read and write the MCP transport.
				factory = service.NewComponentFactory(mcp.UnavailableHuman{})
			}
			toolsOnly, _ := cmd.Flags().GetBool("tools-only")

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			server, err := newMCPServer(cfg, components, toolsOnly, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := server.Close(ctx); err != nil {
					logger.Warn("Failed to close MCP browser session.", zap.Error(err))
				}
			}()

			logger.Info("Serving MCP on stdio.", zap.Bool("tools_only", toolsOnly))
			return server.Start(ctx)
		},
	}
	serveCmd.Flags().Bool("tools-only", false, "Expose only the browser tools, not run_task.")
	return serveCmd
}

func newMCPServer(cfg config.Interface, c *service.Components, toolsOnly bool, logger *zap.Logger) (*mcp.Server, error) {
	opts := mcp.Options{
		Registry:  c.Registry,
		Sessions:  c.BrowserManager,
		UseVision: cfg.Agent().UseVision,
		Logger:    logger,
	}
	if !toolsOnly && c.Agent != nil {
		opts.Runner = c.Agent
	}
	server, err := mcp.NewServer(cfg.MCP(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server, nil
}
