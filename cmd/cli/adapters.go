package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/tellix/internal/api"
	"github.com/anstrom/tellix/internal/mcpserver"
	"github.com/anstrom/tellix/internal/protocol"
)

var (
	serveHost string
	servePort int
)

// stdioCmd serves the line protocol on stdin and stdout.
var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the line protocol on stdin/stdout",
	Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout. Logs go to stderr so they never mix with responses.`,
	Example: `  echo '{"action":"run","targets":"example.com","params":"-title"}' | tellix stdio`,
	Args:    cobra.NoArgs,
	RunE:    runStdio,
}

// mcpCmd serves the structured tools over MCP on stdin and stdout.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve preset probe tools over the Model Context Protocol",
	Long: `Expose http_quick_recon, http_complete_recon and http_full_recon as MCP
tools on stdin/stdout, along with a metadata tool and a scan prompt.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the line protocol over HTTP and WebSocket",
	Long: `Start the HTTP API. POST /api/v1/probe accepts one protocol request per
call and /api/v1/ws accepts one request per WebSocket message.`,
	Example: `  tellix serve
  tellix serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override listen address")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override listen port")
	bindFlags(serveCmd.Flags(), map[string]string{
		"api.listen_addr": "host",
		"api.port":        "port",
	})
}

func runStdio(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startJanitor(); err != nil {
		return err
	}

	dispatcher := protocol.NewDispatcher(a.prober, a.logger)
	a.logger.Info("Serving line protocol on stdio", "binary", a.cfg.Probe.Binary)

	return runUntilCanceled(cmd.Context(), func(ctx context.Context) error {
		return dispatcher.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.startJanitor(); err != nil {
		return err
	}

	server := mcpserver.New(a.prober, version, a.logger)
	a.logger.Info("Serving MCP tools on stdio", "binary", a.cfg.Probe.Binary)

	return runUntilCanceled(cmd.Context(), func(ctx context.Context) error {
		return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}
	if err := a.startJanitor(); err != nil {
		return err
	}

	server, err := api.New(a.cfg, a.prober, version, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	return server.Start(cmd.Context())
}
