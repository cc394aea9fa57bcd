package cli

import (
	"betterats/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the processing pipeline.

Available endpoints:
- POST /process: multipart form with a "process_input" JSON field
  ({"job_requirements": [...]}) and one or more "files"
- GET /health: Health check endpoint
- GET /stats: Server, rate limiting and circuit breaker statistics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveFlags struct {
	host string
	port string
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if serveFlags.host != "" {
		cfg.Server.Host = serveFlags.host
	}
	if serveFlags.port != "" {
		cfg.Server.Port = serveFlags.port
	}

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), logger)
	return srv.Start(cmd.Context())
}
