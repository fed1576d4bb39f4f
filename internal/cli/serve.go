package cli

import (
	"fmt"

	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/server"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resume upload form over HTTP",
	Long: `Start an HTTP server that serves the resume upload form to browsers and
forwards submissions to the analysis service.

Available endpoints:
- GET  /: The upload form (each browser gets its own form session)
- POST /: Select a file or submit the form
- POST /api/analyze: Multipart resume + jobDescription, returns the result as JSON
- GET  /health: Health check endpoint
- GET  /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates
- Use --tls-auto-reload to pick up renewed certificates without a restart`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringP("port", "p", "", "Port to listen on (default from config)")
	flags.String("host", "", "Host to bind to (default from config)")
	flags.String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	flags.String("cert-file", "", "Server certificate file (PEM, overrides config)")
	flags.String("key-file", "", "Server private key file (PEM, overrides config)")
	flags.Bool("tls-auto-reload", false, "Reload the certificate when its files change")

	bindFlag(flags, "server.port", "port")
	bindFlag(flags, "server.host", "host")
	bindFlag(flags, "server.tls.mode", "tls-mode")
	bindFlag(flags, "server.tls.certFile", "cert-file")
	bindFlag(flags, "server.tls.keyFile", "key-file")
	bindFlag(flags, "server.tls.autoReload", "tls-auto-reload")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	stack, err := newAnalysisStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Only the log level is applied live; everything else needs a restart
	if loader := getLoaderFromContext(cmd.Context()); loader != nil {
		loader.Watch(func(updated *config.Config, e fsnotify.Event) {
			level, err := errors.ParseLevel(updated.App.LogLevel)
			if err != nil {
				logger.LogError(err, "Ignoring log level change", "file", e.Name)
				return
			}
			if level == logger.Level() {
				return
			}
			_ = logger.SetLevel(updated.App.LogLevel)
			logger.Info("Log level changed", "level", updated.App.LogLevel)
		})
	}

	srv := server.NewServer(server.ServerConfig{
		Version: Version,
		Server:  cfg.Server,
		// Room for the job description and multipart framing on top of the file
		MaxRequestSize: cfg.App.MaxFileSize + 1<<20,
		Client:         stack.analyzer,
		Health:         stack.client,
		Observability:  stack.om,
	}, logger)

	return srv.Start(cmd.Context())
}
