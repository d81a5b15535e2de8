package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/super-pm-ai/superpm-mcp/internal/adapter/inbound/http"
	"github.com/super-pm-ai/superpm-mcp/internal/adapter/outbound/audit"
	"github.com/super-pm-ai/superpm-mcp/internal/adapter/outbound/jiratracker"
	"github.com/super-pm-ai/superpm-mcp/internal/adapter/outbound/memory"
	"github.com/super-pm-ai/superpm-mcp/internal/config"
	"github.com/super-pm-ai/superpm-mcp/internal/domain/session"
	"github.com/super-pm-ai/superpm-mcp/internal/service"
	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamable HTTP server",
	Long: `Start the superpm-mcp server on the streamable HTTP transport.

Clients POST an initialize request to /mcp to obtain a session id, then
dispatch tool and prompt calls with the Session-Id header. GET /mcp
attaches the SSE push stream and DELETE /mcp terminates the session.

Examples:
  # Start with config file settings
  superpm-mcp serve

  # Start with a specific config file
  superpm-mcp --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := serve(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("superpm-mcp stopped")
	return nil
}

// serve wires the components and runs the HTTP transport until shutdown.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sessionStore := memory.NewSessionStore()
	sessionStore.StartCleanup(ctx)
	defer sessionStore.Stop()

	sessionService := session.NewService(sessionStore, session.Config{
		Timeout: cfg.ParsedSessionTimeout(),
	})

	dispatcher, auditService, cleanup, err := buildDispatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	healthChecker := http.NewHealthChecker(sessionService, auditService, Version)

	transport := http.NewTransport(sessionService, dispatcher,
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		http.WithKeepaliveInterval(cfg.ParsedKeepaliveInterval()),
		http.WithLogger(logger),
		http.WithHealthChecker(healthChecker),
	)

	logger.Info("superpm-mcp starting",
		"version", Version,
		"http_addr", cfg.Server.HTTPAddr,
		"allowed_origins", len(cfg.Server.AllowedOrigins),
		"session_timeout", cfg.ParsedSessionTimeout(),
		"keepalive_interval", cfg.ParsedKeepaliveInterval(),
		"jira", cfg.Jira.Configured(),
		"workspace_root", cfg.Workspace.Root,
	)

	return transport.Start(ctx)
}

// loadConfigAndLogger loads and validates the configuration and builds
// the stderr logger. Shared by serve and stdio.
func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadRaw()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Log to stderr: stdout is reserved for the protocol stream in stdio
	// mode.
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return cfg, logger, nil
}

// buildDispatcher assembles the dispatch surface: filesystem tools, Jira
// tools and prompt when configured, and the audit recorder when enabled.
// The returned cleanup stops the audit pipeline and closes its store.
func buildDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.DispatchService, *service.AuditService, func(), error) {
	cleanup := func() {}

	var auditService *service.AuditService
	if cfg.Audit.Dir != "" {
		store, err := audit.NewFileStore(audit.FileStoreConfig{
			Dir:           cfg.Audit.Dir,
			RetentionDays: cfg.Audit.RetentionDays,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		auditService = service.NewAuditService(store, 0, logger)
		auditService.Start(ctx)
		cleanup = func() {
			auditService.Stop()
			_ = store.Close()
		}
		logger.Info("audit trail enabled", "dir", cfg.Audit.Dir, "retention_days", cfg.Audit.RetentionDays)
	}

	var opts []service.DispatchOption
	if auditService != nil {
		opts = append(opts, service.WithAuditor(auditService))
	}

	dispatcher := service.NewDispatchService(mcp.ServerInfo{
		Name:    "superpm-mcp",
		Version: Version,
	}, logger, opts...)

	fsService, err := service.NewFileSystemService(cfg.Workspace.Root)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	fsService.Register(dispatcher)

	if cfg.Jira.Configured() {
		tracker, err := jiratracker.New(jiratracker.Config{
			BaseURL:  cfg.Jira.BaseURL,
			Username: cfg.Jira.Username,
			APIToken: cfg.Jira.APIToken,
		})
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to create Jira client: %w", err)
		}
		service.NewJiraService(tracker).Register(dispatcher)
		logger.Info("jira tools registered", "base_url", cfg.Jira.BaseURL)
	} else {
		logger.Info("jira not configured, tracker tools disabled")
	}

	return dispatcher, auditService, cleanup, nil
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
