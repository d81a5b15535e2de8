package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/super-pm-ai/superpm-mcp/internal/adapter/inbound/stdio"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve requests over stdin/stdout",
	Long: `Serve line-delimited JSON-RPC on stdin/stdout.

This mode is for editor and agent integrations that spawn the server as
a subprocess. No HTTP listener is started and sessions do not apply: the
process lifetime is the session.

Example:
  superpm-mcp stdio`,
	RunE: runStdio,
}

func init() {
	stdioCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging)")
	rootCmd.AddCommand(stdioCmd)
}

func runStdio(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher, _, cleanup, err := buildDispatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	transport := stdio.NewTransport(dispatcher)
	logger.Info("transport mode: stdio")
	return transport.Start(ctx)
}
