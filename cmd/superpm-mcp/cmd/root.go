// Package cmd provides the CLI commands for superpm-mcp.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/super-pm-ai/superpm-mcp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "superpm-mcp",
	Short: "superpm-mcp - project management MCP server",
	Long: `superpm-mcp serves project management tools over the Model Context
Protocol: workspace file access, Jira boards and issues, and an
issue-drafting prompt.

Quick start:
  1. Create a config file: superpm.yaml
  2. Run: superpm-mcp serve

Configuration:
  Config is loaded from superpm.yaml in the current directory,
  $HOME/.superpm/, or /etc/superpm/.

  Environment variables can override config values with the SUPERPM_ prefix.
  Example: SUPERPM_SERVER_HTTP_ADDR=127.0.0.1:9090

Commands:
  serve       Start the streamable HTTP server
  stdio       Serve requests over stdin/stdout
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./superpm.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
