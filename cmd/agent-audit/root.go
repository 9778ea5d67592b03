// Package main provides the agent-audit CLI application.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/agentaudit"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/config"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/hooks"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/host"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/observability"
)

// rootFlags holds the persistent flags shared by all commands
type rootFlags struct {
	dir      string
	config   string
	logLevel string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "agent-audit",
		Short: "Cross-agent audit trail",
		Long: `agent-audit records agent activity to _logs/agent-audit.jsonl.

It runs as a plugin host adapter: the agent runtime streams its
callbacks to stdin and agent-audit appends session lifecycle events,
git/gh/gt/bun shell commands and file writes to the audit log.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", "", "Working directory of the session (default is the current directory)")
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// session is a loaded plugin host for one working directory.
type session struct {
	logger *slog.Logger
	server *host.Server
}

// setup loads config and the audit plugin. Loading the plugin records
// plugin.init.
func setup(ctx context.Context, cmd *cobra.Command, opts *rootFlags) (*session, error) {
	dir := opts.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	cfg, err := config.NewLoader().
		WithProjectRoot(dir).
		WithConfigFile(opts.config).
		Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Global.LogLevel = opts.logLevel
		if err := cfg.Global.Validate(); err != nil {
			return nil, err
		}
	}

	logger := observability.NewLogger(cfg.Global.LogLevel, cmd.ErrOrStderr())

	registry := hooks.NewRegistry()
	id, err := registry.Load(ctx, agentaudit.PluginName,
		agentaudit.New(agentaudit.WithConfig(cfg.Audit)),
		hooks.PluginInput{Directory: dir},
	)
	if err != nil {
		return nil, err
	}
	logger.Debug("Plugin loaded", "plugin", agentaudit.PluginName, "id", id, "directory", dir)

	return &session{
		logger: logger,
		server: host.NewServer(registry, logger),
	}, nil
}
