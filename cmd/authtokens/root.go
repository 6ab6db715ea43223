// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/authtokens/internal/config"
	"github.com/holomush/authtokens/internal/logging"
	"github.com/holomush/authtokens/internal/xdg"
)

// NewRootCmd creates the root command for the authtokens CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "authtokens",
		Short: "authtokens - credential and session token maintenance",
		Long: `authtokens manages the database schema and the scheduled maintenance
of refresh sessions and single-use action tokens.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file path (default: $XDG_CONFIG_HOME/authtokens/config.yaml if present)")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newCleanupCmd(deps))
	cmd.AddCommand(newBackfillCmd(deps))
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig reads the configuration for cmd from --config, or the XDG
// config file when --config is not given, and the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(path, cmd.Flags())
}

// setupLogger builds the command logger and installs it as the default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup("authtokens", version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger, nil
}

// loadRuntime loads and validates the config and sets up logging.
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := setupLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
