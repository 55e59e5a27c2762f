// Package main provides the fomopomo terminal client.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fomopomo/internal/client"
	"fomopomo/internal/config"
)

const requestTimeout = 15 * time.Second

var (
	configPath string
	serverURL  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fomopomo",
		Short:        "Pomodoro timer with shared study presence",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "client config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newTimerCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newPresenceCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newSyncCmd())

	return rootCmd
}

// workspace bundles the loaded config with an API client built from it.
type workspace struct {
	cfg config.FileConfig
	api *client.Client
}

func loadWorkspace() (*workspace, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	return &workspace{
		cfg: cfg,
		api: client.New(cfg.ServerURL(), client.WithToken(cfg.Server.Token)),
	}, nil
}

func (w *workspace) loggedIn() bool {
	return w.cfg.Server.Token != ""
}

func (w *workspace) requireLogin() error {
	if !w.loggedIn() {
		return fmt.Errorf("not logged in (run: fomopomo login)")
	}
	return nil
}

func (w *workspace) saveToken(token string) error {
	w.cfg.Server.Token = token
	if err := config.SaveClient(configPath, w.cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		_ = err
	}
}
