package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fomopomo/internal/client"
	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/settings"
)

var settingsSetPush bool

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and sync timer settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cached settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Replace the cache with the server copy",
		Args:  cobra.NoArgs,
		RunE:  runSettingsPullCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload the cache on top of the version it came from",
		Args:  cobra.NoArgs,
		RunE:  runSettingsPushCmd,
	})

	setCmd := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change cached settings (keys: " + strings.Join(settings.Keys, ", ") + ")",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSettingsSetCmd,
	}
	setCmd.Flags().BoolVar(&settingsSetPush, "push", false, "upload after saving")
	cmd.AddCommand(setCmd)

	return cmd
}

func runSettingsShowCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	cached, err := settings.Load(ws.cfg.SettingsPath())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(settings.Keys)+len(cached.Settings.Presets))
	for _, key := range settings.Keys {
		value, _ := settings.Get(cached.Settings, key)
		rows = append(rows, []string{key, value})
	}
	for i, preset := range cached.Settings.Presets {
		rows = append(rows, []string{fmt.Sprintf("preset %d", i+1), fmt.Sprintf("%s (%dm)", preset.Label, preset.Minutes)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Version %d (%s)\n", cached.Version, ws.cfg.SettingsPath())
	return renderTable(cmd.OutOrStdout(), []string{"Setting", "Value"}, rows, nil)
}

func runSettingsPullCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	remote, err := ws.api.GetSettings(ctx)
	if err != nil {
		return err
	}
	cached := settings.Cached{Settings: settings.Normalize(remote.Settings), Version: remote.Version}
	if err := settings.Save(ws.cfg.SettingsPath(), cached); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pulled settings version %d\n", cached.Version)
	return nil
}

func runSettingsPushCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	return pushSettings(cmd, ws)
}

func runSettingsSetCmd(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	path := ws.cfg.SettingsPath()
	cached, err := settings.Load(path)
	if err != nil {
		return err
	}

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		if err := settings.Set(&cached.Settings, strings.TrimSpace(key), value); err != nil {
			return err
		}
	}
	if err := settings.Validate(cached.Settings); err != nil {
		return err
	}
	if err := settings.Save(path, cached); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d setting(s)\n", len(args))

	if !settingsSetPush {
		return nil
	}
	return pushSettings(cmd, ws)
}

// pushSettings uploads the cache. A stale base version is reported with the
// server's copy left untouched.
func pushSettings(cmd *cobra.Command, ws *workspace) error {
	if err := ws.requireLogin(); err != nil {
		return err
	}
	path := ws.cfg.SettingsPath()
	cached, err := settings.Load(path)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	saved, err := ws.api.UpdateSettings(ctx, cached.Version, cached.Settings)
	if err != nil {
		if client.IsConflict(err) {
			return fmt.Errorf("settings changed on another device; run: fomopomo settings pull")
		}
		if apperrors.HasCode(err, apperrors.CodeInvalidSettings) {
			return fmt.Errorf("server rejected settings: %w", err)
		}
		return err
	}

	cached.Version = saved.Version
	if err := settings.Save(path, cached); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pushed settings version %d\n", saved.Version)
	return nil
}
