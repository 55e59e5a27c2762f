package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"fomopomo/internal/outbox"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload sessions recorded while offline",
		Args:  cobra.NoArgs,
		RunE:  runSyncCmd,
	}
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}

	logger := log.New(os.Stderr, "fomopomo: ", log.LstdFlags)
	box, err := outbox.Open(cmd.Context(), ws.cfg.OutboxPath(), ws.api, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := box.Close(); cerr != nil {
			logErrf("failed to close outbox: %v\n", cerr)
		}
	}()

	ctx, cancel := requestContext(cmd)
	defer cancel()
	sent, flushErr := box.Flush(ctx)

	counts, err := box.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d, pending %d, rejected %d\n",
		sent, counts[outbox.StatePending], counts[outbox.StateRejected])
	return flushErr
}
