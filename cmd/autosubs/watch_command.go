package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autosubs/internal/kodirpc"
	"autosubs/internal/session"
)

func newWatchCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow Kodi library scans and process newly added movies",
		Long: `Watch connects to Kodi's JSON-RPC service, collects the movies each
library scan adds, and processes them once the scan finishes. It runs
unattended, so recommendations are applied quietly and existing selections
are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := cmdCtx.sessionOptions(false, false, true, false)
			if err != nil {
				return err
			}

			client, err := kodirpc.Dial(ctx, cfg.Kodi.Address, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			logger = logger.With("component", "watch")
			logger.Info("watching kodi library", "address", cfg.Kodi.Address)

			events := client.WatchLibrary(ctx)
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						return fmt.Errorf("kodi connection lost")
					}
					logger.Info("library scan finished", "new_movies", len(ev.Paths))
					if err := processScanBatch(ctx, cmdCtx, opts, logger, ev.Paths); err != nil {
						logger.Error("process scan batch", "error", err)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		},
	}
	return cmd
}

// processScanBatch runs a quiet session over one scan's new movies. The
// store is opened per batch so the database is only touched while work is
// in flight.
func processScanBatch(ctx context.Context, cmdCtx *commandContext, opts session.Options, logger *slog.Logger, paths []string) error {
	store, err := cmdCtx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, _ := cmdCtx.ensureConfig()
	sess := session.New(store, probeExtractor{binary: cfg.FFprobeBinary()}, nil, opts, logger)
	summary := sess.Run(ctx, paths)
	logger.Info("scan batch processed",
		"processed", summary.Processed, "changed", summary.Changed,
		"skipped", summary.Skipped, "failed", summary.Failed)
	for _, failure := range summary.Failures {
		logger.Error("file failed", "path", failure.Path, "error", failure.Err)
	}
	return nil
}
