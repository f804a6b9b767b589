package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"autosubs/internal/session"
)

var videoExtensions = map[string]bool{
	".avi":  true,
	".m2ts": true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".mp4":  true,
	".mpg":  true,
	".ts":   true,
	".webm": true,
	".wmv":  true,
}

func newScanCommand(cmdCtx *commandContext) *cobra.Command {
	var updateOnly bool
	var fastMode bool
	var quiet bool
	var audio bool

	cmd := &cobra.Command{
		Use:   "scan [path ...]",
		Short: "Process media files and update their library selections",
		Long: `Scan inspects each file's audio and subtitle tracks and updates the
Kodi library so playback starts with the right audio track and, when the
default audio is not in your language, a subtitle track enabled.

Paths may be files or directories; directories are walked for video files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}
			opts, err := cmdCtx.sessionOptions(updateOnly, fastMode, quiet, audio)
			if err != nil {
				return err
			}

			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no video files found under the given paths")
			}

			store, err := cmdCtx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			cfg, _ := cmdCtx.ensureConfig()
			// Without a terminal there is nobody to answer prompts, so
			// recommendations are applied the way quiet mode applies them.
			var confirmer session.Confirmer
			if !opts.Quiet && stdinIsTerminal() {
				confirmer = newTerminalConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			sess := session.New(store, probeExtractor{binary: cfg.FFprobeBinary()}, confirmer, opts, logger)
			summary := sess.Run(ctx, files)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d file(s): %d changed, %d skipped, %d failed\n",
				summary.Processed, summary.Changed, summary.Skipped, summary.Failed)
			for _, failure := range summary.Failures {
				fmt.Fprintf(out, "  failed: %s: %v\n", failure.Path, failure.Err)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d file(s) failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&updateOnly, "update-only", "u", false, "Skip files that already have a selection recorded")
	cmd.Flags().BoolVarP(&fastMode, "fast", "f", false, "Trust the library's recorded audio language and skip probing when it matches")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Accept recommendations without prompting (implies --update-only --fast)")
	cmd.Flags().BoolVarP(&audio, "audio", "a", false, "Also recommend switching the default audio track")

	return cmd
}

// collectFiles expands the given paths into a sorted, de-duplicated list of
// video files. Directories are walked recursively.
func collectFiles(paths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		stat, err := os.Stat(absolute)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !stat.IsDir() {
			// Explicitly named files are taken as-is, whatever the extension.
			add(absolute)
			continue
		}
		err = filepath.WalkDir(absolute, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if videoExtensions[strings.ToLower(filepath.Ext(entry))] {
				add(entry)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
