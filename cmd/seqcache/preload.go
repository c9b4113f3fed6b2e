package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/sequence"
	"github.com/lucasew/seqcache/internal/tick"
	"github.com/lucasew/seqcache/internal/watch"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const progressSteps = 1000

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Loads every sequence under the sequences root",
	Run: func(cmd *cobra.Command, args []string) {
		watchRoot, err := cmd.Flags().GetBool("watch")
		exitOnError(err, "Failed to get watch flag")

		settings, err := loadSettings()
		exitOnError(err, "Failed to load settings")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		tracker := frame.NewTracker()
		cache := app.NewCache(settings, tick.NewRealtime(0), tracker)
		defer cache.ClearCache()

		exitOnError(preload(ctx, cache), "Preload failed")
		printTable(os.Stdout, cache)

		if !watchRoot {
			return
		}
		if err := watchSequences(ctx, settings.SequencesRoot, cache); err != nil && !errors.Is(err, context.Canceled) {
			errutil.ReportError(err, "Watch failed")
			os.Exit(1)
		}
	},
}

func newProgressBar(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		progressSteps,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprint(os.Stderr, "\n"); err != nil {
				errutil.LogMsg(err, "Failed to print newline to stderr")
			}
		}),
	)
}

func preload(ctx context.Context, cache *sequence.Cache) error {
	bar := newProgressBar("preloading")
	onProgress := func(p float64) {
		errutil.LogMsg(bar.Set(int(p*progressSteps)), "Failed to update progress bar")
	}
	onStatus := func(status string) {
		bar.Describe(status)
	}
	return cache.PreloadAll(ctx, onProgress, onStatus)
}

func printTable(w io.Writer, cache *sequence.Cache) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQUENCE\tFRAMES\tFAILED\tMEMORY")
	for _, name := range cache.Names() {
		seq, ok := cache.GetSequence(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", name, seq.FrameCount(), seq.FailedFrames(), frame.FormatBytes(seq.MemoryUsage()))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t\t%s\n", cache.Count(), frame.FormatBytes(cache.MemoryUsage()))
	errutil.LogMsg(tw.Flush(), "Failed to write table")
}

// watchSequences reloads sequences as their frames change on disk until ctx
// is done.
func watchSequences(ctx context.Context, root string, cache *sequence.Cache) error {
	w, err := watch.NewWatcher(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer errutil.Close(w, "Failed to close watcher")

	slog.Info("Watching sequences", "root", root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			errutil.LogMsg(err, "Watcher error")
		case name, ok := <-w.Events:
			if !ok {
				return nil
			}
			if cache.Unload(name) {
				slog.Info("Sequence changed, reloading", "sequence", name)
			}
			if err := cache.PreloadAll(ctx, nil, nil); err != nil {
				return err
			}
			if seq, ok := cache.GetSequence(name); ok {
				slog.Info("Sequence reloaded", "sequence", name, "frames", seq.FrameCount(), "memory", frame.FormatBytes(seq.MemoryUsage()))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(preloadCmd)
	preloadCmd.Flags().Bool("watch", false, "Keep running and reload sequences that change on disk")
}
