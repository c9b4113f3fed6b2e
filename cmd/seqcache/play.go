package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/config"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/frame"
	"github.com/lucasew/seqcache/internal/player"
	"github.com/lucasew/seqcache/internal/surface"
	"github.com/lucasew/seqcache/internal/tick"
	"github.com/spf13/cobra"
)

// randomTransition is the --transition value that picks one at random.
const randomTransition = "random"

var playCmd = &cobra.Command{
	Use:   "play [sequence]",
	Short: "Plays a sequence or a transition into a directory of PNG files",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fps, err := cmd.Flags().GetFloat64("fps")
		exitOnError(err, "Failed to get fps flag")
		out, err := cmd.Flags().GetString("out")
		exitOnError(err, "Failed to get out flag")
		trName, err := cmd.Flags().GetString("transition")
		exitOnError(err, "Failed to get transition flag")
		fromBundles, err := cmd.Flags().GetBool("label")
		exitOnError(err, "Failed to get label flag")

		if len(args) == 0 && trName == "" {
			exitOnError(fmt.Errorf("a sequence or --transition is required"), "Nothing to play")
		}

		settings, err := loadSettings()
		exitOnError(err, "Failed to load settings")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		surf, err := surface.NewDir(out)
		exitOnError(err, "Failed to create surface")

		tracker := frame.NewTracker()
		sched := tick.NewRealtime(0)

		var p *player.Player
		if fromBundles {
			store, err := app.OpenStore(storeConfig())
			exitOnError(err, "Failed to open store")
			defer errutil.Close(store, "Failed to close store")

			prov := app.NewProvider(store, settings, tracker)
			defer prov.ReleaseAll()
			for _, label := range playLabels(settings, args, trName) {
				_, err := prov.LoadByLabel(ctx, label)
				exitOnError(err, "Failed to load label", "label", label)
			}
			p = player.New(prov, sched)
		} else {
			cache := app.NewCache(settings, sched, tracker)
			defer cache.ClearCache()
			exitOnError(preload(ctx, cache), "Preload failed")
			p = player.New(cache, sched)
		}

		start := time.Now()
		if trName != "" {
			err = playTransition(ctx, p, settings, trName, surf, tracker, sched)
		} else {
			err = p.Play(ctx, args[0], fps, surf, nil)
		}
		exitOnError(err, "Playback failed")
		exitOnError(surf.Err(), "Failed to write frames")

		slog.Info("Playback finished", "frames", surf.Written(), "out", out, "elapsed", time.Since(start).Round(time.Millisecond))
	},
}

// playLabels lists the labels a bundle playback needs.
func playLabels(s config.Settings, args []string, trName string) []string {
	if trName == "" {
		return args
	}
	if tr, ok := s.Transition(trName); ok {
		return []string{tr.EntrySequence, tr.ExitSequence}
	}
	var labels []string
	for _, tr := range s.Transitions {
		labels = append(labels, tr.EntrySequence, tr.ExitSequence)
	}
	return labels
}

func playTransition(ctx context.Context, p *player.Player, s config.Settings, name string, surf player.Surface, tracker *frame.Tracker, sched tick.Scheduler) error {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	var tr config.Transition
	var ok bool
	if name == randomTransition {
		tr, ok = s.RandomTransition(rng)
	} else {
		tr, ok = s.Transition(name)
	}
	if !ok {
		return fmt.Errorf("unknown transition %q", name)
	}

	loading := time.Duration(0)
	if s.ShouldUseLongLoading(rng) {
		loading = s.LongLoadingDuration
	}
	slog.Info("Playing transition", "transition", tr.Name, "entry", tr.EntrySequence, "exit", tr.ExitSequence, "loading", loading)

	work := func(ctx context.Context) error {
		if loading <= 0 {
			return nil
		}
		return sched.Wait(ctx, loading)
	}
	return p.PlayTransition(ctx, tr.Player(), surf, tracker, work)
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Float64("fps", config.DefaultFrameRate, "Playback frame rate")
	playCmd.Flags().StringP("out", "o", "./out", "Directory the displayed frames are written to")
	playCmd.Flags().String("transition", "", "Play a configured transition by name, or \"random\"")
	playCmd.Flags().Bool("label", false, "Load sequences from registered bundles instead of the sequences root")
}
