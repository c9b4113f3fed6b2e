package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/eviction"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serves bundles and labels over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := storeConfig()
		cfg.Port = viper.GetInt("port")

		server, cleanup, err := app.NewServer(cfg)
		exitOnError(err, "Failed to initialize server")
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().Int("port", 8080, "Port to run the server on")
	serverCmd.Flags().Int64("max-cache-size", 1024*1024*1024, "Max bundle cache size in bytes (default 1GB)")
	serverCmd.Flags().Int64("min-free-space", 0, "Min free disk space in bytes")
	serverCmd.Flags().Duration("eviction-interval", time.Minute, "Interval to check for evictions")
	serverCmd.Flags().String("eviction-strategy", "lru", fmt.Sprintf("Eviction strategy to use (%s)", strings.Join(eviction.Strategies(), ", ")))

	mustBindPFlag("port", serverCmd.Flags().Lookup("port"))
	mustBindPFlag("max-cache-size", serverCmd.Flags().Lookup("max-cache-size"))
	mustBindPFlag("min-free-space", serverCmd.Flags().Lookup("min-free-space"))
	mustBindPFlag("eviction-interval", serverCmd.Flags().Lookup("eviction-interval"))
	mustBindPFlag("eviction-strategy", serverCmd.Flags().Lookup("eviction-strategy"))
}
