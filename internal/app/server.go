// Package app wires the packages of seqcache into the pieces the command line
// runs: the bundle store, the HTTP server, the frame cache and the label
// provider.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/handler"
)

// NewServer creates the HTTP server exposing bundles and labels. The returned
// cleanup stops eviction and closes the store.
func NewServer(cfg Config) (*http.Server, func(), error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go store.Start(ctx)

	casHandler := handler.NewCASHandler(store.Repo, store.Upstreams)
	labelHandler := handler.NewLabelHandler(store.Catalog)
	mux := handler.NewMux(casHandler, labelHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting server", "addr", addr, "cache_dir", cfg.CacheDir, "upstreams", len(store.Upstreams))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	cleanup := func() {
		cancel()
		errutil.Close(store, "Failed to close store")
	}
	return server, cleanup, nil
}
