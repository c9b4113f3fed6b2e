// Package handler serves bundles and catalog labels over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lucasew/seqcache/internal/catalog"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/hashutil"
	"github.com/lucasew/seqcache/internal/repository"
)

// Store is the local side of the handler: it can serve and store bundles.
type Store interface {
	repository.Repository
	Put(ctx context.Context, algo, hash string, fetcher repository.Fetcher) error
}

// CASHandler serves bundles by content hash at /fetch/{algo}/{hash}.
//
// Local hits are served directly. On a miss the bundle is pulled from the
// first upstream that has it, verified, stored locally and then served.
type CASHandler struct {
	Local     Store
	Upstreams []repository.Repository
}

func NewCASHandler(local Store, upstreams []repository.Repository) *CASHandler {
	return &CASHandler{
		Local:     local,
		Upstreams: upstreams,
	}
}

func (h *CASHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "fetch" {
		http.Error(w, "Invalid path format. Expected /fetch/{algo}/{hash}", http.StatusBadRequest)
		return
	}
	algo := parts[1]
	hash := parts[2]

	if !hashutil.IsSupported(algo) {
		http.Error(w, fmt.Sprintf("Unsupported hash algorithm: %s", algo), http.StatusBadRequest)
		return
	}
	if !isHex(hash) {
		http.Error(w, "Invalid hash", http.StatusBadRequest)
		return
	}

	if h.serveLocal(w, r, algo, hash) {
		slog.Debug("Cache hit", "algo", algo, "hash", hash)
		return
	}

	slog.Info("Cache miss", "algo", algo, "hash", hash)

	if r.Method == http.MethodHead {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	fetcher := repository.FromUpstreams(r.Context(), h.Upstreams, algo, hash)
	if err := h.Local.Put(r.Context(), algo, hash, fetcher); err != nil {
		errutil.ReportError(err, "Failed to fetch/store", "algo", algo, "hash", hash)
		http.Error(w, fmt.Sprintf("Failed to fetch: %v", err), http.StatusNotFound)
		return
	}

	if !h.serveLocal(w, r, algo, hash) {
		http.Error(w, "Failed to retrieve after store", http.StatusInternalServerError)
	}
}

func (h *CASHandler) serveLocal(w http.ResponseWriter, r *http.Request, algo, hash string) bool {
	reader, size, err := h.Local.Get(r.Context(), algo, hash)
	if err != nil {
		return false
	}
	defer errutil.Close(reader, "Failed to close bundle", "hash", hash)

	h.setCacheHeaders(w, algo, hash)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	if r.Method == http.MethodHead {
		return true
	}
	_, err = io.Copy(w, reader)
	errutil.LogMsg(err, "Failed to send bundle", "algo", algo, "hash", hash)
	return true
}

// setCacheHeaders marks the response as immutable: the URL names the content.
func (h *CASHandler) setCacheHeaders(w http.ResponseWriter, algo, hash string) {
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Link", fmt.Sprintf("</fetch/%s/%s>; rel=\"canonical\"", algo, hash))
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Labels is the part of the catalog the label handler reads.
type Labels interface {
	Get(ctx context.Context, label string) (catalog.Entry, bool, error)
	List(ctx context.Context) ([]catalog.Entry, error)
}

// LabelHandler answers GET /labels and GET /labels/{label} with JSON.
type LabelHandler struct {
	Labels Labels
}

func NewLabelHandler(labels Labels) *LabelHandler {
	return &LabelHandler{Labels: labels}
}

func (h *LabelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	label := strings.Trim(strings.TrimPrefix(r.URL.Path, "/labels"), "/")

	if label == "" {
		entries, err := h.Labels.List(r.Context())
		if err != nil {
			errutil.ReportError(err, "Failed to list labels")
			http.Error(w, "Failed to list labels", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []catalog.Entry{}
		}
		writeJSON(w, entries)
		return
	}

	entry, found, err := h.Labels.Get(r.Context(), label)
	if err != nil {
		errutil.ReportError(err, "Failed to get label", "label", label)
		http.Error(w, "Failed to get label", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Label not found", http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	errutil.LogMsg(json.NewEncoder(w).Encode(v), "Failed to write response")
}

// NewMux routes /fetch/ and /labels to their handlers.
func NewMux(cas *CASHandler, labels *LabelHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/fetch/", cas)
	if labels != nil {
		mux.Handle("/labels", labels)
		mux.Handle("/labels/", labels)
	}
	return mux
}
