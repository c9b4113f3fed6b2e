package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UserAgent is sent with every upstream request.
const UserAgent = "seqcache"

// UpstreamRepository reads bundles from another seqcache server through
// {BaseURL}/fetch/{algo}/{hash}.
type UpstreamRepository struct {
	BaseURL string
	Client  *http.Client
}

func NewUpstreamRepository(baseURL string, client *http.Client) *UpstreamRepository {
	if client == nil {
		client = http.DefaultClient
	}
	return &UpstreamRepository{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

func (r *UpstreamRepository) url(algo, hash string) string {
	return fmt.Sprintf("%s/fetch/%s/%s", r.BaseURL, algo, hash)
}

// do sends the request and maps a 404 to ErrNotFound and any other non-200
// status to an error. On success the caller owns the body.
func (r *UpstreamRepository) do(ctx context.Context, method, algo, hash string) (*http.Response, error) {
	url := r.url(algo, hash)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", r.BaseURL, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("upstream %s returned status %d", r.BaseURL, resp.StatusCode)
	}
}

// Exists asks the upstream with a HEAD request.
func (r *UpstreamRepository) Exists(ctx context.Context, algo, hash string) (bool, error) {
	resp, err := r.do(ctx, http.MethodHead, algo, hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = resp.Body.Close()
	return true, nil
}

func (r *UpstreamRepository) Get(ctx context.Context, algo, hash string) (io.ReadCloser, int64, error) {
	resp, err := r.do(ctx, http.MethodGet, algo, hash)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}
