package httpclient

import (
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	t.Run("Default", func(t *testing.T) {
		if NewClient(nil, 0) != http.DefaultClient {
			t.Error("expected http.DefaultClient without options")
		}
	})

	t.Run("Untrusted", func(t *testing.T) {
		if _, err := NewClient(nil, time.Second).Get(srv.URL); err == nil {
			t.Error("expected TLS error for an unknown CA")
		}
	})

	t.Run("Custom CA File", func(t *testing.T) {
		caFile := filepath.Join(t.TempDir(), "ca.pem")
		block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
		if err := os.WriteFile(caFile, block, 0644); err != nil {
			t.Fatal(err)
		}

		client, err := LoadClient(caFile, time.Second)
		if err != nil {
			t.Fatalf("LoadClient failed: %v", err)
		}
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("Missing CA File", func(t *testing.T) {
		if _, err := LoadClient(filepath.Join(t.TempDir(), "nope.pem"), 0); err == nil {
			t.Error("expected error for missing CA file")
		}
	})
}
