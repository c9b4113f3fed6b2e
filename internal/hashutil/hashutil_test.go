package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSum(t *testing.T) {
	content := "frame bytes"
	want := sha256.Sum256([]byte(content))

	got, n, err := Sum("sha256", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Errorf("expected %x, got %s", want, got)
	}
	if n != int64(len(content)) {
		t.Errorf("expected %d bytes, got %d", len(content), n)
	}
}

func TestSum_UnsupportedAlgo(t *testing.T) {
	if _, _, err := Sum("md4", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if IsSupported("md4") {
		t.Error("md4 should not be supported")
	}
	if !IsSupported(DefaultAlgo) {
		t.Errorf("%s should be supported", DefaultAlgo)
	}
}
