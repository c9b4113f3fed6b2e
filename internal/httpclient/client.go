// Package httpclient builds the client used to reach upstream servers.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lucasew/seqcache/internal/errutil"
)

// DefaultTimeout bounds a whole upstream request, body included.
const DefaultTimeout = 30 * time.Second

// NewClient returns a client trusting the system roots plus the PEM
// certificates in caPEM. With no extra certificates and no timeout it
// returns http.DefaultClient.
func NewClient(caPEM []byte, timeout time.Duration) *http.Client {
	if len(caPEM) == 0 && timeout <= 0 {
		return http.DefaultClient
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil || rootCAs == nil {
		errutil.LogMsg(err, "System certificate pool unavailable")
		rootCAs = x509.NewCertPool()
	}
	if len(caPEM) > 0 && !rootCAs.AppendCertsFromPEM(caPEM) {
		errutil.ReportError(fmt.Errorf("no certificate found"), "Failed to parse custom CA certificate")
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				RootCAs: rootCAs,
			},
		},
		Timeout: timeout,
	}
}

// LoadClient reads extra CA certificates from caFile, if set.
func LoadClient(caFile string, timeout time.Duration) (*http.Client, error) {
	if caFile == "" {
		return NewClient(nil, timeout), nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	return NewClient(pem, timeout), nil
}
