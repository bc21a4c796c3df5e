package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober decides whether a gateway is answering on an address.
type Prober interface {
	IsAlive(ctx context.Context, host string, port int) bool
}

// Probe checks liveness with an HTTP GET against the session listing.
type Probe struct {
	client *http.Client
}

// NewProbe creates a probe whose requests give up after timeout.
func NewProbe(timeout time.Duration) *Probe {
	return &Probe{
		client: &http.Client{Timeout: timeout},
	}
}

// ProbeURL returns the URL used to check a gateway on host:port.
func ProbeURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d/tull/api", host, port)
}

// IsAlive reports whether anything answered the request with an HTTP
// response, whatever its status. Connection, DNS and timeout failures all
// mean not alive.
func (p *Probe) IsAlive(ctx context.Context, host string, port int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ProbeURL(host, port), nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}
