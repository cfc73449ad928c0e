// Package installer probes and bootstraps the local Ollama inference runtime.
package installer

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// Probe answers whether the inference runtime is present and serving.
// It holds no state; every answer is computed fresh.
type Probe struct {
	host     string
	client   *http.Client
	lookPath func(string) (string, error)
}

// NewProbe creates a probe against the given runtime host
// (e.g. http://localhost:11434).
func NewProbe(host string) *Probe {
	return &Probe{
		host:     strings.TrimRight(host, "/"),
		client:   &http.Client{Timeout: 3 * time.Second},
		lookPath: exec.LookPath,
	}
}

// BinaryInstalled reports whether the ollama binary is on PATH.
func (p *Probe) BinaryInstalled() bool {
	_, err := p.lookPath("ollama")
	return err == nil
}

// ServerRunning reports whether the runtime's health endpoint answers.
// Never cached; callers must not persist the result.
func (p *Probe) ServerRunning(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
