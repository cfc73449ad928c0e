package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"strings"
	"sync"
	"time"
)

// installScript installs Ollama on Linux and macOS.
const installScript = "curl -fsSL https://ollama.ai/install.sh | sh"

// manualInstallHint is appended to terminal platform failures.
const manualInstallHint = "install Ollama manually from https://ollama.ai/download"

// Terminal bootstrap failures, distinguishable with errors.Is.
var (
	// ErrUnsupportedPlatform means automatic install cannot run on this OS.
	ErrUnsupportedPlatform = errors.New("automatic install is not supported on this platform")
	// ErrInstallFailed means the runtime install command did not succeed.
	ErrInstallFailed = errors.New("runtime install failed")
	// ErrNoModelAvailable means every candidate model failed to download.
	ErrNoModelAvailable = errors.New("no model available")
)

// Step identifies a bootstrap step for progress reporting.
type Step string

// Bootstrap steps in execution order.
const (
	StepCheck   Step = "check"
	StepInstall Step = "install"
	StepModel   Step = "model"
	StepServe   Step = "serve"
	StepMarker  Step = "marker"
	StepDone    Step = "done"
)

// Event is a progress notification emitted while the bootstrap sequence runs.
type Event struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Outcome describes the result of a successful EnsureReady call.
type Outcome struct {
	// AlreadyInstalled is true when the completion marker existed and the
	// bootstrap steps were skipped.
	AlreadyInstalled bool
	// Model is the identifier of the model that was pulled, empty when the
	// bootstrap was skipped.
	Model string
	// ServerRunning is the freshly probed server health at the end of the call.
	ServerRunning bool
	// Warning holds a non-fatal condition (server started, health unconfirmed).
	Warning string
}

// Orchestrator drives the idempotent runtime bootstrap: install the runtime,
// pull a model from a prioritized candidate list, confirm or start the server
// and record the completion marker. It owns the marker exclusively and never
// touches chat data.
type Orchestrator struct {
	probe      *Probe
	runner     CommandRunner
	markerPath string
	models     []string
	healthWait time.Duration

	goos    string
	mu      sync.Mutex
	onEvent func(Event)
}

// NewOrchestrator creates an orchestrator. models is the prioritized candidate
// list tried in order during bootstrap; healthWait bounds the single wait for
// the server to come up after starting it.
func NewOrchestrator(probe *Probe, runner CommandRunner, markerPath string, models []string, healthWait time.Duration) *Orchestrator {
	return &Orchestrator{
		probe:      probe,
		runner:     runner,
		markerPath: markerPath,
		models:     models,
		healthWait: healthWait,
		goos:       goruntime.GOOS,
	}
}

// SetEventFunc installs a progress callback. Must be called before any
// EnsureReady/Install call.
func (o *Orchestrator) SetEventFunc(fn func(Event)) {
	o.onEvent = fn
}

// Installed reports whether the completion marker exists. Its presence means
// "the bootstrap sequence has executed", not "the server is live right now".
func (o *Orchestrator) Installed() bool {
	_, err := os.Stat(o.markerPath)
	return err == nil
}

// MarkerTimestamp returns the marker file content, an ISO-8601 timestamp.
// Diagnostics only; control flow depends solely on the marker's existence.
func (o *Orchestrator) MarkerTimestamp() (string, error) {
	data, err := os.ReadFile(o.markerPath)
	if err != nil {
		return "", fmt.Errorf("read completion marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// EnsureReady runs the bootstrap sequence unless the completion marker already
// exists, in which case the active steps are skipped. Safe to call on every
// cold start. Concurrent calls are serialized. A nil error does not guarantee
// the server is live; check Outcome.ServerRunning or probe separately.
func (o *Orchestrator) EnsureReady(ctx context.Context) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Installed() {
		o.emit(StepDone, "setup already complete", nil)
		return &Outcome{
			AlreadyInstalled: true,
			ServerRunning:    o.probe.ServerRunning(ctx),
		}, nil
	}
	return o.install(ctx)
}

// Install runs the full bootstrap sequence regardless of the marker.
// Concurrent calls are serialized.
func (o *Orchestrator) Install(ctx context.Context) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.install(ctx)
}

func (o *Orchestrator) install(ctx context.Context) (*Outcome, error) {
	// Step 1+2: probe for the binary, install only when absent.
	o.emit(StepCheck, "checking for the ollama binary", nil)
	if o.probe.BinaryInstalled() {
		o.emit(StepCheck, "ollama is already installed", nil)
	} else if err := o.installRuntime(ctx); err != nil {
		o.emit(StepInstall, "runtime install failed", err)
		return nil, err
	}

	// Step 3: pull the first candidate model that succeeds.
	model, err := o.pullModel(ctx)
	if err != nil {
		o.emit(StepModel, "model download failed", err)
		return nil, err
	}

	outcome := &Outcome{Model: model}

	// Step 4: confirm the server or start it. Slow startup is not fatal.
	outcome.ServerRunning, outcome.Warning = o.ensureServer(ctx)
	if outcome.Warning != "" {
		slog.Warn("bootstrap finished with unconfirmed server health", "warning", outcome.Warning)
	}

	// Step 5: the marker records that the sequence executed, not liveness.
	o.emit(StepMarker, "recording completion marker", nil)
	if err := o.writeMarker(); err != nil {
		o.emit(StepMarker, "failed to record completion marker", err)
		return nil, err
	}

	o.emit(StepDone, "setup complete", nil)
	return outcome, nil
}

func (o *Orchestrator) installRuntime(ctx context.Context) error {
	switch o.goos {
	case "linux", "darwin":
		o.emit(StepInstall, "installing ollama", nil)
		if err := o.runner.Run(ctx, "sh", "-c", installScript); err != nil {
			return fmt.Errorf("%w: %v", ErrInstallFailed, err)
		}
		o.emit(StepInstall, "ollama installed", nil)
		return nil
	case "windows":
		return fmt.Errorf("%w (windows): %s", ErrUnsupportedPlatform, manualInstallHint)
	default:
		return fmt.Errorf("%w (%s): %s", ErrUnsupportedPlatform, o.goos, manualInstallHint)
	}
}

func (o *Orchestrator) pullModel(ctx context.Context) (string, error) {
	for _, model := range o.models {
		o.emit(StepModel, "downloading model "+model, nil)
		if err := o.runner.Run(ctx, "ollama", "pull", model); err != nil {
			slog.Warn("model pull failed, trying next candidate", "model", model, "error", err)
			continue
		}
		o.emit(StepModel, "downloaded model "+model, nil)
		return model, nil
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoModelAvailable, strings.Join(o.models, ", "))
}

// ensureServer returns the confirmed health and a warning when health could
// not be confirmed. The started process is not supervised beyond the single
// readiness re-check; a later probe is the only way to learn it died.
func (o *Orchestrator) ensureServer(ctx context.Context) (running bool, warning string) {
	if o.probe.ServerRunning(ctx) {
		o.emit(StepServe, "ollama server is already running", nil)
		return true, ""
	}

	o.emit(StepServe, "starting ollama server", nil)
	if err := o.runner.Start("ollama", "serve"); err != nil {
		warning = "could not start the ollama server: " + err.Error() + "; start it manually with 'ollama serve'"
		o.emit(StepServe, warning, nil)
		return false, warning
	}

	select {
	case <-ctx.Done():
		return false, "canceled while waiting for the server to come up"
	case <-time.After(o.healthWait):
	}

	if o.probe.ServerRunning(ctx) {
		o.emit(StepServe, "ollama server started", nil)
		return true, ""
	}
	warning = "server started, health unconfirmed; it may still be coming up"
	o.emit(StepServe, warning, nil)
	return false, warning
}

func (o *Orchestrator) writeMarker() error {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(o.markerPath, []byte(timestamp), 0644); err != nil {
		return fmt.Errorf("write completion marker: %w", err)
	}
	return nil
}

func (o *Orchestrator) emit(step Step, message string, err error) {
	if err != nil {
		slog.Error("bootstrap step failed", "step", string(step), "error", err)
	} else {
		slog.Info("bootstrap progress", "step", string(step), "message", message)
	}
	if o.onEvent == nil {
		return
	}
	event := Event{Step: step, Message: message}
	if err != nil {
		event.Error = err.Error()
	}
	o.onEvent(event)
}
