package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/develove/develove/internal/installer"
	"github.com/go-chi/chi/v5"
)

// installLock rejects concurrent install requests so the bootstrap sequence
// never runs twice at once.
var installLock sync.Mutex

// InstallHandler handles installation endpoints.
type InstallHandler struct {
	*Handler
	events *eventBus
}

// NewInstallHandler creates a new installation handler. It wires itself as
// the orchestrator's progress sink.
func NewInstallHandler(base *Handler) *InstallHandler {
	h := &InstallHandler{Handler: base, events: newEventBus()}
	h.orch.SetEventFunc(h.events.Publish)
	return h
}

// RegisterRoutes registers installation routes.
func (h *InstallHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/check-installation", h.CheckInstallation)
	r.Post("/api/install", h.Install)
	r.Get("/ws/install", h.InstallEvents)
}

// CheckInstallation reports whether bootstrap has run and whether the runtime
// is serving right now. Server health is probed fresh on every call; the
// completion marker says nothing about liveness.
func (h *InstallHandler) CheckInstallation(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{
		"installed":     h.orch.Installed(),
		"serverRunning": h.probe.ServerRunning(r.Context()),
	})
}

// Install runs the bootstrap sequence. Idempotent: when the completion marker
// exists the active steps are skipped.
func (h *InstallHandler) Install(w http.ResponseWriter, r *http.Request) {
	if !installLock.TryLock() {
		slog.Warn("install already in progress")
		Error(w, http.StatusConflict, "installation already in progress")
		return
	}
	defer installLock.Unlock()

	outcome, err := h.orch.EnsureReady(r.Context())
	if err != nil {
		slog.Error("installation failed", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	resp := map[string]interface{}{
		"success":       true,
		"message":       "Develove installed successfully",
		"serverRunning": outcome.ServerRunning,
	}
	if outcome.Model != "" {
		resp["model"] = outcome.Model
	}
	if outcome.Warning != "" {
		resp["warning"] = outcome.Warning
	}
	JSON(w, http.StatusOK, resp)
}

// InstallEvents streams bootstrap progress events over a WebSocket while an
// install runs. The stream ends when the client disconnects.
func (h *InstallHandler) InstallEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("install events upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.CloseNow()
	}()

	events, cancel := h.events.Subscribe()
	defer cancel()

	// No client messages are expected; CloseRead cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				slog.Debug("install events write failed", "error", err)
				return
			}
			if event.Step == installer.StepDone || event.Error != "" {
				_ = conn.Close(websocket.StatusNormalClosure, "install finished")
				return
			}
		}
	}
}
