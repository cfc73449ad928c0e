package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/develove/develove/internal/domain"
	"github.com/develove/develove/internal/installer"
	"github.com/develove/develove/internal/llm"
	"github.com/develove/develove/internal/store"
	"github.com/go-chi/chi/v5"
)

// newTestRuntime serves the Ollama surface the handlers depend on: /api/tags
// for health and /api/generate answering with raw.
func newTestRuntime(t *testing.T, raw string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]string{"response": raw})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, name string, args ...string) error { return nil }
func (noopRunner) Start(name string, args ...string) error                    { return nil }

// newTestServer wires a full router against a temp store and the given
// runtime URL, mirroring the wiring in cmd/server.
func newTestServer(t *testing.T, runtimeURL string) (*httptest.Server, store.Repository) {
	t.Helper()
	return newTestServerWithRunner(t, runtimeURL, noopRunner{})
}

func newTestServerWithRunner(t *testing.T, runtimeURL string, runner installer.CommandRunner) (*httptest.Server, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "develove.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	probe := installer.NewProbe(runtimeURL)
	marker := filepath.Join(t.TempDir(), ".develove-installed")
	orch := installer.NewOrchestrator(probe, runner, marker, []string{"codellama:7b"}, 10*time.Millisecond)
	gateway := llm.NewGateway(runtimeURL, "codellama:7b", 5*time.Second)

	base := NewHandler(repo, gateway, orch, probe)
	r := chi.NewRouter()
	NewInstallHandler(base).RegisterRoutes(r)
	NewChatHandler(base).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestChatTurnPersistsConversation(t *testing.T) {
	runtime := newTestRuntime(t, "RESPONSE: Here it is\nCODE: <div>Hero</div>\nLANGUAGE: html")
	srv, repo := newTestServer(t, runtime.URL)
	ctx := context.Background()

	chat, err := repo.CreateChat(ctx, "Landing Page")
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"message": "make a hero section",
		"chat_id": chat.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var got llm.Result
	decodeBody(t, resp, &got)
	if got.Response != "Here it is" {
		t.Errorf("Expected response %q, got %q", "Here it is", got.Response)
	}
	if got.Code != "<div>Hero</div>" {
		t.Errorf("Expected code %q, got %q", "<div>Hero</div>", got.Code)
	}
	if got.Language != "html" {
		t.Errorf("Expected language html, got %q", got.Language)
	}

	stored, err := repo.GetChat(ctx, chat.ID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if len(stored.Messages) != 2 {
		t.Fatalf("Expected 2 messages (user, assistant), got %d", len(stored.Messages))
	}
	if stored.Messages[0].Role != domain.RoleUser || stored.Messages[0].Content != "make a hero section" {
		t.Errorf("Unexpected user message: %+v", stored.Messages[0])
	}
	if stored.Messages[1].Role != domain.RoleAssistant || stored.Messages[1].Code != "<div>Hero</div>" {
		t.Errorf("Unexpected assistant message: %+v", stored.Messages[1])
	}
	if stored.CurrentCode != "<div>Hero</div>" {
		t.Errorf("Expected artifact %q, got %q", "<div>Hero</div>", stored.CurrentCode)
	}
	if stored.CurrentLanguage != "html" {
		t.Errorf("Expected artifact language html, got %q", stored.CurrentLanguage)
	}
}

func TestChatTurnStateless(t *testing.T) {
	runtime := newTestRuntime(t, "RESPONSE: ok\nCODE: x\nLANGUAGE: css")
	srv, repo := newTestServer(t, runtime.URL)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"message":     "style it",
		"currentCode": "body {}",
		"language":    "css",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	// Nothing persisted without a chat id.
	chats, err := repo.ListChats(context.Background())
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 0 {
		t.Errorf("Expected no chats persisted, got %d", len(chats))
	}
}

func TestChatTurnNoArtifactKeepsExisting(t *testing.T) {
	runtime := newTestRuntime(t, "Just chatting, no labels at all.")
	srv, repo := newTestServer(t, runtime.URL)
	ctx := context.Background()

	chat, _ := repo.CreateChat(ctx, "test")
	_ = repo.UpdateArtifact(ctx, chat.ID, "<p>existing</p>", "html")

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"message": "explain it",
		"chat_id": chat.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	stored, _ := repo.GetChat(ctx, chat.ID)
	// The turn produced no code; the current artifact stays untouched.
	if stored.CurrentCode != "<p>existing</p>" {
		t.Errorf("Expected artifact preserved, got %q", stored.CurrentCode)
	}
	if len(stored.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(stored.Messages))
	}
	if stored.Messages[1].Code != "" {
		t.Errorf("Expected no code on the assistant message, got %q", stored.Messages[1].Code)
	}
}

func TestChatTurnEmptyMessageRejected(t *testing.T) {
	runtime := newTestRuntime(t, "RESPONSE: ok")
	srv, _ := newTestServer(t, runtime.URL)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{"message": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestChatTurnOfflineFallback(t *testing.T) {
	// Health endpoint up, but generate always errors.
	runtime := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(runtime.Close)
	srv, _ := newTestServer(t, runtime.URL)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]string{
		"message":  "build me a page",
		"language": "html",
	})
	// Transport failures never surface; the endpoint degrades instead.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var got llm.Result
	decodeBody(t, resp, &got)
	if got.Response == "" {
		t.Error("Expected a non-empty fallback response")
	}
	if got.Language != "html" {
		t.Errorf("Expected requested language echoed, got %q", got.Language)
	}
	if !strings.Contains(got.Code, "<!DOCTYPE html>") {
		t.Errorf("Expected an html starter document, got %q", got.Code)
	}
}

func TestChatCRUD(t *testing.T) {
	runtime := newTestRuntime(t, "RESPONSE: ok")
	srv, _ := newTestServer(t, runtime.URL)

	// Create.
	resp := postJSON(t, srv.URL+"/api/chats", map[string]string{"title": "Landing Page"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var created domain.Chat
	decodeBody(t, resp, &created)
	if created.Title != "Landing Page" {
		t.Errorf("Expected title Landing Page, got %q", created.Title)
	}

	// List includes it as the active chat.
	listResp, err := http.Get(srv.URL + "/api/chats")
	if err != nil {
		t.Fatalf("List request failed: %v", err)
	}
	defer func() { _ = listResp.Body.Close() }()
	var listing struct {
		Chats        []*domain.Chat `json:"chats"`
		ActiveChatID string         `json:"active_chat_id"`
	}
	decodeBody(t, listResp, &listing)
	if len(listing.Chats) != 1 || listing.Chats[0].ID != created.ID {
		t.Errorf("Unexpected listing: %+v", listing.Chats)
	}
	if listing.ActiveChatID != created.ID {
		t.Errorf("Expected active chat %q, got %q", created.ID, listing.ActiveChatID)
	}

	// Rename.
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/chats/"+created.ID,
		strings.NewReader(`{"title": "Hero Page"}`))
	req.Header.Set("Content-Type", "application/json")
	renameResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Rename request failed: %v", err)
	}
	_ = renameResp.Body.Close()
	if renameResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", renameResp.StatusCode)
	}

	// Empty title rejected.
	req, _ = http.NewRequest(http.MethodPatch, srv.URL+"/api/chats/"+created.ID,
		strings.NewReader(`{"title": "   "}`))
	req.Header.Set("Content-Type", "application/json")
	badResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Rename request failed: %v", err)
	}
	_ = badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty title, got %d", badResp.StatusCode)
	}

	// Delete is idempotent.
	for i := 0; i < 2; i++ {
		req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/chats/"+created.ID, nil)
		delResp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Delete request failed: %v", err)
		}
		_ = delResp.Body.Close()
		if delResp.StatusCode != http.StatusOK {
			t.Errorf("Delete attempt %d: expected status 200, got %d", i+1, delResp.StatusCode)
		}
	}

	// Gone now.
	getResp, err := http.Get(srv.URL + "/api/chats/" + created.ID)
	if err != nil {
		t.Fatalf("Get request failed: %v", err)
	}
	_ = getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", getResp.StatusCode)
	}
}
