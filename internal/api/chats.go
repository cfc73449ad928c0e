package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/develove/develove/internal/domain"
	"github.com/develove/develove/internal/llm"
	"github.com/go-chi/chi/v5"
)

// ChatHandler handles chat persistence and chat-turn endpoints.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.ChatTurn)
		r.Route("/chats", func(r chi.Router) {
			r.Get("/", h.ListChats)
			r.Post("/", h.CreateChat)
			r.Put("/active", h.SetActiveChat)
			r.Get("/{chatID}", h.GetChat)
			r.Patch("/{chatID}", h.RenameChat)
			r.Delete("/{chatID}", h.DeleteChat)
		})
	})
}

type chatTurnRequest struct {
	Message     string `json:"message"`
	CurrentCode string `json:"currentCode"`
	Language    string `json:"language"`
	// ChatID is optional; when set, the turn and the resulting artifact are
	// persisted to that chat.
	ChatID string `json:"chat_id"`
}

// ChatTurn runs one conversation turn. This endpoint never surfaces a runtime
// transport error: when inference is unreachable the gateway degrades to its
// offline fallback, so the reply is always a well-formed triple.
func (h *ChatHandler) ChatTurn(w http.ResponseWriter, r *http.Request) {
	var req chatTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	turn := llm.Turn{Language: req.Language, CurrentCode: req.CurrentCode}

	// With a chat id, the store is the source of truth for the turn context.
	if req.ChatID != "" {
		chat, err := h.repo.GetChat(ctx, req.ChatID)
		if err != nil {
			slog.Error("failed to load chat for turn", "error", err, "chat_id", req.ChatID)
			Error(w, http.StatusInternalServerError, "failed to load chat")
			return
		}
		if chat != nil {
			turn = llm.Turn{Language: chat.CurrentLanguage, CurrentCode: chat.CurrentCode}
		}

		if _, err := h.repo.AddMessage(ctx, req.ChatID, domain.RoleUser, req.Message, "", ""); err != nil {
			slog.Error("failed to persist user message", "error", err, "chat_id", req.ChatID)
			Error(w, http.StatusInternalServerError, "failed to persist message")
			return
		}
	}

	result := h.gateway.Generate(ctx, turn, req.Message)

	if req.ChatID != "" {
		// Code and language ride on the assistant message only when the turn
		// produced an artifact.
		code, language := "", ""
		if result.Code != "" {
			code, language = result.Code, result.Language
		}
		if _, err := h.repo.AddMessage(ctx, req.ChatID, domain.RoleAssistant, result.Response, code, language); err != nil {
			slog.Error("failed to persist assistant message", "error", err, "chat_id", req.ChatID)
			Error(w, http.StatusInternalServerError, "failed to persist message")
			return
		}
		if result.Code != "" {
			if err := h.repo.UpdateArtifact(ctx, req.ChatID, result.Code, result.Language); err != nil {
				slog.Error("failed to update artifact", "error", err, "chat_id", req.ChatID)
				Error(w, http.StatusInternalServerError, "failed to update artifact")
				return
			}
		}
	}

	JSON(w, http.StatusOK, result)
}

// CreateChat creates a chat and makes it the active one.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	// An empty body is fine; the title defaults in the store.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	chat, err := h.repo.CreateChat(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		slog.Error("failed to create chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	JSON(w, http.StatusCreated, chat)
}

// ListChats returns all chats, newest first, plus the active chat pointer.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.repo.ListChats(r.Context())
	if err != nil {
		slog.Error("failed to list chats", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []*domain.Chat{}
	}

	activeID, err := h.repo.ActiveChatID(r.Context())
	if err != nil {
		slog.Error("failed to read active chat pointer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read active chat")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"chats":          chats,
		"active_chat_id": activeID,
	})
}

// GetChat returns one chat or 404.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.repo.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		slog.Error("failed to get chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to get chat")
		return
	}
	if chat == nil {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}
	JSON(w, http.StatusOK, chat)
}

// RenameChat sets a chat title. Empty titles are rejected here; the store
// itself does not validate.
func (h *ChatHandler) RenameChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		Error(w, http.StatusBadRequest, "title cannot be empty")
		return
	}

	if err := h.repo.RenameChat(r.Context(), chi.URLParam(r, "chatID"), title); err != nil {
		slog.Error("failed to rename chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to rename chat")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// DeleteChat removes a chat. Idempotent: deleting an unknown id succeeds.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		slog.Error("failed to delete chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetActiveChat sets the active chat pointer unconditionally; whether the id
// resolves to a chat is the reader's concern.
func (h *ChatHandler) SetActiveChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetActiveChat(r.Context(), req.ID); err != nil {
		slog.Error("failed to set active chat", "error", err)
		Error(w, http.StatusInternalServerError, "failed to set active chat")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"active_chat_id": req.ID})
}
