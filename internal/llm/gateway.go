package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/develove/develove/internal/domain"
)

// Turn carries the artifact context a generation builds on.
type Turn struct {
	Language    string
	CurrentCode string
}

// Result is a completed generation. All fields are always set: Response and
// Code may be empty strings but are never absent, Language is lower-case.
type Result struct {
	Response string `json:"response"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Gateway issues structured-format prompts to the runtime and extracts a
// (response, code, language) triple from its unstructured reply. It owns no
// persisted state.
type Gateway struct {
	client *Client
	model  string
}

// NewGateway creates a gateway generating with the given model.
func NewGateway(host, model string, timeout time.Duration) *Gateway {
	return &Gateway{
		client: NewClient(host, timeout),
		model:  model,
	}
}

// Generate runs one turn. It never fails: when the runtime cannot be reached
// or answers with a non-success status, it degrades to the deterministic
// offline fallback for the requested language. Callers always receive a
// well-formed triple and never need a fork for "inference down".
func (g *Gateway) Generate(ctx context.Context, turn Turn, message string) Result {
	language := strings.ToLower(turn.Language)
	if language == "" {
		language = domain.DefaultLanguage
	}

	prompt := buildPrompt(language, turn.CurrentCode, message)
	raw, err := g.client.Generate(ctx, g.model, prompt)
	if err != nil {
		slog.Warn("inference runtime unavailable, serving offline fallback",
			"model", g.model, "language", language, "error", err)
		return fallbackResult(language)
	}

	return parseSections(raw, language)
}

func buildPrompt(language, currentCode, message string) string {
	if currentCode == "" {
		currentCode = "No code yet"
	}
	return fmt.Sprintf(`You are Develove, an AI coding assistant. The user wants to build a website or application.

Current context:
- Language: %s
- Current code: %s

User request: %s

Please provide:
1. A helpful response explaining what you'll create
2. Complete, working code that implements the user's request
3. The code should be production-ready and well-structured

Format your response as:
RESPONSE: [your explanation here]
CODE: [complete code here]
LANGUAGE: [language]`, language, currentCode, message)
}
