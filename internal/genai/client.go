package genai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LLMClient defines the interface for interacting with a text-completion model.
type LLMClient interface {
	// Complete sends one prompt and returns the model's text reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// CompletionRequest is a single prompt sent to the model.
type CompletionRequest struct {
	System      string
	User        string
	Model       string // overrides the client's model when set
	Temperature float32
	MaxTokens   int32
	// JSON asks the provider to constrain the reply to a JSON object.
	JSON bool
}

// Config holds configuration for the completion client.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// NewClient creates the client for cfg.Provider. An empty provider means OpenAI-compatible.
func NewClient(ctx context.Context, cfg Config) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, and any stray backticks left at either end.
func StripCodeFences(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 && isFenceTag(trimmed[:nl]) {
			trimmed = trimmed[nl+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(trimmed), "`"))
}

var fenceTagPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+.-]*$`)

// statement keywords that can open a fenced body without a language tag
var sqlLeadKeywords = map[string]bool{
	"select": true, "with": true, "insert": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "pragma": true, "explain": true,
	"values": true, "show": true, "describe": true, "table": true, "from": true,
}

// isFenceTag reports whether line is a language tag such as "sql" or "json"
// rather than the first line of the fenced body.
func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	return fenceTagPattern.MatchString(line) && !sqlLeadKeywords[strings.ToLower(line)]
}
