// Package provider wraps LLM providers behind a narrow chat capability.
// The rest of the system never talks to a provider SDK or API directly.
package provider

import (
	"context"
	"fmt"
)

// Chat is the capability the router and extraction engine depend on.
type Chat interface {
	// Name identifies the provider (anthropic, openai).
	Name() string

	// Model returns the configured chat model.
	Model() string

	// IsAvailable is a cheap local check (is a key configured), not a
	// network probe.
	IsAvailable() bool

	// Chat sends a system and user message and returns the raw
	// completion text.
	Chat(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Transcriber is the optional audio transcription capability. Providers
// that cannot transcribe simply do not implement it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Kind classifies provider failures so callers can react differently
// to auth problems versus quota versus a bad model name.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindQuota       Kind = "quota"
	KindModel       Kind = "model"
	KindUnavailable Kind = "unavailable"
	KindAPI         Kind = "api"
)

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindQuota
	case status == 404:
		return KindModel
	case status >= 500:
		return KindUnavailable
	default:
		return KindAPI
	}
}
