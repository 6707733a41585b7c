package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare text untouched", "phases:\n  - id: a", "phases:\n  - id: a"},
		{"yaml fence stripped", "```yaml\nphases:\n  - id: a\n```", "phases:\n  - id: a"},
		{"plain fence stripped", "```\nkey: value\n```", "key: value"},
		{"missing closing fence", "```yaml\nkey: value", "key: value"},
		{"surrounding whitespace", "  ```yaml\nkey: value\n```  ", "key: value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFences(tc.in))
		})
	}
}

func TestAnthropicChat(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			w.Write([]byte(`{"content":[{"type":"text","text":"hello back"}]}`))
		}))
		defer srv.Close()

		c := NewAnthropicClientWithConfig(AnthropicConfig{
			APIKey:  "test-key",
			BaseURL: srv.URL,
			Model:   "claude-sonnet-4-20250514",
			Timeout: 5 * time.Second,
		})

		out, err := c.Chat(context.Background(), "be brief", "hi", 100)
		require.NoError(t, err)
		assert.Equal(t, "hello back", out)
	})

	t.Run("auth failure classified", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"type":"authentication_error","message":"bad key"}}`))
		}))
		defer srv.Close()

		c := NewAnthropicClientWithConfig(AnthropicConfig{
			APIKey:  "bad-key",
			BaseURL: srv.URL,
			Model:   "claude-sonnet-4-20250514",
			Timeout: 5 * time.Second,
		})

		_, err := c.Chat(context.Background(), "", "hi", 100)
		require.Error(t, err)
		var perr *Error
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, KindAuth, perr.Kind)
	})

	t.Run("retries rate limit then succeeds", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"content":[{"type":"text","text":"after retry"}]}`))
		}))
		defer srv.Close()

		c := NewAnthropicClientWithConfig(AnthropicConfig{
			APIKey:  "test-key",
			BaseURL: srv.URL,
			Model:   "claude-sonnet-4-20250514",
			Timeout: 5 * time.Second,
		})

		out, err := c.Chat(context.Background(), "", "hi", 100)
		require.NoError(t, err)
		assert.Equal(t, "after retry", out)
		assert.Equal(t, 2, calls)
	})

	t.Run("no key reports unavailable", func(t *testing.T) {
		c := NewAnthropicClient("")
		assert.False(t, c.IsAvailable())

		_, err := c.Chat(context.Background(), "", "hi", 100)
		var perr *Error
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, KindUnavailable, perr.Kind)
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Provider.Name = "anthropic"
		cfg.Provider.APIKey = "k"

		p, err := FromConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
		assert.True(t, p.IsAvailable())
	})

	t.Run("openai implements transcriber", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Provider.Name = "openai"
		cfg.Provider.APIKey = "k"

		p, err := FromConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
		_, ok := p.(Transcriber)
		assert.True(t, ok)
	})

	t.Run("unknown provider fails", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Provider.Name = "mystery"
		_, err := FromConfig(cfg)
		require.Error(t, err)
	})
}
