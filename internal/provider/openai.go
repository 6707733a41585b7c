package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"sift/internal/logging"
)

// OpenAIClient implements Chat and Transcriber via the official SDK.
// Transcription uses the audio endpoint so audio-first phases work
// end-to-end when OpenAI is the configured provider.
type OpenAIClient struct {
	client             openai.Client
	apiKey             string
	model              string
	transcriptionModel string
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	Timeout            time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:             apiKey,
		Model:              "gpt-4o",
		TranscriptionModel: "whisper-1",
		Timeout:            120 * time.Second,
	}
}

// NewOpenAIClient creates an OpenAI client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates an OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	transcriptionModel := config.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = "whisper-1"
	}

	return &OpenAIClient{
		client:             openai.NewClient(opts...),
		apiKey:             config.APIKey,
		model:              config.Model,
		transcriptionModel: transcriptionModel,
	}
}

// Name returns "openai".
func (c *OpenAIClient) Name() string { return "openai" }

// Model returns the configured chat model.
func (c *OpenAIClient) Model() string { return c.model }

// IsAvailable reports whether an API key is configured.
func (c *OpenAIClient) IsAvailable() bool { return c.apiKey != "" }

// Chat sends a system and user message and returns the completion text.
func (c *OpenAIClient) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindUnavailable, Provider: c.Name(), Err: fmt.Errorf("API key not configured")}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	timer := logging.StartTimer(logging.CategoryProvider, "openai chat")
	defer timer.Stop()

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindAPI, Provider: c.Name(), Err: fmt.Errorf("no completion returned")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe sends an audio file to the transcription endpoint and
// returns the transcript text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindUnavailable, Provider: c.Name(), Err: fmt.Errorf("API key not configured")}
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	timer := logging.StartTimer(logging.CategoryProvider, "openai transcription")
	defer timer.Stop()

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.transcriptionModel),
		File:  f,
	})
	if err != nil {
		return "", c.wrap(err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// wrap classifies SDK errors by HTTP status.
func (c *OpenAIClient) wrap(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &Error{Kind: classifyStatus(apierr.StatusCode), Provider: c.Name(), Err: err}
	}
	return &Error{Kind: KindUnavailable, Provider: c.Name(), Err: err}
}
