// Package genai provides the LLM gateway for PlanForge.
//
// It wraps the OpenAI-compatible chat completion API (NVIDIA NIM by default)
// behind a small client that handles timeouts, bounded retry with backoff,
// guided JSON mode, and extraction of a single text answer from the variably
// shaped responses reasoning models produce.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
)

// Default configuration constants
const (
	// DefaultBaseURL is the NVIDIA NIM OpenAI-compatible endpoint.
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	// DefaultModel is the primary hosted chat model.
	DefaultModel = "meta/llama-3.1-70b-instruct"
	// DefaultTimeout bounds a question/summary turn completion call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxCompletionTokens bounds a question/summary turn response.
	DefaultMaxCompletionTokens = 1024
	// DefaultTemperature is the sampling temperature for discovery turns.
	DefaultTemperature = 0.6

	// MaxRetries is the retry budget for transient provider errors.
	MaxRetries = 2
	// BackoffBase is the initial retry delay; it doubles per attempt with jitter.
	BackoffBase = 300 * time.Millisecond

	// MinPlausibleContentLength is the threshold below which message content
	// is considered implausibly short and the reasoning_content side channel
	// is consulted instead.
	MinPlausibleContentLength = 50
)

// Error variables for better error handling and testability
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrAPIKeyNotSet      = errors.New("GENAI_API_KEY not set")
	ErrEmptyCompletion   = errors.New("completion contained no usable text")
)

// ProviderError classifies a failed provider call. Retryable errors (429,
// 502, 503, 504, timeouts) may be retried on the same provider; hard errors
// fail the provider immediately so the caller can fall over to another one.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d (retryable=%t): %v", e.Provider, e.StatusCode, e.Retryable, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err represents a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// embeddingService defines the minimal interface for embeddings.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// modelService defines the minimal interface for the model listing used by
// health checks.
type modelService interface {
	List(ctx context.Context, opts ...option.RequestOption) (*pagination.Page[openai.Model], error)
}

// Client wraps one OpenAI-compatible backend.
type Client struct {
	name                string
	chat                chatService
	embeddings          embeddingService
	models              modelService
	model               string
	embeddingModel      string
	temperature         float64
	topP                float64
	maxCompletionTokens int64
	timeout             time.Duration
}

// Opts holds configuration applied via Option values.
type Opts struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float64
	TopP           float64
	MaxTokens      int64
	Timeout        time.Duration
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the API key explicitly, overriding the environment.
func WithAPIKey(key string) Option { return func(o *Opts) { o.APIKey = key } }

// WithBaseURL points the client at a specific OpenAI-compatible endpoint.
func WithBaseURL(url string) Option { return func(o *Opts) { o.BaseURL = url } }

// WithModel sets the chat model identifier.
func WithModel(model string) Option { return func(o *Opts) { o.Model = model } }

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) Option { return func(o *Opts) { o.EmbeddingModel = model } }

// WithName labels the client for logging and health tracking.
func WithName(name string) Option { return func(o *Opts) { o.Name = name } }

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option { return func(o *Opts) { o.Temperature = t } }

// WithTopP sets the default nucleus sampling parameter.
func WithTopP(p float64) Option { return func(o *Opts) { o.TopP = p } }

// WithMaxCompletionTokens sets the default completion token budget.
func WithMaxCompletionTokens(n int64) Option { return func(o *Opts) { o.MaxTokens = n } }

// WithTimeout sets the default per-call timeout.
func WithTimeout(d time.Duration) Option { return func(o *Opts) { o.Timeout = d } }

// NewClient initializes a gateway client. The API key is taken from
// GENAI_API_KEY unless provided via WithAPIKey.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Name:        "primary",
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxCompletionTokens,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not configured", "provider", cfg.Name)
		return nil, ErrAPIKeyNotSet
	}

	cli := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	slog.Debug("genai.NewClient: client created", "provider", cfg.Name, "baseURL", cfg.BaseURL, "model", cfg.Model)
	return &Client{
		name:                cfg.Name,
		chat:                &cli.Chat.Completions,
		embeddings:          &cli.Embeddings,
		models:              &cli.Models,
		model:               cfg.Model,
		embeddingModel:      cfg.EmbeddingModel,
		temperature:         cfg.Temperature,
		topP:                cfg.TopP,
		maxCompletionTokens: cfg.MaxTokens,
		timeout:             cfg.Timeout,
	}, nil
}

// Name returns the provider label.
func (c *Client) Name() string { return c.name }

// CallOptions carry per-call sampling and constraint parameters. Zero values
// fall back to the client defaults.
type CallOptions struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int64
	Timeout     time.Duration
	// GuidedJSON, when set, constrains output to the supplied JSON schema
	// via the nvext.guided_json extension.
	GuidedJSON map[string]interface{}
}

// Completion is one extracted answer plus token and latency metadata.
type Completion struct {
	Text                  string
	PromptTokens          int64
	CompletionTokens      int64
	Latency               time.Duration
	UsedReasoningFallback bool
}

// Generate issues one chat-completion request with bounded retry on
// transient failures and returns the extracted text with metadata.
func (c *Client) Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts CallOptions) (*Completion, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	temperature := c.temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	maxTokens := c.maxCompletionTokens
	if opts.MaxTokens != 0 {
		maxTokens = opts.MaxTokens
	}
	timeout := c.timeout
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	}
	if opts.TopP != 0 {
		params.TopP = openai.Float(opts.TopP)
	} else if c.topP != 0 {
		params.TopP = openai.Float(c.topP)
	}

	var reqOpts []option.RequestOption
	if opts.GuidedJSON != nil {
		reqOpts = append(reqOpts, option.WithJSONSet("nvext.guided_json", opts.GuidedJSON))
	}

	var lastErr error
	delay := BackoffBase
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 2))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return nil, &ProviderError{Provider: c.name, Retryable: true, Err: ctx.Err()}
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		resp, err := c.chat.New(callCtx, params, reqOpts...)
		latency := time.Since(start)
		cancel()

		if err != nil {
			perr := c.classifyError(err)
			lastErr = perr
			if !perr.Retryable {
				slog.Error("genai.Generate: hard provider error", "provider", c.name, "model", model, "error", err)
				return nil, perr
			}
			slog.Warn("genai.Generate: transient provider error, retrying", "provider", c.name, "model", model, "attempt", attempt, "error", err)
			continue
		}

		completion, err := extractCompletion(resp, latency)
		if err != nil {
			slog.Error("genai.Generate: extraction failed", "provider", c.name, "model", model, "error", err)
			return nil, err
		}
		slog.Debug("genai.Generate: completion extracted",
			"provider", c.name,
			"model", model,
			"latencyMs", latency.Milliseconds(),
			"promptTokens", completion.PromptTokens,
			"completionTokens", completion.CompletionTokens,
			"reasoningFallback", completion.UsedReasoningFallback)
		return completion, nil
	}
	return nil, lastErr
}

// GenerateWithMessages generates a response using client defaults.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	completion, err := c.Generate(ctx, messages, CallOptions{})
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// classifyError maps a transport/API error into a ProviderError.
func (c *Client) classifyError(err error) *ProviderError {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 502, 503, 504:
			return &ProviderError{Provider: c.name, StatusCode: apierr.StatusCode, Retryable: true, Err: err}
		default:
			return &ProviderError{Provider: c.name, StatusCode: apierr.StatusCode, Retryable: false, Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: c.name, Retryable: true, Err: err}
	}
	// Network-level failures without a status are treated as transient.
	return &ProviderError{Provider: c.name, Retryable: true, Err: err}
}

// extractCompletion pulls a single text answer out of a response. Reasoning
// models sometimes return null or implausibly short content while placing
// the actual answer in a reasoning_content side channel; in that case the
// side channel is used.
func extractCompletion(resp *openai.ChatCompletion, latency time.Duration) (*Completion, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoicesReturned
	}
	msg := resp.Choices[0].Message
	text := msg.Content
	usedReasoning := false

	if len(text) < MinPlausibleContentLength {
		if rc := reasoningContent(msg); len(rc) > len(text) {
			text = rc
			usedReasoning = true
		}
	}
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	return &Completion{
		Text:                  text,
		PromptTokens:          resp.Usage.PromptTokens,
		CompletionTokens:      resp.Usage.CompletionTokens,
		Latency:               latency,
		UsedReasoningFallback: usedReasoning,
	}, nil
}

// reasoningContent reads the non-standard reasoning_content field some
// backends attach to the assistant message.
func reasoningContent(msg openai.ChatCompletionMessage) string {
	field, ok := msg.JSON.ExtraFields["reasoning_content"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(field.Raw()), &s); err != nil {
		slog.Debug("genai.reasoningContent: failed to decode side channel", "error", err)
		return ""
	}
	return s
}

// Ping verifies the backend is reachable by listing models with a short
// timeout. Used by the health registry.
func (c *Client) Ping(ctx context.Context) error {
	if c.models == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.models.List(pingCtx)
	return err
}
