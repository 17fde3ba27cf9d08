package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

const (
	ProviderAnthropic = "anthropic"

	DefaultModel             = "claude-3-5-haiku-latest"
	DefaultMaxTokens         = 1024
	DefaultTimeout           = 60 * time.Second
	DefaultRequestsPerSecond = 2.0
)

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	APIKey            string        `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	BaseURL           string        `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model             string        `env:"LLM_MODEL"         yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	// MaxRetries is the SDK's own retry budget for a single call.
	MaxRetries int `yaml:"max_retries"`
}

func (c *AnthropicConfig) setDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
}

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	cfg     AnthropicConfig
	limiter *rate.Limiter
	log     logger.Logger
}

// NewAnthropicClient builds a client. The API key is required.
func NewAnthropicClient(cfg AnthropicConfig, log logger.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	cfg.setDefaults()

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	burst := max(int(cfg.RequestsPerSecond), 1)
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		log:     log.With(logger.Component("llm"), logger.String("provider", ProviderAnthropic)),
	}, nil
}

// Provider names the backend for usage logs.
func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

// Complete sends one system prompt and one user message.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.log.Warn("anthropic request failed",
			logger.String("model", model),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	// A blank reply fails the attempt so the job is retried rather than
	// stored as an empty translation.
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, ErrEmptyResponse
	}

	respModel := string(msg.Model)
	if respModel == "" {
		respModel = model
	}

	c.log.Debug("anthropic request completed",
		logger.String("model", respModel),
		logger.Int64("input_tokens", msg.Usage.InputTokens),
		logger.Int64("output_tokens", msg.Usage.OutputTokens),
		logger.Duration("duration", time.Since(start)))

	return &Response{
		Text:         out,
		Model:        respModel,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
