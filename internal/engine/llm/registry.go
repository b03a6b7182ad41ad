package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// Caller is the narrow surface the graph nodes use to invoke a model.
type Caller interface {
	// Name returns the underlying model name, used for cost accounting.
	Name() string
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// RegistryConfig holds the connection settings shared by every model.
type RegistryConfig struct {
	APIKey  string
	BaseURL string
}

// Registry builds chat models lazily over one shared Gemini client and
// memoizes them by (model, temperature, max tokens). Stages that share a
// role configuration share the underlying model instance.
type Registry struct {
	client *genai.Client

	mu    sync.Mutex
	cache map[string]*gemini.ChatModel
}

func NewRegistry(ctx context.Context, config RegistryConfig) (*Registry, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return &Registry{client: client, cache: map[string]*gemini.ChatModel{}}, nil
}

func cacheKey(cfg model.ModelRoleConfig) string {
	return fmt.Sprintf("%s|%.2f|%d", cfg.Model, cfg.Temperature, cfg.MaxTokens)
}

// Model returns the memoized chat model for a role configuration,
// creating it on first use.
func (r *Registry) Model(ctx context.Context, cfg model.ModelRoleConfig) (*gemini.ChatModel, error) {
	key := cacheKey(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cm, ok := r.cache[key]; ok {
		return cm, nil
	}

	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      r.client,
		Model:       cfg.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model %s: %w", cfg.Model, err)
	}
	logx.Debug().Str("model", cfg.Model).Float32("temperature", cfg.Temperature).Msg("chat model created")
	r.cache[key] = cm
	return cm, nil
}

// Caller returns a role-bound caller that logs token usage and cost on
// every generation.
func (r *Registry) Caller(ctx context.Context, cfg model.ModelRoleConfig) (*Client, error) {
	cm, err := r.Model(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{name: cfg.Model, cm: cm}, nil
}

// Client is a Caller bound to one model role.
type Client struct {
	name string
	cm   einomodel.ToolCallingChatModel
}

// Name returns the underlying model name.
func (c *Client) Name() string { return c.name }

func (c *Client) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	msg, err := c.cm.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	logUsage(c.name, msg)
	return msg, nil
}

// WithTools returns a copy of the client with tools bound.
func (c *Client) WithTools(tools []*schema.ToolInfo) (*Client, error) {
	bound, err := c.cm.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Str("model", c.name).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	return &Client{name: c.name, cm: bound}, nil
}

var _ Caller = (*Client)(nil)

func logUsage(modelName string, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	usage := msg.ResponseMeta.Usage
	_, _, total := ComputeCost(usage, ResolvePricing(modelName))
	logx.Debug().
		Str("model", modelName).
		Int("promptTokens", usage.PromptTokens).
		Int("completionTokens", usage.CompletionTokens).
		Float64("costUSD", total).
		Msg("model usage")
}
