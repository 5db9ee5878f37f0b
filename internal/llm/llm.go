// Package llm 抽象语言模型调用,具体厂商通过 langchaingo 接入,可随时替换。
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNotConfigured 未配置厂商或缺少凭证
var ErrNotConfigured = errors.New("llm provider not configured")

// Model 接收系统指令和用户内容,返回模型的原始文本
type Model interface {
	Provider() string
	ModelName() string
	Generate(ctx context.Context, system, user string) (string, error)
}

// Settings LLM 连接参数
type Settings struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// New 根据厂商名构建模型客户端
func New(s Settings) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Model == "" && provider != "" && provider != "none" {
		return nil, fmt.Errorf("%w: model is empty", ErrNotConfigured)
	}

	var (
		client llms.Model
		err    error
	)
	switch provider {
	case "openai", "deepseek", "groq", "openrouter":
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: missing api key for %s", ErrNotConfigured, provider)
		}
		opts := []openai.Option{openai.WithToken(s.APIKey), openai.WithModel(s.Model)}
		if s.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.BaseURL))
		}
		client, err = openai.New(opts...)
	case "anthropic":
		if s.APIKey == "" {
			return nil, fmt.Errorf("%w: missing api key for %s", ErrNotConfigured, provider)
		}
		opts := []anthropic.Option{anthropic.WithToken(s.APIKey), anthropic.WithModel(s.Model)}
		if s.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(s.BaseURL))
		}
		client, err = anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(s.Model)}
		if s.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(s.BaseURL))
		}
		client, err = ollama.New(opts...)
	case "", "none":
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, s.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s client: %w", provider, err)
	}

	return &chatModel{
		provider:    provider,
		model:       s.Model,
		client:      client,
		temperature: s.Temperature,
		maxTokens:   s.MaxTokens,
	}, nil
}

type chatModel struct {
	provider    string
	model       string
	client      llms.Model
	temperature float64
	maxTokens   int
}

func (m *chatModel) Provider() string  { return m.provider }
func (m *chatModel) ModelName() string { return m.model }

// Generate 调用 LLM
func (m *chatModel) Generate(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	opts := []llms.CallOption{llms.WithTemperature(m.temperature)}
	if m.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.maxTokens))
	}

	resp, err := m.client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return resp.Choices[0].Content, nil
}
