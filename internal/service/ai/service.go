package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"medchat/internal/config"
)

// NewChatModel builds the chat model client for the configured provider.
// The configured reply model is the client default; callers select per request
// with model.WithModel.
func NewChatModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for provider %s not configured", cfg.Name)
	}
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch strings.ToLower(cfg.Name) {
	case "openai", "groq":
		var m *openai.ChatModel
		m, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.ReplyModel,
			APIKey:  cfg.APIKey,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		chatModel = m
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if cerr != nil {
			return nil, fmt.Errorf("new gemini client: %w", cerr)
		}
		var m *gemini.ChatModel
		m, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.ReplyModel,
		})
		chatModel = m
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		var m *claude.ChatModel
		m, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.ReplyModel,
			BaseURL:   baseURLPtr,
			MaxTokens: replyMaxTokens,
		})
		chatModel = m
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Name, err)
	}
	return chatModel, nil
}
