package ai

import (
	"context"
	"errors"
	"fmt"

	"tunarag/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const claudeMaxTokens = 3000

// Generator adapts an eino chat model to the single-shot completion the
// orchestrator needs. No streaming, no tools.
type Generator struct {
	chatModel model.BaseChatModel
}

// NewGenerator builds the chat model for the configured provider. The genai
// client is required for the gemini provider and ignored otherwise.
func NewGenerator(ctx context.Context, provider string, provCfg config.ProviderConfig, genaiClient *genai.Client) (*Generator, error) {
	var chatModel model.BaseChatModel
	var err error

	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		if genaiClient == nil {
			return nil, errors.New("genai client required for gemini provider")
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: genaiClient,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	return &Generator{chatModel: chatModel}, nil
}

// Complete submits the prompt as a single user message and returns the
// completion text. Empty output is returned as-is; the orchestrator decides
// what an empty answer means.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := g.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if msg == nil {
		return "", errors.New("nil completion message")
	}
	return msg.Content, nil
}
