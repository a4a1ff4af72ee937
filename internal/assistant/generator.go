package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/liliang-cn/medbrief/internal/config"
	"github.com/liliang-cn/medbrief/internal/domain"
	"go.uber.org/zap"
)

// Message is one conversation message sent to the model
type Message struct {
	Role    domain.Role
	Content string
}

// Request is a provider-agnostic generation request
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int     // 0 uses the generator default
	Temperature float64 // 0 uses the provider default
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClaudeGenerator generates text with the Anthropic Messages API
type ClaudeGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClaudeGenerator creates a Claude generator. Extra options are passed to the SDK client.
func NewClaudeGenerator(cfg config.AssistantConfig, logger *zap.Logger, opts ...option.RequestOption) (*ClaudeGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &ClaudeGenerator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// Generate sends the request and returns the concatenated text blocks
func (g *ClaudeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages:  toClaudeMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	g.logger.Debug("Calling Claude",
		zap.String("model", g.model),
		zap.Int("messages", len(params.Messages)),
		zap.Int("max_tokens", maxTokens),
	)

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from claude API")
	}
	return text.String(), nil
}

// toClaudeMessages converts messages, skipping empty ones, dropping leading
// assistant turns and merging consecutive turns of the same role so the
// result alternates starting with the user.
func toClaudeMessages(messages []Message) []anthropic.MessageParam {
	type turn struct {
		role  domain.Role
		parts []string
	}

	var turns []turn
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := domain.RoleUser
		if msg.Role == domain.RoleAssistant {
			role = domain.RoleAssistant
		}
		if len(turns) == 0 && role == domain.RoleAssistant {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, content)
			continue
		}
		turns = append(turns, turn{role: role, parts: []string{content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == domain.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
