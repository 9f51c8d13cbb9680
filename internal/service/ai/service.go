package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/simply-study/backend/internal/config"
	"github.com/simply-study/backend/internal/model/study"
)

var (
	ErrCredentialRequired = errors.New("api credential is required")
	ErrEmptyTurn          = errors.New("chat history must end with a user message")
)

// Service talks to the remote chat model: one full synthesis pass, one short
// title pass, and a streaming chat turn seeded with the running synthesis.
// Models are constructed per credential and cached so consecutive calls with
// the same key reuse the client.
type Service struct {
	cfg    config.AIConfig
	log    *zap.Logger
	models *cache.Cache
}

// credentialModel bundles what one credential needs: the raw chat model for
// multimodal generate calls and the compiled chat chain for streaming turns.
type credentialModel struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service.
func NewService(cfg config.AIConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		models: cache.New(1*time.Hour, 10*time.Minute),
	}
}

// Synthesize generates the structured learning artifact from the source
// parts. The previous synthesis, if any, is irrelevant: every call produces a
// full replacement.
func (s *Service) Synthesize(ctx context.Context, credential string, parts []study.SourceMaterialPart) (string, error) {
	cm, err := s.forCredential(ctx, credential)
	if err != nil {
		return "", err
	}

	response, err := cm.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(synthesisInstruction),
		sourceMessage(parts),
	})
	if err != nil {
		return "", fmt.Errorf("synthesis request failed: %w", err)
	}

	s.log.Info("generated synthesis", zap.Int("length", len(response.Content)))
	return response.Content, nil
}

// Title generates a short 3-6 word label for the source parts. An empty
// model response degrades to a fixed fallback rather than an error.
func (s *Service) Title(ctx context.Context, credential string, parts []study.SourceMaterialPart) (string, error) {
	cm, err := s.forCredential(ctx, credential)
	if err != nil {
		return "", err
	}

	response, err := cm.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(titleInstruction),
		sourceMessage(parts),
	})
	if err != nil {
		return "", fmt.Errorf("title request failed: %w", err)
	}

	title := strings.TrimSpace(response.Content)
	if title == "" {
		title = fallbackTitle
	}
	return title, nil
}

// StreamChat opens a one-shot streaming exchange: the synthesis is the
// conversation context, every transcript entry but the newest user message is
// history, and that newest message is the live turn. The returned stream is
// finite and not restartable; the caller consumes it to completion or first
// failure and must Close it.
func (s *Service) StreamChat(ctx context.Context, credential, synthesis string, history []study.ChatMessage) (*schema.StreamReader[*schema.Message], error) {
	if len(history) == 0 || history[len(history)-1].Role != study.RoleUser {
		return nil, ErrEmptyTurn
	}

	cm, err := s.forCredential(ctx, credential)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"system":  chatInstruction + "\n\n## SYNTHESIS CONTEXT\n" + synthesis,
		"history": historyMessages(history[:len(history)-1]),
		"query":   history[len(history)-1].Content,
	}

	stream, err := cm.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat output: %w", err)
	}
	return stream, nil
}

// forCredential returns the cached model bundle for the credential, building
// and compiling it on first use.
func (s *Service) forCredential(ctx context.Context, credential string) (*credentialModel, error) {
	if credential == "" {
		return nil, ErrCredentialRequired
	}
	if x, found := s.models.Get(credential); found {
		return x.(*credentialModel), nil
	}

	chatModel, err := s.cfg.NewChatModel(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	cm := &credentialModel{chatModel: chatModel, chain: runnable}
	s.models.Set(credential, cm, cache.DefaultExpiration)
	return cm, nil
}

// sourceMessage converts the ordered source parts into one user message.
// Image parts ride along as data-URL image content; a placeholder text
// instruction is inserted when no text part exists, since the remote API
// requires at least one.
func sourceMessage(parts []study.SourceMaterialPart) *schema.Message {
	content := make([]schema.ChatMessagePart, 0, len(parts)+1)
	hasText := false
	for _, p := range parts {
		switch p.Type {
		case study.PartImage:
			content = append(content, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      p.Content,
					MIMEType: p.MimeType,
				},
			})
		default:
			hasText = true
			content = append(content, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: p.Content,
			})
		}
	}
	if !hasText {
		content = append(content, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: placeholderInstruction,
		})
	}

	return &schema.Message{Role: schema.User, MultiContent: content}
}

func historyMessages(messages []study.ChatMessage) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case study.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case study.RoleModel:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
