package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/simply-study/backend/internal/config"
	"github.com/simply-study/backend/internal/model/study"
)

func TestSourceMessageMapsParts(t *testing.T) {
	msg := sourceMessage([]study.SourceMaterialPart{
		{Type: study.PartText, Content: "Photosynthesis basics", MimeType: "text/plain"},
		{Type: study.PartImage, Content: "data:image/png;base64,AAAA", MimeType: "image/png"},
	})

	if msg.Role != schema.User {
		t.Fatalf("expected user role, got %v", msg.Role)
	}
	if len(msg.MultiContent) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(msg.MultiContent))
	}
	if msg.MultiContent[0].Type != schema.ChatMessagePartTypeText || msg.MultiContent[0].Text != "Photosynthesis basics" {
		t.Fatalf("unexpected text part: %+v", msg.MultiContent[0])
	}
	img := msg.MultiContent[1]
	if img.Type != schema.ChatMessagePartTypeImageURL || img.ImageURL == nil {
		t.Fatalf("unexpected image part: %+v", img)
	}
	if img.ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image URL %q", img.ImageURL.URL)
	}
}

func TestSourceMessageInsertsPlaceholderWhenNoText(t *testing.T) {
	msg := sourceMessage([]study.SourceMaterialPart{
		{Type: study.PartImage, Content: "data:image/png;base64,AAAA", MimeType: "image/png"},
	})

	if len(msg.MultiContent) != 2 {
		t.Fatalf("expected image + placeholder, got %d parts", len(msg.MultiContent))
	}
	last := msg.MultiContent[1]
	if last.Type != schema.ChatMessagePartTypeText || last.Text != placeholderInstruction {
		t.Fatalf("expected placeholder instruction, got %+v", last)
	}
}

func TestSourceMessageEmptyParts(t *testing.T) {
	msg := sourceMessage(nil)
	if len(msg.MultiContent) != 1 || msg.MultiContent[0].Text != placeholderInstruction {
		t.Fatalf("expected only the placeholder, got %+v", msg.MultiContent)
	}
}

func TestHistoryMessagesMapsRoles(t *testing.T) {
	history := historyMessages([]study.ChatMessage{
		{Role: study.RoleUser, Content: "q1"},
		{Role: study.RoleModel, Content: "a1"},
	})

	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != schema.User || history[0].Content != "q1" {
		t.Fatalf("unexpected first message: %+v", history[0])
	}
	if history[1].Role != schema.Assistant || history[1].Content != "a1" {
		t.Fatalf("unexpected second message: %+v", history[1])
	}
}

func TestStreamChatRequiresCredential(t *testing.T) {
	svc := NewService(config.AIConfig{Model: "test-model"}, nil)

	_, err := svc.StreamChat(context.Background(), "", "synthesis", []study.ChatMessage{
		{Role: study.RoleUser, Content: "hello"},
	})
	if !errors.Is(err, ErrCredentialRequired) {
		t.Fatalf("expected ErrCredentialRequired, got %v", err)
	}
}

func TestStreamChatRequiresTrailingUserMessage(t *testing.T) {
	svc := NewService(config.AIConfig{Model: "test-model"}, nil)

	_, err := svc.StreamChat(context.Background(), "key", "synthesis", []study.ChatMessage{
		{Role: study.RoleModel, Content: "answer"},
	})
	if !errors.Is(err, ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}

	if _, err := svc.StreamChat(context.Background(), "key", "synthesis", nil); !errors.Is(err, ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn for empty history, got %v", err)
	}
}
