package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewConversation(t *testing.T) {
	if _, err := NewConversation("", "sector", time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty user, got %v", err)
	}
	if _, err := NewConversation("user", " ", time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty sector, got %v", err)
	}

	conv, err := NewConversation("user", "sector", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Error("expected no messages")
	}
}

func TestConversation_AppendAndRecent(t *testing.T) {
	conv, _ := NewConversation("user", "sector", time.Now())
	conv.Append(RoleUser, "one", nil, time.Now())
	conv.Append(RoleAssistant, "two", nil, time.Now())
	conv.Append(RoleUser, "three", nil, time.Now())

	recent := conv.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(recent))
	}
	if recent[0].Content != "two" || recent[1].Content != "three" {
		t.Errorf("unexpected order: %q, %q", recent[0].Content, recent[1].Content)
	}
	if got := conv.Recent(10); len(got) != 3 {
		t.Errorf("expected all 3 messages, got %d", len(got))
	}
	if got := conv.Recent(0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
	for i, m := range conv.Messages {
		if m.Sequence != i {
			t.Errorf("message %d has sequence %d", i, m.Sequence)
		}
	}
}

func TestConversation_AssignIDAndValidate(t *testing.T) {
	conv, _ := NewConversation("user", "sector", time.Now())
	conv.Append(RoleUser, "q", nil, time.Now())

	conv.ID = "conv-1"
	if err := conv.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected mismatch to be rejected, got %v", err)
	}

	conv.AssignID("conv-1")
	if err := conv.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if conv.Messages[0].ConversationID != "conv-1" {
		t.Errorf("expected propagated ID, got %q", conv.Messages[0].ConversationID)
	}
}

func TestRole_Label(t *testing.T) {
	tests := map[Role]string{
		RoleUser:      "User",
		RoleAssistant: "Assistant",
		RoleSystem:    "System",
	}
	for role, want := range tests {
		if got := role.Label(); got != want {
			t.Errorf("%s.Label() = %q, want %q", role, got, want)
		}
	}
}
