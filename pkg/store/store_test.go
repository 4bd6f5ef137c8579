package store

import (
	"context"
	"errors"
	"testing"
)

func TestMockStore(t *testing.T) {
	ctx := context.Background()

	t.Run("session lifecycle", func(t *testing.T) {
		m := NewMock()
		if err := m.CreateSession(ctx, "s1", "u1"); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if err := m.CloseSession(ctx, "s1", 3, 1); err != nil {
			t.Fatalf("CloseSession: %v", err)
		}

		s := m.Sessions["s1"]
		if !s.Closed || s.Turns != 3 || s.Interruptions != 1 {
			t.Errorf("session state = %+v", s)
		}
	})

	t.Run("messages scoped to session", func(t *testing.T) {
		m := NewMock()
		m.AppendMessage(ctx, "s1", "user", "what is the weather")
		m.AppendMessage(ctx, "s1", "assistant", "sunny today")
		m.AppendMessage(ctx, "s2", "user", "unrelated")

		msgs, err := m.RecentMessages(ctx, "s1", 10)
		if err != nil {
			t.Fatalf("RecentMessages: %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("got %d messages, want 2", len(msgs))
		}
		if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
			t.Errorf("message order wrong: %v", msgs)
		}
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		m := NewMock()
		m.AppendMessage(ctx, "s1", "user", "one")
		m.AppendMessage(ctx, "s1", "assistant", "two")
		m.AppendMessage(ctx, "s1", "user", "three")

		msgs, _ := m.RecentMessages(ctx, "s1", 2)
		if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
			t.Errorf("msgs = %v", msgs)
		}
	})

	t.Run("configured error surfaces", func(t *testing.T) {
		m := NewMock()
		m.Err = errors.New("backend down")
		if err := m.AppendMessage(ctx, "s1", "user", "x"); err == nil {
			t.Error("expected error")
		}
		if err := m.Health(ctx); err == nil {
			t.Error("expected health error")
		}
	})
}

func TestNopStore(t *testing.T) {
	ctx := context.Background()
	n := NewNop()

	if err := n.CreateSession(ctx, "s1", "u1"); err != nil {
		t.Errorf("CreateSession: %v", err)
	}
	if err := n.AppendMessage(ctx, "s1", "user", "hello"); err != nil {
		t.Errorf("AppendMessage: %v", err)
	}
	msgs, err := n.RecentMessages(ctx, "s1", 10)
	if err != nil || msgs != nil {
		t.Errorf("RecentMessages = %v, %v", msgs, err)
	}
}
