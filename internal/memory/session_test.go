package memory

import (
	"fmt"
	"testing"

	"github.com/nugget/beatrice/internal/llm"
)

func TestSession_AppendAndCap(t *testing.T) {
	s := NewSession(4)
	for i := 1; i <= 3; i++ {
		s.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	msgs := s.Messages()
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "q2"},
		{Role: llm.RoleAssistant, Content: "a2"},
		{Role: llm.RoleUser, Content: "q3"},
		{Role: llm.RoleAssistant, Content: "a3"},
	}
	for i := range want {
		if msgs[i].Role != want[i].Role || msgs[i].Content != want[i].Content {
			t.Errorf("message %d = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestSession_DefaultCapTenExchanges(t *testing.T) {
	s := NewSession(0)
	for i := 0; i < 15; i++ {
		s.Append("q", "a")
	}
	if s.Len() != DefaultSessionCap {
		t.Errorf("Len() = %d, want %d", s.Len(), DefaultSessionCap)
	}
	if s.Messages()[0].Role != llm.RoleUser {
		t.Error("window must start with a user message")
	}
}

func TestSession_OddCapStaysPaired(t *testing.T) {
	s := NewSession(3)
	s.Append("q1", "a1")
	s.Append("q2", "a2")

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Content != "q2" {
		t.Errorf("Messages() = %+v, want only the q2/a2 exchange", msgs)
	}
}

func TestSession_MessagesIsCopy(t *testing.T) {
	s := NewSession(10)
	s.Append("q", "a")
	msgs := s.Messages()
	msgs[0].Content = "mutated"
	if s.Messages()[0].Content != "q" {
		t.Error("Messages() exposed internal state")
	}
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(10)
	id := s.ID()
	s.Append("q", "a")
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() after Reset = %d", s.Len())
	}
	if s.ID() != id || id == "" {
		t.Errorf("ID changed or empty: %q -> %q", id, s.ID())
	}
}
