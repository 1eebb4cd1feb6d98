package history

import (
	"strings"
	"testing"

	"ai-tutor/internal/llm"
)

func TestHistoryAppendGetReset(t *testing.T) {
	h := NewManager()
	convA := int64(1)
	convB := int64(2)

	h.AppendUser(convA, "hello")
	h.AppendAssistant(convA, "hi")
	h.AppendUser(convB, "foo")
	h.AppendAssistant(convB, "bar")

	msgsA := h.Get(convA)
	msgsB := h.Get(convB)

	if len(msgsA) != 2 || len(msgsB) != 2 {
		t.Fatalf("unexpected lengths: A=%d B=%d", len(msgsA), len(msgsB))
	}
	if msgsA[0].Role != llm.RoleUser || msgsA[0].Content != "hello" {
		t.Fatalf("unexpected A[0]: %+v", msgsA[0])
	}
	if msgsA[1].Role != llm.RoleAssistant || msgsA[1].Content != "hi" {
		t.Fatalf("unexpected A[1]: %+v", msgsA[1])
	}

	// Ensure copy semantics (modifying returned slice does not affect internal state)
	msgsA[0] = llm.Message{Role: llm.RoleUser, Content: "mutated"}
	msgsA2 := h.Get(convA)
	if msgsA2[0].Content != "hello" {
		t.Fatalf("internal state mutated via returned slice")
	}

	h.Reset(convA)
	if len(h.Get(convA)) != 0 {
		t.Fatalf("reset did not clear conversation A")
	}
	if len(h.Get(convB)) != 2 {
		t.Fatalf("reset should not affect other conversations")
	}
}

func TestLatestUserText(t *testing.T) {
	h := NewManager()
	if got := h.LatestUserText(1); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	h.AppendUser(1, "first")
	h.AppendAssistant(1, "reply")
	h.AppendUser(1, "second")
	if got := h.LatestUserText(1); got != "second" {
		t.Fatalf("expected latest user line, got %q", got)
	}
}

func TestForOracleCleansLines(t *testing.T) {
	h := NewManager()
	h.AppendUser(1, `look at <img src="data:image/png;base64,AAAA"> this`)
	h.AppendAssistant(1, "<p>an html reply</p>")
	h.AppendUser(1, "   ")

	msgs := h.ForOracle(1)
	if len(msgs) != 2 {
		t.Fatalf("expected blank line dropped, got %d messages", len(msgs))
	}
	if strings.Contains(msgs[0].Content, "data:") || strings.Contains(msgs[0].Content, "<img") {
		t.Fatalf("data URI or markup leaked: %q", msgs[0].Content)
	}
	if msgs[1].Content != "an html reply" {
		t.Fatalf("markup not stripped: %q", msgs[1].Content)
	}
}

func TestForOracleMessageCap(t *testing.T) {
	h := NewManagerWithLimits(10, 1000)
	h.AppendUser(1, strings.Repeat("x", 50))
	msgs := h.ForOracle(1)
	if len(msgs) != 1 || len(msgs[0].Content) != 10 {
		t.Fatalf("per-message cap not applied: %+v", msgs)
	}
}

func TestForOracleBudgetDropsOldestFirst(t *testing.T) {
	h := NewManagerWithLimits(100, 25)
	h.AppendUser(1, strings.Repeat("a", 10))
	h.AppendAssistant(1, strings.Repeat("b", 10))
	h.AppendUser(1, strings.Repeat("c", 10))

	msgs := h.ForOracle(1)
	if len(msgs) != 2 {
		t.Fatalf("expected oldest line dropped, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[0].Content, "b") || !strings.HasPrefix(msgs[1].Content, "c") {
		t.Fatalf("wrong lines survived: %+v", msgs)
	}
}

func TestForOracleKeepsNewestEvenWhenOverBudget(t *testing.T) {
	h := NewManagerWithLimits(100, 5)
	h.AppendUser(1, strings.Repeat("z", 50))
	msgs := h.ForOracle(1)
	if len(msgs) != 1 {
		t.Fatalf("newest line must always survive, got %d", len(msgs))
	}
}
