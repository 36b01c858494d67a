package mappers

import (
	"testing"
	"time"

	"github.com/cutekitek/rankode-judge/internal/repository/models"
)

func TestVerdictToWire(t *testing.T) {
	tests := []struct {
		verdict  models.Verdict
		expected string
	}{
		{models.Accepted(), "Accepted"},
		{models.WrongAnswer("line 1 column 1: read s, expected 5"), "WrongAnswer: line 1 column 1: read s, expected 5"},
		{models.RuntimeError("exit status 1"), "RuntimeError: exit status 1"},
		{models.TimeLimitExceeded(), "TimeLimitExceeded"},
		{models.MemoryLimitExceeded(), "MemoryLimitExceeded"},
		{models.CompileError("main.c:1: error"), "CompileError: main.c:1: error"},
		{models.SystemError("gcc not found"), "SystemError: gcc not found"},
	}
	for _, tt := range tests {
		t.Run(tt.verdict.Kind.String(), func(t *testing.T) {
			if got := VerdictToWire(tt.verdict); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCaseResultToMessage(t *testing.T) {
	msg := CaseResultToMessage("sub-1", models.CaseResult{
		Case:     2,
		Verdict:  models.Accepted(),
		Time:     1500 * time.Microsecond * 1000,
		MemoryKB: 2048,
	})
	if msg.Id != "sub-1" || msg.Case != 2 || msg.Result != "Accepted" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Time != 1500 {
		t.Fatalf("expected 1500ms, got %d", msg.Time)
	}
	if msg.Memory != 2048 {
		t.Fatalf("expected 2048KB, got %d", msg.Memory)
	}
}
