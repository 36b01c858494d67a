package submission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cutekitek/rankode-judge/internal/repository/models"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  error
	}{
		{"too few", []string{"1", "c", "main.c", "1000", "65536"}, ErrNotEnoughArguments},
		{"zero cases", []string{"1", "c", "main.c", "1000", "65536", "0"}, ErrInvalidCaseCount},
		{"bad count", []string{"1", "c", "main.c", "1000", "65536", "x"}, ErrInvalidCaseCount},
		{"missing cases", []string{"1", "c", "main.c", "1000", "65536", "2", "1.in#1.out"}, ErrNotEnoughCases},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.args); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestParseArgs_Valid(t *testing.T) {
	sub, err := ParseArgs([]string{"17", "c++", "main.cpp", "2000", "262144", "2", "1.in#1.out", "2.in#2.out", "ignored#x"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if sub.Id != "17" || sub.Language != "c++" || sub.SourcePath != "main.cpp" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if sub.TimeLimit != 2000 || sub.MemoryLimit != 262144 {
		t.Fatalf("unexpected limits %d %d", sub.TimeLimit, sub.MemoryLimit)
	}
	if len(sub.TestCases) != 2 || sub.TestCases[1] != (models.TestCase{InputPath: "2.in", ExpectedPath: "2.out"}) {
		t.Fatalf("unexpected cases %+v", sub.TestCases)
	}
}

func TestParseArgs_Malformed(t *testing.T) {
	for _, args := range [][]string{
		{"1", "c", "main.c", "abc", "65536", "1", "1.in#1.out"},
		{"1", "c", "main.c", "1000", "-5", "1", "1.in#1.out"},
		{"1", "c", "main.c", "1000", "65536", "1", "1.in"},
		{"1", "c", "main.c", "1000", "65536", "1", "#1.out"},
	} {
		if _, err := ParseArgs(args); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

type mapStore map[string]string

func (m mapStore) Download(ctx context.Context, key, dst string) error {
	data, ok := m[key]
	if !ok {
		return errors.New("no such key")
	}
	return os.WriteFile(dst, []byte(data), 0644)
}

func TestLoader(t *testing.T) {
	store := mapStore{"t/1.in": "1 2\n", "t/1.out": "3\n"}
	dir := filepath.Join(t.TempDir(), "sub")
	req := &models.SubmissionRequest{
		Id:          "9",
		Language:    "c",
		Code:        "int main(){}",
		TimeLimit:   1000,
		MemoryLimit: 65536,
		TestCases:   []models.TestCaseRequest{{InputFile: "t/1.in", OutputFile: "t/1.out"}},
	}
	sub, err := NewLoader(store).Load(context.Background(), req, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	code, err := os.ReadFile(sub.SourcePath)
	if err != nil || string(code) != req.Code {
		t.Fatalf("source not written: %q %v", code, err)
	}
	want, err := os.ReadFile(sub.TestCases[0].ExpectedPath)
	if err != nil || string(want) != "3\n" {
		t.Fatalf("expected output not downloaded: %q %v", want, err)
	}

	req.TestCases[0].OutputFile = "missing"
	if _, err := NewLoader(store).Load(context.Background(), req, dir); err == nil {
		t.Fatal("expected error for missing object")
	}
	req.TestCases = nil
	if _, err := NewLoader(store).Load(context.Background(), req, dir); !errors.Is(err, ErrInvalidCaseCount) {
		t.Fatalf("expected ErrInvalidCaseCount, got %v", err)
	}
}
