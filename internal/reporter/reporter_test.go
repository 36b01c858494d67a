package reporter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/redis/go-redis/v9"
)

func TestHTTPReporter(t *testing.T) {
	var (
		mu       sync.Mutex
		received []models.ResultMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var msg models.ResultMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		io.WriteString(w, "OK")
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL+"/", nil)
	results := []models.CaseResult{
		{Case: 1, Verdict: models.Accepted(), Time: 12 * time.Millisecond, MemoryKB: 1024},
		{Case: 2, Verdict: models.WrongAnswer("line 1 column 1: read s, expected 5")},
	}
	for _, res := range results {
		if err := rep.Report(context.Background(), "42", res); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	if len(received) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(received))
	}
	first := received[0]
	if first.Id != "42" || first.Case != 1 || first.Result != "Accepted" || first.Time != 12 || first.Memory != 1024 {
		t.Fatalf("unexpected message %+v", first)
	}
	if received[1].Result != "WrongAnswer: line 1 column 1: read s, expected 5" {
		t.Fatalf("unexpected result %q", received[1].Result)
	}
}

func TestHTTPReporter_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "unknown submission")
	}))
	defer srv.Close()

	rep := NewHTTPReporter(srv.URL, nil)
	if err := rep.Report(context.Background(), "1", models.CaseResult{Case: 1, Verdict: models.Accepted()}); err == nil {
		t.Fatal("expected error for non OK answer")
	}
}

func TestRedisReporter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rep := NewRedisReporter(client, "")
	defer rep.Close()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		res := models.CaseResult{Case: i, Verdict: models.TimeLimitExceeded(), Time: time.Second}
		if err := rep.Report(ctx, "7", res); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Values["case"] != strconv.Itoa(i+1) {
			t.Fatalf("entry %d has case %v", i, entry.Values["case"])
		}
		if entry.Values["result"] != "TimeLimitExceeded" || entry.Values["time"] != "1000" {
			t.Fatalf("unexpected entry %v", entry.Values)
		}
	}
}
