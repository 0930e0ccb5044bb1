package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moodscope/internal/fallback"
)

// Wires a real policy store to the client: three 5xx responses must open the
// high-priority breaker on disk.
func TestClient_FailuresOpenBreakerOnDisk(t *testing.T) {
	dir := t.TempDir()
	paths := fallback.Paths{
		ConfigPath:        filepath.Join(dir, "fallback_config.json"),
		TrackerPath:       filepath.Join(dir, "quota_tracker.json"),
		EscalationLogPath: filepath.Join(dir, "escalation.log"),
	}
	if err := os.WriteFile(paths.ConfigPath, []byte(`{"circuit_breaker":{"failure_threshold":3}}`), 0644); err != nil {
		t.Fatalf("write policy config: %v", err)
	}
	policy := fallback.Load(paths)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, policy)

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi", Priority: "high"}); err == nil {
			t.Fatal("want transport error")
		}
	}

	data, err := os.ReadFile(paths.TrackerPath)
	if err != nil {
		t.Fatalf("read tracker: %v", err)
	}
	var tracker fallback.Tracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		t.Fatalf("unmarshal tracker: %v", err)
	}

	rec := tracker.CircuitBreaker["high"]
	if rec == nil {
		t.Fatal("no high-priority record persisted")
	}
	if rec.State != fallback.StateOpen || rec.FailureCount != 3 || rec.OpenedAt == nil {
		t.Fatalf("rec=%+v, want open with 3 failures and opened_at set", rec)
	}
}
