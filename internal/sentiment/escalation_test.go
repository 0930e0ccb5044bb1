package sentiment

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moodscope/internal/fallback"
	"moodscope/internal/llm"
)

// The chain's fallback decision and the policy's failure counting are two
// independent consumers of the same transport failure: one model-path failure
// must yield both an escalation log line and a recorded failure.
func TestChain_ModelFailureEscalatesAndRecords(t *testing.T) {
	dir := t.TempDir()
	paths := fallback.Paths{
		ConfigPath:        filepath.Join(dir, "fallback_config.json"),
		TrackerPath:       filepath.Join(dir, "quota_tracker.json"),
		EscalationLogPath: filepath.Join(dir, "escalation.log"),
	}
	require.NoError(t, os.WriteFile(paths.ConfigPath, []byte(`{"circuit_breaker":{"failure_threshold":3}}`), 0644))
	policy := fallback.Load(paths)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := llm.NewClient(llm.Config{BaseURL: srv.URL, Model: "llama3.2", Timeout: time.Second}, policy)
	chain := NewChain(client, policy)

	res := chain.Score(context.Background(), "This is great and fast")

	// Scoring still succeeds via the deterministic path.
	require.Equal(t, LabelPositive, res.Label)
	require.Equal(t, SourceKeyword, res.Source)

	// The transport client recorded the failure against "medium".
	data, err := os.ReadFile(paths.TrackerPath)
	require.NoError(t, err)
	var tracker fallback.Tracker
	require.NoError(t, json.Unmarshal(data, &tracker))
	require.NotNil(t, tracker.CircuitBreaker["medium"])
	require.Equal(t, 1, tracker.CircuitBreaker["medium"].FailureCount)

	// The chain logged one escalation record.
	f, err := os.Open(paths.EscalationLogPath)
	require.NoError(t, err)
	defer f.Close()

	var records []fallback.EscalationRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec fallback.EscalationRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 1)
	require.Equal(t, "llama3.2", records[0].ModelAttempted)
	require.Equal(t, "keyword-fallback", records[0].Provider)
	require.NotEmpty(t, records[0].TaskID)
}
