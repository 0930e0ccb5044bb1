// Package fallback implements the advisory circuit breaker policy for model
// server failures. Failures are counted per priority bucket in a JSON quota
// tracker on disk; escalations are appended to a newline-delimited JSON log.
//
// The policy is cooperative: it produces an auditable trail and a threshold
// signal for an operator, it never blocks calls on its own, and none of its
// methods can fail observably. A missing policy config file disables the
// entire policy, leaving every call a silent no-op.
package fallback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"moodscope/internal/logging"
)

// Policy records model call failures against priority buckets and logs
// escalation events. Construct with Load; the zero value is a disabled policy.
type Policy struct {
	enabled        bool
	threshold      int
	trackerPath    string
	escalationPath string

	// Guards the tracker read-modify-write within this process. Concurrent
	// writers in other processes can still race; last write wins on the
	// whole document.
	mu sync.Mutex
}

// Load builds a Policy from the config file at paths.ConfigPath.
// A missing config file yields a disabled policy rather than an error, so
// environments that never configured cloud fallback run unaffected.
func Load(paths Paths) *Policy {
	data, err := os.ReadFile(paths.ConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.FallbackWarn("policy config unreadable, disabling policy: %v", err)
		}
		return &Policy{}
	}

	var cfg policyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.FallbackWarn("policy config malformed, disabling policy: %v", err)
		return &Policy{}
	}

	threshold := cfg.CircuitBreaker.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	logging.Fallback("policy enabled, failure threshold %d", threshold)

	return &Policy{
		enabled:        true,
		threshold:      threshold,
		trackerPath:    paths.TrackerPath,
		escalationPath: paths.EscalationLogPath,
	}
}

// Enabled reports whether a policy config was found at construction.
func (p *Policy) Enabled() bool {
	return p.enabled
}

// Threshold returns the configured failure threshold (0 when disabled).
func (p *Policy) Threshold() int {
	if !p.enabled {
		return 0
	}
	return p.threshold
}

// RecordFailure increments the failure count for the given priority bucket
// and opens its breaker once the count reaches the threshold. The whole quota
// tracker document is rewritten pretty-printed. Never fails observably: I/O
// errors are logged best-effort and swallowed, since the policy is advisory
// and must not break the primary request path.
func (p *Policy) RecordFailure(priority string) {
	if !p.enabled {
		return
	}
	if priority == "" {
		priority = PriorityMedium
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tracker := p.readTracker()

	rec, ok := tracker.CircuitBreaker[priority]
	if !ok {
		rec = &CircuitBreakerState{State: StateClosed}
		tracker.CircuitBreaker[priority] = rec
	}

	now := time.Now().UTC()
	rec.FailureCount++
	rec.LastFailure = &now

	if rec.State != StateOpen && rec.FailureCount >= p.threshold {
		rec.State = StateOpen
		rec.OpenedAt = &now
		logging.FallbackWarn("circuit breaker opened for priority %q after %d failures", priority, rec.FailureCount)
	}

	if err := p.writeTracker(tracker); err != nil {
		logging.FallbackError("quota tracker write failed: %v", err)
	}
}

// Reset closes the breaker and zeroes the failure count for one priority
// bucket, or for every bucket when priority is empty. This is the manual
// intervention path; nothing in the policy reopens a closed breaker except
// further recorded failures.
func (p *Policy) Reset(priority string) error {
	if !p.enabled {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tracker := p.readTracker()

	reset := func(rec *CircuitBreakerState) {
		rec.State = StateClosed
		rec.FailureCount = 0
		rec.OpenedAt = nil
	}

	if priority == "" {
		for _, rec := range tracker.CircuitBreaker {
			reset(rec)
		}
	} else {
		rec, ok := tracker.CircuitBreaker[priority]
		if !ok {
			return fmt.Errorf("no breaker state for priority %q", priority)
		}
		reset(rec)
	}

	if err := p.writeTracker(tracker); err != nil {
		return fmt.Errorf("quota tracker write failed: %w", err)
	}
	logging.Fallback("circuit breaker reset (priority=%q)", priority)
	return nil
}

// Snapshot returns the current quota tracker document. Read-only; returns an
// empty tracker when the policy is disabled or the file is missing.
func (p *Policy) Snapshot() Tracker {
	if !p.enabled {
		return Tracker{CircuitBreaker: map[string]*CircuitBreakerState{}}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTracker()
}

// TrackerPath returns the quota tracker file path ("" when disabled).
func (p *Policy) TrackerPath() string {
	if !p.enabled {
		return ""
	}
	return p.trackerPath
}

// LogEscalation appends one escalation record as a single JSON line to the
// escalation log, creating the file if needed. Best-effort: write failures
// are swallowed. A zero Timestamp is stamped with the current time and an
// empty TaskID gets a fresh UUID.
func (p *Policy) LogEscalation(rec EscalationRecord) {
	if !p.enabled {
		return
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.TaskID == "" {
		rec.TaskID = uuid.NewString()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		logging.FallbackError("escalation record marshal failed: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(p.escalationPath), 0755); err != nil {
		logging.FallbackError("escalation log dir create failed: %v", err)
		return
	}

	f, err := os.OpenFile(p.escalationPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.FallbackError("escalation log open failed: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		logging.FallbackError("escalation log write failed: %v", err)
		return
	}

	logging.Fallback("escalation logged: task=%s priority=%s reason=%s provider=%s",
		rec.TaskID, rec.Priority, rec.Reason, rec.Provider)
}

// readTracker loads the quota tracker, treating a missing or corrupt file as
// an empty document.
func (p *Policy) readTracker() Tracker {
	tracker := Tracker{CircuitBreaker: map[string]*CircuitBreakerState{}}

	data, err := os.ReadFile(p.trackerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.FallbackWarn("quota tracker unreadable, starting empty: %v", err)
		}
		return tracker
	}

	if err := json.Unmarshal(data, &tracker); err != nil {
		logging.FallbackWarn("quota tracker corrupt, starting empty: %v", err)
		return Tracker{CircuitBreaker: map[string]*CircuitBreakerState{}}
	}
	if tracker.CircuitBreaker == nil {
		tracker.CircuitBreaker = map[string]*CircuitBreakerState{}
	}

	return tracker
}

// writeTracker rewrites the whole quota tracker document, pretty-printed.
func (p *Policy) writeTracker(tracker Tracker) error {
	data, err := json.MarshalIndent(tracker, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.trackerPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(p.trackerPath, data, 0644)
}
