package fallback

import "time"

// BreakerState is the lifecycle state of one priority bucket's breaker.
// There is no automatic open -> closed transition; reset is manual.
type BreakerState string

const (
	StateClosed BreakerState = "closed"
	StateOpen   BreakerState = "open"
)

// Priority buckets failures are counted against.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultFailureThreshold is used when the policy config does not set one.
const DefaultFailureThreshold = 3

// CircuitBreakerState is the persisted record for one priority bucket.
type CircuitBreakerState struct {
	State        BreakerState `json:"state"`
	FailureCount int          `json:"failure_count"`
	LastFailure  *time.Time   `json:"last_failure,omitempty"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
}

// Tracker is the quota tracker document: all circuit-breaker state across
// priorities, stored as a single JSON file rewritten wholesale on each failure.
type Tracker struct {
	CircuitBreaker map[string]*CircuitBreakerState `json:"circuit_breaker"`
}

// EscalationRecord is one append-only escalation log entry. One JSON object
// per line; records are never mutated or deleted by this subsystem.
type EscalationRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	TaskID         string    `json:"task_id"`
	Priority       string    `json:"priority"`
	Reason         string    `json:"reason"`
	ModelAttempted string    `json:"model_attempted"`
	Provider       string    `json:"provider"`
}

// policyConfig is the strict schema of the optional fallback config file.
// Unknown sibling fields are tolerated; absence of the file disables the
// whole policy.
type policyConfig struct {
	CircuitBreaker struct {
		FailureThreshold int `json:"failure_threshold"`
	} `json:"circuit_breaker"`
}

// Paths locates the three files the policy store touches.
type Paths struct {
	ConfigPath        string
	TrackerPath       string
	EscalationLogPath string
}
