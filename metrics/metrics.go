package metrics

import "time"

// Event names recorded by the orchestrator.
const (
	EventAttemptStarted   = "attempt_started"
	EventAttemptRejected  = "attempt_rejected"
	EventAttemptSucceeded = "attempt_succeeded"
	EventAttemptFailed    = "attempt_failed"
	EventBalanceResolved  = "balance_resolved"
	EventBalanceDegraded  = "balance_degraded"
	EventBalanceStale     = "balance_stale"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

// Since observes the time elapsed from start under name.
func Since(r Recorder, name string, start time.Time, labels map[string]string) {
	r.ObserveLatency(name, time.Since(start), labels)
}
