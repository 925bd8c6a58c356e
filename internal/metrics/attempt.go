package metrics

import (
	"io"
	"sync"
	"time"
)

// Attempt describes one finished publish attempt.
type Attempt struct {
	ID      string
	Sign    string
	Mode    string // "photo", "text", or empty when nothing was sent
	Result  string // "ok" or a failure kind
	Latency time.Duration
}

// Sink emits one EMF document per publish attempt. A disabled Sink drops
// everything, so callers never need a nil check.
type Sink struct {
	mu        sync.Mutex
	namespace string
	out       io.Writer
	enabled   bool
}

// NewSink creates a Sink writing to out.
func NewSink(namespace string, out io.Writer, enabled bool) *Sink {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Sink{namespace: namespace, out: out, enabled: enabled}
}

// RecordAttempt writes PublishAttempt and PublishLatencyMs for a.
func (s *Sink) RecordAttempt(a Attempt) {
	if s == nil || !s.enabled {
		return
	}
	mode := a.Mode
	if mode == "" {
		mode = "none"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	New(s.namespace, s.out).
		Dimension("Sign", a.Sign).
		Dimension("Mode", mode).
		Dimension("Result", a.Result).
		Count("PublishAttempt").
		Metric("PublishLatencyMs", float64(a.Latency.Milliseconds()), UnitMilliseconds).
		Property("attemptId", a.ID).
		Flush()
}
