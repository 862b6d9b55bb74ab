package reconcile

import (
	"sync/atomic"
	"time"
)

// runStats counts audit outcomes since the service started.
type runStats struct {
	audited    atomic.Int64
	mismatched atomic.Int64
	failed     atomic.Int64
	durationNs atomic.Int64
	started    time.Time
}

func newRunStats() *runStats {
	return &runStats{started: time.Now()}
}

func (s *runStats) recordAudit(d time.Duration, balanced bool) {
	s.audited.Add(1)
	s.durationNs.Add(int64(d))
	if !balanced {
		s.mismatched.Add(1)
	}
}

func (s *runStats) recordFailure() {
	s.failed.Add(1)
}

func (s *runStats) snapshot() []any {
	audited := s.audited.Load()
	avg := time.Duration(0)
	if audited > 0 {
		avg = time.Duration(s.durationNs.Load() / audited)
	}
	return []any{
		"audited", audited,
		"mismatched", s.mismatched.Load(),
		"failed", s.failed.Load(),
		"avg_duration_ms", avg.Milliseconds(),
		"uptime_seconds", int64(time.Since(s.started).Seconds()),
	}
}
