package router

import (
	"maps"
	"sync"
)

// DefaultMaxAuditLog is how many decisions an Audit keeps by default.
const DefaultMaxAuditLog = 1000

// Stats summarises routing activity across all routers sharing an Audit.
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	Abstentions   int64            `json:"abstentions"`
	Failures      int64            `json:"failures"`
	RouterCounts  map[string]int64 `json:"router_counts"`
	LabelCounts   map[string]int64 `json:"label_counts"`
	AvgLatencyMs  map[string]int64 `json:"avg_latency_ms"`
}

// Audit is a bounded, in-memory log of routing decisions. It is safe for
// concurrent use and may be shared by several routers.
type Audit struct {
	max int

	mu           sync.RWMutex
	log          []Decision
	stats        Stats
	latencyTotal map[string]int64
}

// NewAudit keeps at most max decisions; max <= 0 uses
// DefaultMaxAuditLog.
func NewAudit(max int) *Audit {
	if max <= 0 {
		max = DefaultMaxAuditLog
	}
	return &Audit{
		max: max,
		log: make([]Decision, 0, min(max, 64)),
		stats: Stats{
			RouterCounts: make(map[string]int64),
			LabelCounts:  make(map[string]int64),
			AvgLatencyMs: make(map[string]int64),
		},
		latencyTotal: make(map[string]int64),
	}
}

func (a *Audit) record(d Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.log) >= a.max {
		a.log = a.log[1:]
	}
	a.log = append(a.log, d)

	a.stats.TotalRequests++
	a.stats.RouterCounts[d.Router]++
	a.stats.LabelCounts[d.Label]++
	if d.Abstained {
		a.stats.Abstentions++
	}
	a.latencyTotal[d.Router] += d.LatencyMs
	a.stats.AvgLatencyMs[d.Router] = a.latencyTotal[d.Router] / a.stats.RouterCounts[d.Router]
}

func (a *Audit) recordFailure(router string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Failures++
}

// RecordOutcome updates a decision with the result of its branch.
func (a *Audit) RecordOutcome(requestID string, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.log) - 1; i >= 0; i-- {
		if a.log[i].RequestID == requestID {
			a.log[i].Success = &success
			return
		}
	}
}

// Log returns up to limit of the most recent decisions, oldest first.
// limit <= 0 returns everything retained.
func (a *Audit) Log(limit int) []Decision {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.log) {
		limit = len(a.log)
	}
	out := make([]Decision, limit)
	copy(out, a.log[len(a.log)-limit:])
	return out
}

// Stats returns a snapshot of the routing statistics.
func (a *Audit) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.stats
	s.RouterCounts = maps.Clone(a.stats.RouterCounts)
	s.LabelCounts = maps.Clone(a.stats.LabelCounts)
	s.AvgLatencyMs = maps.Clone(a.stats.AvgLatencyMs)
	return s
}

// Explain returns the decision with the given request ID, or nil.
func (a *Audit) Explain(requestID string) *Decision {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := len(a.log) - 1; i >= 0; i-- {
		if a.log[i].RequestID == requestID {
			d := a.log[i]
			return &d
		}
	}
	return nil
}
