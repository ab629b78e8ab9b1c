package metrics

import (
	"sync"
	"time"
)

// AgentStats aggregates execution outcomes for one agent
type AgentStats struct {
	Executions int           `json:"executions"`
	Failures   int           `json:"failures"`
	TotalTime  time.Duration `json:"-"`
}

// AvgDurationMS returns the mean execution time in milliseconds
func (s AgentStats) AvgDurationMS() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.TotalTime) / float64(s.Executions) / float64(time.Millisecond)
}

// Tracker records execution metrics across the system. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	agents map[string]*AgentStats

	totalMissions  int
	failedMissions int
	totalTime      time.Duration
}

// New creates an empty Tracker
func New() *Tracker {
	return &Tracker{
		agents: make(map[string]*AgentStats),
	}
}

// RecordExecution records one agent (or orchestrator) execution
func (t *Tracker) RecordExecution(agentID string, duration time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats, ok := t.agents[agentID]
	if !ok {
		stats = &AgentStats{}
		t.agents[agentID] = stats
	}

	stats.Executions++
	stats.TotalTime += duration
	if !success {
		stats.Failures++
	}
}

// RecordMission records one end-to-end mission outcome
func (t *Tracker) RecordMission(duration time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalMissions++
	t.totalTime += duration
	if !success {
		t.failedMissions++
	}
}

// Snapshot returns a serializable view of all metrics
func (t *Tracker) Snapshot() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	agents := make(map[string]any, len(t.agents))
	for id, s := range t.agents {
		agents[id] = map[string]any{
			"executions":      s.Executions,
			"failures":        s.Failures,
			"avg_duration_ms": s.AvgDurationMS(),
		}
	}

	avgMS := 0.0
	if t.totalMissions > 0 {
		avgMS = float64(t.totalTime) / float64(t.totalMissions) / float64(time.Millisecond)
	}

	return map[string]any{
		"system": map[string]any{
			"total_missions":       t.totalMissions,
			"successful_missions":  t.totalMissions - t.failedMissions,
			"failed_missions":      t.failedMissions,
			"avg_response_time_ms": avgMS,
		},
		"agents": agents,
	}
}
