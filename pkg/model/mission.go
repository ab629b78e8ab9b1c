package model

import (
	"time"

	"github.com/google/uuid"
)

type MissionID string

// NewMissionID generates a new unique MissionID
func NewMissionID() MissionID {
	return MissionID(uuid.New().String())
}

// MissionState tracks the dispatch lifecycle of a mission
type MissionState string

const (
	MissionPlanning     MissionState = "planning"
	MissionExecuting    MissionState = "executing"
	MissionSynthesizing MissionState = "synthesizing"
	MissionDone         MissionState = "done"
	MissionFailed       MissionState = "failed"
)

// Mission is one end-to-end query-to-answer dispatch cycle. It is transient
// and exists only for the duration of the cycle; it is never persisted.
type Mission struct {
	ID       MissionID     `json:"id"`
	Query    string        `json:"query"`
	State    MissionState  `json:"state"`
	Plan     []string      `json:"plan"`
	Reports  []*Report     `json:"agent_reports"`
	Failures []Failure     `json:"failures"`
	Answer   string        `json:"answer"`
	Duration time.Duration `json:"-"`
}

// DurationMS returns the mission duration in milliseconds for API responses
func (m *Mission) DurationMS() float64 {
	return float64(m.Duration) / float64(time.Millisecond)
}

// Report is the successful outcome of one agent's task
type Report struct {
	Agent   string         `json:"agent"`
	Task    string         `json:"task"`
	Summary string         `json:"summary"`
	Detail  map[string]any `json:"result,omitempty"`
}

// Failure is the terminal outcome of one agent that could not complete
type Failure struct {
	Agent string `json:"agent"`
	Error string `json:"error"`
}
