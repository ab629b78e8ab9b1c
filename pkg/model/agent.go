package model

import "time"

// AgentSpec is the plain configuration record of one agent. Agent behavior
// lives in the implementations of agent.Agent; this carries data only.
type AgentSpec struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Role       string        `json:"role" yaml:"role"`
	Tools      []string      `json:"tools" yaml:"tools"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}
