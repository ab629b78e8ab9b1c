package agent

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// Delay between retry attempts of one tool call
const retryDelay = 500 * time.Millisecond

// Agent is an external collaborator. It receives a task, does its work
// through whatever backend it wraps, and returns a structured report.
// Everything else about memory and orchestration is the hive's business.
type Agent interface {
	Spec() model.AgentSpec
	ProcessTask(ctx context.Context, task string) (*model.Report, error)
}

// Registry holds the known agents. Construct one explicitly and register
// what the deployment needs; there is no global registry.
type Registry struct {
	agents map[string]Agent
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent. Duplicate IDs are an error.
func (r *Registry) Register(a Agent) error {
	id := a.Spec().ID
	if id == "" {
		return goerr.New("agent has empty ID")
	}
	if _, exists := r.agents[id]; exists {
		return goerr.New("agent already registered", goerr.V("id", id))
	}
	r.agents[id] = a
	return nil
}

// Get returns the agent for the ID, or false
func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns all registered agent IDs, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Specs returns the specs of all registered agents, sorted by ID
func (r *Registry) Specs() []model.AgentSpec {
	specs := make([]model.AgentSpec, 0, len(r.agents))
	for _, id := range r.IDs() {
		specs = append(specs, r.agents[id].Spec())
	}
	return specs
}
