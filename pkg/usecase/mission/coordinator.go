package mission

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/agent"
	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/oracle"
	"github.com/hivemind-lab/hivemind/pkg/policy"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/hivemind-lab/hivemind/pkg/utils/metrics"
)

// Fixed texts for the two recovery paths of synthesis. Deterministic so
// callers and tests can rely on them.
const (
	synthesisFallbackAnswer = "The hive collected agent reports but could not synthesize them into a single answer. Raw reports are attached."
	noDataAnswer            = "No data retrieved: every recruited agent failed to complete its task."
)

// Recorder is the slice of the memory recorder the coordinator needs
type Recorder interface {
	RecordAgentResult(ctx context.Context, agentID, content string, metadata map[string]any)
}

// Coordinator drives a mission through its states: recruit agents, run
// them concurrently, reduce their reports into one answer.
type Coordinator struct {
	registry *agent.Registry
	oracle   oracle.Oracle
	recorder Recorder

	planner   *policy.Planner
	tracker   *metrics.Tracker
	maxAgents int
	chunkSize int
}

// Option configures the coordinator
type Option func(*Coordinator)

// WithPlanner applies a planning policy to the candidate agent set
func WithPlanner(p *policy.Planner) Option {
	return func(x *Coordinator) {
		x.planner = p
	}
}

// WithTracker records per-agent and per-mission execution metrics
func WithTracker(t *metrics.Tracker) Option {
	return func(x *Coordinator) {
		x.tracker = t
	}
}

// WithMaxAgents caps how many agents one mission may recruit
func WithMaxAgents(n int) Option {
	return func(x *Coordinator) {
		if n > 0 {
			x.maxAgents = n
		}
	}
}

// WithChunkSize sets the delta size of streamed answers
func WithChunkSize(n int) Option {
	return func(x *Coordinator) {
		if n > 0 {
			x.chunkSize = n
		}
	}
}

// New creates a coordinator over the registry
func New(registry *agent.Registry, o oracle.Oracle, recorder Recorder, opts ...Option) *Coordinator {
	x := &Coordinator{
		registry:  registry,
		oracle:    o,
		recorder:  recorder,
		maxAgents: 5,
		chunkSize: 50,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Dispatch runs one mission to completion and returns it. The mission
// itself never errors while at least one agent succeeds; the error return
// covers coordinator-level problems only.
func (x *Coordinator) Dispatch(ctx context.Context, query string, force []string) (*model.Mission, error) {
	return x.run(ctx, query, force, nil)
}

func (x *Coordinator) run(ctx context.Context, query string, force []string, emit func(Event) bool) (*model.Mission, error) {
	if query == "" {
		return nil, goerr.New("query is empty")
	}

	start := time.Now()
	m := &model.Mission{
		ID:    model.NewMissionID(),
		Query: query,
		State: model.MissionPlanning,
	}
	logger := logging.From(ctx)
	logger.Info("mission started", "mission_id", m.ID, "query", query)

	m.Plan = x.plan(ctx, query, force)
	logger.Info("agents recruited", "mission_id", m.ID, "plan", m.Plan)

	m.State = model.MissionExecuting
	x.execute(ctx, m, emit)

	m.State = model.MissionSynthesizing
	m.Answer = x.synthesize(ctx, query, m.Reports)

	if len(m.Reports) > 0 {
		m.State = model.MissionDone
	} else {
		m.State = model.MissionFailed
	}
	m.Duration = time.Since(start)

	if x.tracker != nil {
		x.tracker.RecordMission(m.Duration, m.State == model.MissionDone)
	}
	logger.Info("mission finished",
		"mission_id", m.ID,
		"state", m.State,
		"reports", len(m.Reports),
		"failures", len(m.Failures),
		"duration_ms", m.DurationMS())

	return m, nil
}

// plan recruits agents. An explicit caller list wins, filtered to known
// IDs; otherwise the oracle chooses. Any path that ends empty falls back
// to the default agent.
func (x *Coordinator) plan(ctx context.Context, query string, force []string) []string {
	logger := logging.From(ctx)

	var candidates []string
	if len(force) > 0 {
		candidates = x.known(force)
	} else {
		selected, err := x.oracle.PlanMission(ctx, query, x.registry.Specs(), x.maxAgents)
		if err != nil {
			logger.Warn("planning failed, falling back to default agent", "error", err)
		} else {
			candidates = x.known(selected)
		}
	}

	if len(candidates) > x.maxAgents {
		candidates = candidates[:x.maxAgents]
	}

	if x.planner != nil && len(candidates) > 0 {
		allowed, err := x.planner.Filter(ctx, query, candidates)
		if err != nil {
			logger.Warn("planning policy failed, keeping candidate set", "error", err)
		} else {
			candidates = allowed
		}
	}

	if len(candidates) == 0 {
		if _, ok := x.registry.Get(agent.DefaultAgentID); ok {
			return []string{agent.DefaultAgentID}
		}
		// Degenerate registry without the default agent: recruit any one
		if ids := x.registry.IDs(); len(ids) > 0 {
			return ids[:1]
		}
		return nil
	}
	return candidates
}

// known filters an ID list to registered agents, dropping duplicates
func (x *Coordinator) known(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := x.registry.Get(id); ok {
			valid = append(valid, id)
		}
	}
	return valid
}

// execute runs every recruited agent concurrently. One agent failing or
// panicking never touches its siblings.
func (x *Coordinator) execute(ctx context.Context, m *model.Mission, emit func(Event) bool) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range m.Plan {
		ag, ok := x.registry.Get(id)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(id string, ag agent.Agent) {
			defer wg.Done()

			started := time.Now()
			report, err := x.runAgent(ctx, ag, m.Query)
			elapsed := time.Since(started)

			if x.tracker != nil {
				x.tracker.RecordExecution(id, elapsed, err == nil)
			}

			mu.Lock()
			if err != nil {
				m.Failures = append(m.Failures, model.Failure{Agent: id, Error: err.Error()})
			} else {
				m.Reports = append(m.Reports, report)
			}
			mu.Unlock()

			if err != nil {
				logging.From(ctx).Warn("agent failed", "agent", id, "error", err)
				if emit != nil {
					emit(Event{Type: EventProgress, Agent: id, Status: "failed"})
				}
				return
			}

			// Fire and forget: the mission does not wait for this write
			x.recorder.RecordAgentResult(ctx, id, report.Summary, map[string]any{
				"task":        m.Query,
				"mission_id":  string(m.ID),
				"duration_ms": float64(elapsed) / float64(time.Millisecond),
			})
			if emit != nil {
				emit(Event{Type: EventProgress, Agent: id, Status: "done"})
			}
		}(id, ag)
	}

	wg.Wait()
}

func (x *Coordinator) runAgent(ctx context.Context, ag agent.Agent, task string) (report *model.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("agent panicked", goerr.V("recover", r))
		}
	}()
	return ag.ProcessTask(ctx, task)
}

// synthesize reduces the successful reports into one answer. Both failure
// paths produce fixed text, never an error.
func (x *Coordinator) synthesize(ctx context.Context, query string, reports []*model.Report) string {
	if len(reports) == 0 {
		return noDataAnswer
	}

	answer, err := x.oracle.Synthesize(ctx, query, reports)
	if err != nil {
		logging.From(ctx).Warn("synthesis failed, using fallback answer", "error", err)
		return synthesisFallbackAnswer
	}
	return answer
}
