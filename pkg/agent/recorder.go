package agent

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/async"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

// MemoryWriter is the slice of the hot tier the recorder needs
type MemoryWriter interface {
	Write(ctx context.Context, record *model.Record) (string, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Recorder writes agent observations into shared memory. Writes go through
// the bounded async queue so a slow embedding call never blocks the agent;
// a failed write is logged and dropped.
type Recorder struct {
	memory   MemoryWriter
	embedder Embedder
	queue    *async.Queue
}

// NewRecorder creates a recorder over the hot tier
func NewRecorder(memory MemoryWriter, embedder Embedder, queue *async.Queue) *Recorder {
	return &Recorder{memory: memory, embedder: embedder, queue: queue}
}

// RecordToolResult stores one completed tool call as a tool_result record.
// Fire and forget: errors surface in logs only.
func (r *Recorder) RecordToolResult(ctx context.Context, agentID, content string, metadata map[string]any) {
	r.record(ctx, agentID, content, model.DataTypeToolResult, metadata)
}

// RecordAgentResult stores a finished agent report as an agent_result record
func (r *Recorder) RecordAgentResult(ctx context.Context, agentID, content string, metadata map[string]any) {
	r.record(ctx, agentID, content, model.DataTypeAgentResult, metadata)
}

func (r *Recorder) record(ctx context.Context, agentID, content string, dataType model.DataType, metadata map[string]any) {
	err := r.queue.Enqueue(ctx, func(taskCtx context.Context) error {
		embedding, err := r.embedder.Embedding(taskCtx, content)
		if err != nil {
			return goerr.Wrap(err, "failed to embed observation", goerr.V("agent", agentID))
		}
		record := model.NewRecord(agentID, content, embedding, dataType, metadata)
		if _, err := r.memory.Write(taskCtx, record); err != nil {
			return goerr.Wrap(err, "failed to write observation", goerr.V("agent", agentID))
		}
		return nil
	})
	if err != nil {
		logging.From(ctx).Warn("dropped memory write", "agent", agentID, "error", err)
	}
}
