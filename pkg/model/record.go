package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DataType distinguishes observation categories in memory
type DataType string

const (
	DataTypeToolResult  DataType = "tool_result"
	DataTypeAgentResult DataType = "agent_result"
	DataTypeThought     DataType = "thought"
)

// Record is the atomic unit of memory: one observation written by an agent.
// Records are append-only; they are never mutated after creation and deleted
// only by hot store eviction.
type Record struct {
	AgentID   string         `json:"agent_id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Timestamp time.Time      `json:"timestamp"`
	DataType  DataType       `json:"data_type"`
	Metadata  map[string]any `json:"metadata"`
}

// NewRecord creates a record stamped with the current time
func NewRecord(agentID, content string, embedding []float32, dataType DataType, metadata map[string]any) *Record {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Record{
		AgentID:   agentID,
		Content:   content,
		Embedding: embedding,
		Timestamp: time.Now(),
		DataType:  dataType,
		Metadata:  metadata,
	}
}

// Key returns the logical identity of the record:
// {agent_id}:{data_type}:{timestamp_ms}
func (r *Record) Key() string {
	return fmt.Sprintf("%s:%s:%d", r.AgentID, r.DataType, r.Timestamp.UnixMilli())
}

// Validate checks the record against the store dimension. A dimension
// mismatch is a hard error and must reject the write.
func (r *Record) Validate(dimension int) error {
	if r.AgentID == "" {
		return goerr.New("agent_id is empty")
	}
	if len(r.Embedding) != dimension {
		return goerr.Wrap(ErrDimensionMismatch, "invalid embedding",
			goerr.V("got", len(r.Embedding)), goerr.V("want", dimension))
	}
	return nil
}
