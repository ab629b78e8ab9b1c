package mission

import (
	"context"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// EventType discriminates stream events
type EventType string

const (
	// EventProgress reports one agent finishing, in completion order
	EventProgress EventType = "progress"

	// EventDelta carries one chunk of the final answer
	EventDelta EventType = "delta"

	// EventFinish terminates the stream and carries the completed mission
	EventFinish EventType = "finish"
)

// Event is one element of a streaming mission
type Event struct {
	Type         EventType
	Agent        string
	Status       string
	Content      string
	FinishReason string
	Mission      *model.Mission
}

// Stream runs a mission like Dispatch but surfaces results as they
// happen: a progress event per completed agent (first finished, first
// reported), the answer in fixed-size chunks, then a single finish event.
// The channel closes when the mission ends or ctx is canceled; after
// cancellation no further events are emitted.
func (x *Coordinator) Stream(ctx context.Context, query string, force []string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		send := func(ev Event) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		m, err := x.run(ctx, query, force, send)
		if err != nil {
			return
		}

		for _, chunk := range chunks(m.Answer, x.chunkSize) {
			if !send(Event{Type: EventDelta, Content: chunk}) {
				return
			}
		}

		send(Event{Type: EventFinish, FinishReason: "stop", Mission: m})
	}()

	return events
}

// chunks splits s into rune-safe pieces of at most size characters
func chunks(s string, size int) []string {
	if s == "" {
		return nil
	}

	runes := []rune(s)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
