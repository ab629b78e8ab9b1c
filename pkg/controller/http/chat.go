package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/usecase/mission"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

// OpenAI-compatible chat surface. A chat completion request becomes one
// mission; the last user message is the query.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	query := lastUserMessage(req.Messages)
	if query == "" {
		respondError(w, r, http.StatusBadRequest, "no user message found")
		return
	}

	if req.Stream {
		s.streamCompletion(w, r, req.Model, query)
		return
	}

	m, err := s.dispatcher.Dispatch(r.Context(), query, nil)
	if err != nil {
		logging.From(r.Context()).Error("dispatch failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "mission dispatch failed")
		return
	}

	stop := "stop"
	respondJSON(w, http.StatusOK, chatResponse{
		ID:      completionID(m.ID),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      &chatMessage{Role: "assistant", Content: m.Answer},
			FinishReason: &stop,
		}},
	})
}

// streamCompletion plays the mission out as server-sent events. Framing
// per event is `data: <json>\n\n`; the stream always ends with the
// `data: [DONE]\n\n` sentinel unless the client goes away first.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, modelName, query string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id := completionID(model.NewMissionID())
	created := time.Now().Unix()

	writeChunk := func(choices []chatChoice) bool {
		chunk := chatResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelName,
			Choices: choices,
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for ev := range s.dispatcher.Stream(r.Context(), query, nil) {
		switch ev.Type {
		case mission.EventProgress:
			content := fmt.Sprintf("[%s: %s]\n", ev.Agent, ev.Status)
			if !writeChunk([]chatChoice{{Delta: &chatMessage{Content: content}}}) {
				return
			}
		case mission.EventDelta:
			if !writeChunk([]chatChoice{{Delta: &chatMessage{Content: ev.Content}}}) {
				return
			}
		case mission.EventFinish:
			stop := "stop"
			if !writeChunk([]chatChoice{{Delta: &chatMessage{}, FinishReason: &stop}}) {
				return
			}
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func completionID(id model.MissionID) string {
	return "chatcmpl-" + string(id)
}
