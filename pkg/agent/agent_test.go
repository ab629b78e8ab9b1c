package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/async"
)

type stubAgent struct {
	spec model.AgentSpec
}

func (s *stubAgent) Spec() model.AgentSpec {
	return s.spec
}

func (s *stubAgent) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return &model.Report{Agent: s.spec.ID, Task: task}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	gt.NoError(t, r.Register(&stubAgent{spec: model.AgentSpec{ID: "beta"}}))
	gt.NoError(t, r.Register(&stubAgent{spec: model.AgentSpec{ID: "alpha"}}))

	gt.Error(t, r.Register(&stubAgent{spec: model.AgentSpec{ID: "alpha"}}))
	gt.Error(t, r.Register(&stubAgent{spec: model.AgentSpec{}}))

	a, ok := r.Get("alpha")
	gt.True(t, ok)
	gt.Equal(t, a.Spec().ID, "alpha")

	_, ok = r.Get("missing")
	gt.True(t, !ok)

	gt.Equal(t, r.IDs(), []string{"alpha", "beta"})
	gt.A(t, r.Specs()).Length(2)
}

type capturingMemory struct {
	mu      sync.Mutex
	records []*model.Record
}

func (m *capturingMemory) Write(ctx context.Context, record *model.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return record.Key(), nil
}

func (m *capturingMemory) all() []*model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Record{}, m.records...)
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 8), nil
}

func newTestRecorder(t *testing.T) (*Recorder, *capturingMemory, *async.Queue) {
	t.Helper()
	memory := &capturingMemory{}
	queue := async.NewQueue(context.Background(), 16)
	return NewRecorder(memory, fixedEmbedder{}, queue), memory, queue
}

func testSpec(id string) model.AgentSpec {
	return model.AgentSpec{ID: id, MaxRetries: 1, Timeout: 5 * time.Second}
}

func TestWebScout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Query().Get("format"), "json")
		w.Write([]byte(`{"AbstractText": "Go is a programming language."}`))
	}))
	defer srv.Close()

	recorder, memory, queue := newTestRecorder(t)
	scout := NewWebScout(testSpec("web_scout"), recorder)
	scout.baseURL = srv.URL

	report, err := scout.ProcessTask(context.Background(), "what is golang")
	gt.NoError(t, err)
	gt.Equal(t, report.Agent, "web_scout")
	gt.Equal(t, report.Summary, "Go is a programming language.")

	// Drain the async queue, then the tool result must be in memory
	queue.Close()
	records := memory.all()
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].AgentID, "web_scout")
	gt.Equal(t, records[0].DataType, model.DataTypeToolResult)
	gt.Equal(t, records[0].Metadata["attempts"], 1)
}

func TestWebScoutRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	recorder, memory, queue := newTestRecorder(t)
	spec := testSpec("web_scout")
	spec.MaxRetries = 3
	scout := NewWebScout(spec, recorder)
	scout.baseURL = srv.URL

	_, err := scout.ProcessTask(context.Background(), "doomed")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrToolError))
	gt.Equal(t, calls, 3)

	// Nothing is recorded for a failed task
	queue.Close()
	gt.A(t, memory.all()).Length(0)
}

func TestCodeHunter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Header.Get("Authorization"), "Bearer token123")
		w.Write([]byte(`{"items": [
			{"full_name": "golang/go", "description": "the Go language"},
			{"full_name": "golang/tools", "description": "Go tools"}
		]}`))
	}))
	defer srv.Close()

	recorder, _, queue := newTestRecorder(t)
	defer queue.Close()
	hunter := NewCodeHunter(testSpec("code_hunter"), recorder, "token123")
	hunter.baseURL = srv.URL

	report, err := hunter.ProcessTask(context.Background(), "go compiler")
	gt.NoError(t, err)
	gt.S(t, report.Summary).Contains("golang/go")
	gt.S(t, report.Summary).Contains("2 repositories")
}

func TestScholar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1234.5678</id>
    <title>Attention Is All You Need</title>
    <summary>We propose the Transformer.</summary>
    <published>2017-06-12T00:00:00Z</published>
  </entry>
</feed>`))
	}))
	defer srv.Close()

	recorder, _, queue := newTestRecorder(t)
	defer queue.Close()
	scholar := NewScholar(testSpec("scholar"), recorder)
	scholar.baseURL = srv.URL

	report, err := scholar.ProcessTask(context.Background(), "transformers")
	gt.NoError(t, err)
	gt.S(t, report.Summary).Contains("Attention Is All You Need")
	papers := report.Detail["papers"].([]map[string]any)
	gt.A(t, papers).Length(1)
	gt.Equal(t, papers[0]["url"], "http://arxiv.org/abs/1234.5678")
}

func TestFactChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.S(t, r.URL.Path).Contains("Go_programming_language")
		w.Write([]byte(`{"extract": "Go is a statically typed language."}`))
	}))
	defer srv.Close()

	recorder, _, queue := newTestRecorder(t)
	defer queue.Close()
	checker := NewFactChecker(testSpec("fact_checker"), recorder)
	checker.baseURL = srv.URL

	report, err := checker.ProcessTask(context.Background(), "Go programming language")
	gt.NoError(t, err)
	gt.Equal(t, report.Summary, "Go is a statically typed language.")
}

func TestTheFixer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Query().Get("site"), "stackoverflow")
		w.Write([]byte(`{"items": [{"title": "How to cancel a context"}]}`))
	}))
	defer srv.Close()

	recorder, _, queue := newTestRecorder(t)
	defer queue.Close()
	fixer := NewTheFixer(testSpec("the_fixer"), recorder)
	fixer.baseURL = srv.URL

	report, err := fixer.ProcessTask(context.Background(), "context cancel")
	gt.NoError(t, err)
	gt.S(t, report.Summary).Contains("How to cancel a context")
}

func TestSocialSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.NotEqual(t, r.Header.Get("User-Agent"), "")
		w.Write([]byte(`{"data": {"children": [
			{"data": {"title": "hivemind architectures", "subreddit": "golang"}}
		]}}`))
	}))
	defer srv.Close()

	recorder, _, queue := newTestRecorder(t)
	defer queue.Close()
	social := NewSocialSentiment(testSpec("social_sentiment"), recorder)
	social.baseURL = srv.URL

	report, err := social.ProcessTask(context.Background(), "hivemind")
	gt.NoError(t, err)
	gt.S(t, report.Summary).Contains("r/golang")
}
