package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// httpAgent carries what every HTTP-backed agent shares: its roster spec,
// the memory recorder and an HTTP client. Concrete agents embed it and
// supply the backend call.
type httpAgent struct {
	spec     model.AgentSpec
	recorder *Recorder
	client   *http.Client
}

func newHTTPAgent(spec model.AgentSpec, recorder *Recorder) httpAgent {
	return httpAgent{
		spec:     spec,
		recorder: recorder,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Spec returns the agent's roster entry
func (x *httpAgent) Spec() model.AgentSpec {
	return x.spec
}

// finding is what one backend call produced
type finding struct {
	summary string
	detail  map[string]any
}

// run executes the backend call under the retry contract, records the tool
// result into shared memory, and builds the report.
func (x *httpAgent) run(ctx context.Context, task string, call func(ctx context.Context) (finding, error)) (*model.Report, error) {
	result, attempts, err := Do(ctx, x.spec.MaxRetries, retryDelay, func(ctx context.Context) (finding, error) {
		if x.spec.Timeout > 0 {
			callCtx, cancel := context.WithTimeout(ctx, x.spec.Timeout)
			defer cancel()
			return call(callCtx)
		}
		return call(ctx)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "task failed",
			goerr.V("agent", x.spec.ID), goerr.V("task", task))
	}

	x.recorder.RecordToolResult(ctx, x.spec.ID, result.summary, map[string]any{
		"task":     task,
		"attempts": attempts,
	})

	return &model.Report{
		Agent:   x.spec.ID,
		Task:    task,
		Summary: result.summary,
		Detail:  result.detail,
	}, nil
}

// getJSON fetches a URL and decodes the JSON body
func (x *httpAgent) getJSON(ctx context.Context, url string, header http.Header) (map[string]any, error) {
	body, err := x.get(ctx, url, header)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode response", goerr.V("url", url))
	}
	return result, nil
}

func (x *httpAgent) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", url))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response", goerr.V("url", url))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("backend returned error",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}
	return body, nil
}
