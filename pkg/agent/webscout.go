package agent

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const duckduckgoBaseURL = "https://api.duckduckgo.com"

// WebScout answers general research tasks through the DuckDuckGo
// instant-answer API. It is the hive's default agent: cheap, keyless and
// broad.
type WebScout struct {
	httpAgent
	baseURL string
}

// NewWebScout creates the web research agent
func NewWebScout(spec model.AgentSpec, recorder *Recorder) *WebScout {
	return &WebScout{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   duckduckgoBaseURL,
	}
}

// ProcessTask runs an instant-answer lookup for the task
func (x *WebScout) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
			x.baseURL, url.QueryEscape(task))

		result, err := x.getJSON(ctx, endpoint, nil)
		if err != nil {
			return finding{}, err
		}
		return finding{summary: instantAnswerSummary(result, task), detail: result}, nil
	})
}

func instantAnswerSummary(result map[string]any, task string) string {
	if s, ok := result["AbstractText"].(string); ok && s != "" {
		return s
	}
	if s, ok := result["Answer"].(string); ok && s != "" {
		return s
	}
	if s, ok := result["Definition"].(string); ok && s != "" {
		return s
	}
	if topics, ok := result["RelatedTopics"].([]any); ok && len(topics) > 0 {
		if first, ok := topics[0].(map[string]any); ok {
			if s, ok := first["Text"].(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("no direct answer found for %q", task)
}
