package agent

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const stackexchangeBaseURL = "https://api.stackexchange.com/2.3"

// TheFixer hunts for practical solutions on Stack Overflow through the
// Stack Exchange search API.
type TheFixer struct {
	httpAgent
	baseURL string
}

// NewTheFixer creates the troubleshooting agent
func NewTheFixer(spec model.AgentSpec, recorder *Recorder) *TheFixer {
	return &TheFixer{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   stackexchangeBaseURL,
	}
}

// ProcessTask searches answered questions matching the task
func (x *TheFixer) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		endpoint := fmt.Sprintf("%s/search/advanced?order=desc&sort=relevance&q=%s&site=stackoverflow&accepted=True&pagesize=5",
			x.baseURL, url.QueryEscape(task))

		result, err := x.getJSON(ctx, endpoint, nil)
		if err != nil {
			return finding{}, err
		}
		return finding{summary: questionSummary(result, task), detail: result}, nil
	})
}

func questionSummary(result map[string]any, task string) string {
	items, ok := result["items"].([]any)
	if !ok || len(items) == 0 {
		return fmt.Sprintf("no accepted answers found for %q", task)
	}

	summary := fmt.Sprintf("found %d answered questions:", len(items))
	for i, item := range items {
		if i >= 3 {
			break
		}
		q, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title, _ := q["title"].(string)
		summary += fmt.Sprintf(" %s;", title)
	}
	return summary
}
