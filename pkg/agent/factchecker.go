package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const wikipediaBaseURL = "https://en.wikipedia.org"

// FactChecker verifies claims against Wikipedia. It looks the topic up via
// the REST summary endpoint and reports the canonical description.
type FactChecker struct {
	httpAgent
	baseURL string
}

// NewFactChecker creates the fact verification agent
func NewFactChecker(spec model.AgentSpec, recorder *Recorder) *FactChecker {
	return &FactChecker{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   wikipediaBaseURL,
	}
}

// ProcessTask looks the task's topic up on Wikipedia
func (x *FactChecker) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		title := strings.ReplaceAll(strings.TrimSpace(task), " ", "_")
		endpoint := fmt.Sprintf("%s/api/rest_v1/page/summary/%s",
			x.baseURL, url.PathEscape(title))

		result, err := x.getJSON(ctx, endpoint, nil)
		if err != nil {
			return finding{}, err
		}

		summary, _ := result["extract"].(string)
		if summary == "" {
			summary = fmt.Sprintf("no reference article found for %q", task)
		}
		return finding{summary: summary, detail: result}, nil
	})
}
