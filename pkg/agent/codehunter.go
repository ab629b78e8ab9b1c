package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const githubBaseURL = "https://api.github.com"

// CodeHunter searches GitHub repositories for code and projects relevant
// to the task. An API token raises the rate limit but is not required.
type CodeHunter struct {
	httpAgent
	baseURL string
	token   string
}

// NewCodeHunter creates the code search agent
func NewCodeHunter(spec model.AgentSpec, recorder *Recorder, token string) *CodeHunter {
	return &CodeHunter{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   githubBaseURL,
		token:     token,
	}
}

// ProcessTask searches repositories matching the task
func (x *CodeHunter) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		endpoint := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&per_page=5",
			x.baseURL, url.QueryEscape(task))

		header := http.Header{"Accept": []string{"application/vnd.github+json"}}
		if x.token != "" {
			header.Set("Authorization", "Bearer "+x.token)
		}

		result, err := x.getJSON(ctx, endpoint, header)
		if err != nil {
			return finding{}, err
		}
		return finding{summary: repoSearchSummary(result, task), detail: result}, nil
	})
}

func repoSearchSummary(result map[string]any, task string) string {
	items, ok := result["items"].([]any)
	if !ok || len(items) == 0 {
		return fmt.Sprintf("no repositories found for %q", task)
	}

	summary := fmt.Sprintf("found %d repositories; top matches:", len(items))
	for i, item := range items {
		if i >= 3 {
			break
		}
		repo, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := repo["full_name"].(string)
		desc, _ := repo["description"].(string)
		summary += fmt.Sprintf(" %s (%s);", name, desc)
	}
	return summary
}
