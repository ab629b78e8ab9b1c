package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const redditBaseURL = "https://www.reddit.com"

// SocialSentiment samples public discussion on Reddit to gauge how a topic
// is being talked about.
type SocialSentiment struct {
	httpAgent
	baseURL string
}

// NewSocialSentiment creates the discussion analysis agent
func NewSocialSentiment(spec model.AgentSpec, recorder *Recorder) *SocialSentiment {
	return &SocialSentiment{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   redditBaseURL,
	}
}

// ProcessTask searches recent discussions about the task's topic
func (x *SocialSentiment) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		endpoint := fmt.Sprintf("%s/search.json?q=%s&sort=relevance&limit=10",
			x.baseURL, url.QueryEscape(task))

		// Reddit rejects requests without an explicit user agent
		header := http.Header{"User-Agent": []string{"hivemind/0.1"}}
		result, err := x.getJSON(ctx, endpoint, header)
		if err != nil {
			return finding{}, err
		}
		return finding{summary: discussionSummary(result, task), detail: result}, nil
	})
}

func discussionSummary(result map[string]any, task string) string {
	data, ok := result["data"].(map[string]any)
	if !ok {
		return fmt.Sprintf("no discussions found for %q", task)
	}
	children, ok := data["children"].([]any)
	if !ok || len(children) == 0 {
		return fmt.Sprintf("no discussions found for %q", task)
	}

	summary := fmt.Sprintf("found %d discussions:", len(children))
	for i, child := range children {
		if i >= 3 {
			break
		}
		post, ok := child.(map[string]any)
		if !ok {
			continue
		}
		postData, ok := post["data"].(map[string]any)
		if !ok {
			continue
		}
		title, _ := postData["title"].(string)
		sub, _ := postData["subreddit"].(string)
		summary += fmt.Sprintf(" %s (r/%s);", title, sub)
	}
	return summary
}
