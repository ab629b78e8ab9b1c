package agent

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

const arxivBaseURL = "http://export.arxiv.org/api"

// Scholar searches arXiv for academic papers. The API speaks Atom, so
// this is the one agent that parses XML instead of JSON.
type Scholar struct {
	httpAgent
	baseURL string
}

// NewScholar creates the academic search agent
func NewScholar(spec model.AgentSpec, recorder *Recorder) *Scholar {
	return &Scholar{
		httpAgent: newHTTPAgent(spec, recorder),
		baseURL:   arxivBaseURL,
	}
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	ID        string `xml:"id"`
}

// ProcessTask searches papers matching the task
func (x *Scholar) ProcessTask(ctx context.Context, task string) (*model.Report, error) {
	return x.run(ctx, task, func(ctx context.Context) (finding, error) {
		endpoint := fmt.Sprintf("%s/query?search_query=all:%s&max_results=5",
			x.baseURL, url.QueryEscape(task))

		body, err := x.get(ctx, endpoint, nil)
		if err != nil {
			return finding{}, err
		}

		var feed arxivFeed
		if err := xml.Unmarshal(body, &feed); err != nil {
			return finding{}, goerr.Wrap(err, "failed to parse arXiv feed")
		}

		papers := make([]map[string]any, 0, len(feed.Entries))
		for _, e := range feed.Entries {
			papers = append(papers, map[string]any{
				"title":     strings.TrimSpace(e.Title),
				"summary":   strings.TrimSpace(e.Summary),
				"published": e.Published,
				"url":       e.ID,
			})
		}

		return finding{
			summary: paperSummary(feed.Entries, task),
			detail:  map[string]any{"papers": papers},
		}, nil
	})
}

func paperSummary(entries []arxivEntry, task string) string {
	if len(entries) == 0 {
		return fmt.Sprintf("no papers found for %q", task)
	}
	titles := make([]string, 0, 3)
	for i, e := range entries {
		if i >= 3 {
			break
		}
		titles = append(titles, strings.TrimSpace(e.Title))
	}
	return fmt.Sprintf("found %d papers; top results: %s", len(entries), strings.Join(titles, "; "))
}
