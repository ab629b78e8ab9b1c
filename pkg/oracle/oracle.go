package oracle

import (
	"context"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// Oracle is the reasoning collaborator used for agent selection, report
// reduction and candidate re-ranking. It is a black box returning text or a
// ranked ID list; prompt content is an implementation detail.
type Oracle interface {
	// PlanMission selects up to maxAgents agent IDs for the query from the
	// available set. Returned IDs are not guaranteed to be valid; callers
	// must filter them.
	PlanMission(ctx context.Context, query string, available []model.AgentSpec, maxAgents int) ([]string, error)

	// Synthesize reduces successful agent reports into one answer
	Synthesize(ctx context.Context, query string, reports []*model.Report) (string, error)

	// RankCandidates reorders candidate texts by relevance to the query and
	// returns the indices of the top k candidates, best first.
	RankCandidates(ctx context.Context, query string, candidates []string, k int) ([]int, error)
}
