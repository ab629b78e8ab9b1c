package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"

	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

// Planner gates which agents a mission may dispatch. Policies are Rego
// modules under the `planning` package; `deny` rules remove an agent from
// the candidate set. No policy files means every candidate passes.
type Planner struct {
	query *rego.PreparedEvalQuery
}

type regoPrintHook struct{}

func (h *regoPrintHook) Print(ctx print.Context, message string) error {
	logging.Default().Info("rego print", "location", ctx.Location.String(), "message", message)
	return nil
}

// Load reads all .rego files from policyDir and prepares the planning
// query. An empty directory yields an allow-everything planner.
func Load(ctx context.Context, policyDir string) (*Planner, error) {
	if policyDir == "" {
		return &Planner{}, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return &Planner{}, nil
	}

	options := []func(*rego.Rego){rego.Query("data.planning")}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare planning query")
	}

	return &Planner{query: &prepared}, nil
}

// Filter evaluates the planning policy for each candidate agent and
// returns the ones no deny rule matched.
func (p *Planner) Filter(ctx context.Context, query string, candidates []string) ([]string, error) {
	if p.query == nil {
		return candidates, nil
	}

	allowed := make([]string, 0, len(candidates))
	for _, agentID := range candidates {
		input := map[string]any{
			"query": query,
			"agent": agentID,
		}

		rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{}))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to evaluate planning policy",
				goerr.V("agent", agentID))
		}

		if denied(rs) {
			logging.From(ctx).Info("agent denied by planning policy",
				"agent", agentID)
			continue
		}
		allowed = append(allowed, agentID)
	}

	return allowed, nil
}

func denied(rs rego.ResultSet) bool {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false
	}
	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return false
	}

	switch deny := data["deny"].(type) {
	case []any:
		return len(deny) > 0
	case bool:
		return deny
	}
	return false
}
