package oracle

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/hivemind-lab/hivemind/pkg/adapter"
	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/plan.md
var planPromptRaw string

//go:embed prompt/synthesize.md
var synthesizePromptRaw string

//go:embed prompt/rerank.md
var rerankPromptRaw string

var (
	planPromptTmpl       = template.Must(template.New("plan").Parse(planPromptRaw))
	synthesizePromptTmpl = template.Must(template.New("synthesize").Parse(synthesizePromptRaw))
	rerankPromptTmpl     = template.Must(template.New("rerank").Parse(rerankPromptRaw))
)

// geminiOracle implements Oracle on top of the Gemini adapter
type geminiOracle struct {
	gemini adapter.Gemini
}

// NewGemini creates an Oracle backed by Gemini
func NewGemini(gemini adapter.Gemini) Oracle {
	return &geminiOracle{gemini: gemini}
}

func (o *geminiOracle) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: ptrFloat32(0.7),
	}
	if jsonMode {
		config.Temperature = ptrFloat32(0.0)
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := o.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "oracle generation failed")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("empty oracle response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (o *geminiOracle) PlanMission(ctx context.Context, query string, available []model.AgentSpec, maxAgents int) ([]string, error) {
	var buf bytes.Buffer
	if err := planPromptTmpl.Execute(&buf, map[string]any{
		"Query":     query,
		"Agents":    available,
		"MaxAgents": maxAgents,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render plan prompt")
	}

	text, err := o.generate(ctx, buf.String(), true)
	if err != nil {
		return nil, goerr.Wrap(model.ErrPlanningFailure, err.Error())
	}

	var ids []string
	if err := json.Unmarshal([]byte(text), &ids); err != nil {
		return nil, goerr.Wrap(model.ErrPlanningFailure, "unparsable plan", goerr.V("text", text))
	}
	return ids, nil
}

func (o *geminiOracle) Synthesize(ctx context.Context, query string, reports []*model.Report) (string, error) {
	var buf bytes.Buffer
	if err := synthesizePromptTmpl.Execute(&buf, map[string]any{
		"Query":   query,
		"Reports": reports,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render synthesize prompt")
	}

	text, err := o.generate(ctx, buf.String(), false)
	if err != nil {
		return "", goerr.Wrap(model.ErrSynthesisFailure, err.Error())
	}
	return text, nil
}

func (o *geminiOracle) RankCandidates(ctx context.Context, query string, candidates []string, k int) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	var buf bytes.Buffer
	if err := rerankPromptTmpl.Execute(&buf, map[string]any{
		"Query":      query,
		"Candidates": candidates,
		"K":          k,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to render rerank prompt")
	}

	text, err := o.generate(ctx, buf.String(), true)
	if err != nil {
		return nil, err
	}

	var indices []int
	if err := json.Unmarshal([]byte(text), &indices); err != nil {
		return nil, goerr.New("unparsable ranking", goerr.V("text", text))
	}

	// Discard out-of-range or duplicate indices rather than failing
	seen := make(map[int]bool, len(indices))
	valid := make([]int, 0, k)
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		valid = append(valid, idx)
		if len(valid) == k {
			break
		}
	}
	return valid, nil
}

func ptrFloat32(f float32) *float32 {
	return &f
}
