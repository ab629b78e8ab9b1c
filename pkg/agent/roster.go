package agent

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/hivemind-lab/hivemind/pkg/model"
)

// DefaultAgentID is the agent every mission can fall back to
const DefaultAgentID = "web_scout"

// DefaultRoster returns the built-in agent lineup
func DefaultRoster() []model.AgentSpec {
	return []model.AgentSpec{
		{
			ID:         "web_scout",
			Name:       "Web Scout",
			Role:       "general web research and instant answers",
			Tools:      []string{"duckduckgo_search"},
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		{
			ID:         "code_hunter",
			Name:       "Code Hunter",
			Role:       "finding repositories, libraries and code examples",
			Tools:      []string{"github_search"},
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		{
			ID:         "scholar",
			Name:       "Scholar",
			Role:       "academic literature and preprint research",
			Tools:      []string{"arxiv_search"},
			MaxRetries: 3,
			Timeout:    90 * time.Second,
		},
		{
			ID:         "fact_checker",
			Name:       "Fact Checker",
			Role:       "verifying claims against reference sources",
			Tools:      []string{"wikipedia_lookup"},
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		{
			ID:         "the_fixer",
			Name:       "The Fixer",
			Role:       "troubleshooting and practical how-to answers",
			Tools:      []string{"stackexchange_search"},
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		{
			ID:         "social_sentiment",
			Name:       "Social Sentiment",
			Role:       "gauging public discussion and opinion",
			Tools:      []string{"reddit_search"},
			MaxRetries: 3,
			Timeout:    60 * time.Second,
		},
		{
			ID:         "context_analyst",
			Name:       "Context Analyst",
			Role:       "local context analysis through an MCP server",
			Tools:      []string{"mcp"},
			MaxRetries: 2,
			Timeout:    120 * time.Second,
		},
	}
}

type rosterFile struct {
	Agents []rosterEntry `yaml:"agents"`
}

// rosterEntry mirrors AgentSpec with the timeout as a duration string
type rosterEntry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Role       string   `yaml:"role"`
	Tools      []string `yaml:"tools"`
	MaxRetries int      `yaml:"max_retries"`
	Timeout    string   `yaml:"timeout"`
}

// LoadRoster returns the default roster with per-agent overrides from a
// YAML file applied. An empty path returns the defaults. Entries with
// unknown IDs are appended as new agents.
func LoadRoster(path string) ([]model.AgentSpec, error) {
	roster := DefaultRoster()
	if path == "" {
		return roster, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read roster file", goerr.V("path", path))
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse roster file", goerr.V("path", path))
	}

	byID := make(map[string]int, len(roster))
	for i, spec := range roster {
		byID[spec.ID] = i
	}

	for _, entry := range file.Agents {
		if entry.ID == "" {
			return nil, goerr.New("roster entry has empty id")
		}

		spec := model.AgentSpec{ID: entry.ID}
		if i, ok := byID[entry.ID]; ok {
			spec = roster[i]
		}

		if entry.Name != "" {
			spec.Name = entry.Name
		}
		if entry.Role != "" {
			spec.Role = entry.Role
		}
		if len(entry.Tools) > 0 {
			spec.Tools = entry.Tools
		}
		if entry.MaxRetries > 0 {
			spec.MaxRetries = entry.MaxRetries
		}
		if entry.Timeout != "" {
			d, err := time.ParseDuration(entry.Timeout)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid timeout in roster",
					goerr.V("id", entry.ID), goerr.V("timeout", entry.Timeout))
			}
			spec.Timeout = d
		}

		if i, ok := byID[entry.ID]; ok {
			roster[i] = spec
		} else {
			byID[spec.ID] = len(roster)
			roster = append(roster, spec)
		}
	}

	return roster, nil
}
