package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	gt.A(t, roster).Length(7)

	ids := make(map[string]bool)
	for _, spec := range roster {
		ids[spec.ID] = true
		gt.NotEqual(t, spec.Name, "")
		gt.Number(t, spec.MaxRetries).GreaterOrEqual(1)
	}
	gt.True(t, ids[DefaultAgentID])
	gt.True(t, ids["context_analyst"])
}

func TestLoadRosterNoFile(t *testing.T) {
	roster, err := LoadRoster("")
	gt.NoError(t, err)
	gt.Equal(t, roster, DefaultRoster())
}

func TestLoadRosterOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yml")
	gt.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: web_scout
    max_retries: 5
    timeout: 10s
  - id: deep_diver
    name: Deep Diver
    role: specialist lookups
    timeout: 2m
`), 0600))

	roster, err := LoadRoster(path)
	gt.NoError(t, err)
	gt.A(t, roster).Length(8)

	byID := make(map[string]int)
	for i, spec := range roster {
		byID[spec.ID] = i
	}

	scout := roster[byID["web_scout"]]
	gt.Equal(t, scout.MaxRetries, 5)
	gt.Equal(t, scout.Timeout, 10*time.Second)
	// Untouched fields keep their defaults
	gt.Equal(t, scout.Name, "Web Scout")

	diver := roster[byID["deep_diver"]]
	gt.Equal(t, diver.Name, "Deep Diver")
	gt.Equal(t, diver.Timeout, 2*time.Minute)
}

func TestLoadRosterBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yml")
	gt.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: web_scout
    timeout: soon
`), 0600))

	_, err := LoadRoster(path)
	gt.Error(t, err)
}

func TestLoadRosterMissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "nope.yml"))
	gt.Error(t, err)
}
