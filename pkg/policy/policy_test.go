package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/hivemind-lab/hivemind/pkg/policy"
)

const denyPolicy = `package planning

deny contains msg if {
	input.agent == "social_sentiment"
	msg := "social agents are disabled"
}

deny contains msg if {
	contains(input.query, "secret")
	msg := "sensitive query"
}
`

func TestFilterNoPolicy(t *testing.T) {
	p, err := policy.Load(context.Background(), "")
	gt.NoError(t, err)

	allowed, err := p.Filter(context.Background(), "anything", []string{"web_scout", "scholar"})
	gt.NoError(t, err)
	gt.Equal(t, allowed, []string{"web_scout", "scholar"})
}

func TestFilterEmptyDir(t *testing.T) {
	p, err := policy.Load(context.Background(), t.TempDir())
	gt.NoError(t, err)

	allowed, err := p.Filter(context.Background(), "anything", []string{"web_scout"})
	gt.NoError(t, err)
	gt.Equal(t, allowed, []string{"web_scout"})
}

func TestFilterDeniesAgent(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "planning.rego"), []byte(denyPolicy), 0644))

	p, err := policy.Load(context.Background(), dir)
	gt.NoError(t, err)

	allowed, err := p.Filter(context.Background(), "how do hives work",
		[]string{"web_scout", "social_sentiment", "scholar"})
	gt.NoError(t, err)
	gt.Equal(t, allowed, []string{"web_scout", "scholar"})
}

func TestFilterDeniesByQuery(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "planning.rego"), []byte(denyPolicy), 0644))

	p, err := policy.Load(context.Background(), dir)
	gt.NoError(t, err)

	allowed, err := p.Filter(context.Background(), "find the secret plans",
		[]string{"web_scout", "scholar"})
	gt.NoError(t, err)
	gt.A(t, allowed).Length(0)
}

func TestLoadBadPolicy(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("not rego at all {"), 0644))

	_, err := policy.Load(context.Background(), dir)
	gt.Error(t, err)
}
