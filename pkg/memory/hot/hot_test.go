package hot_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hivemind-lab/hivemind/pkg/memory/hot"
	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/m-mizutani/gt"
)

const dim = 8

// unitVec returns a deterministic vector pointing mostly at one axis
func unitVec(axis int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.01
	}
	v[axis%dim] = 1.0
	return v
}

func newStore(t *testing.T) *hot.Store {
	t.Helper()
	s := hot.New(hot.Config{Dimension: dim, Capacity: 100})
	gt.NoError(t, s.Init(context.Background()))
	return s
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	s := hot.New(hot.Config{Dimension: dim})

	_, err := s.Write(ctx, model.NewRecord("a", "x", unitVec(0), model.DataTypeThought, nil))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotInitialized))

	_, err = s.Read(ctx, "a", 10, "")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotInitialized))

	_, err = s.Prune(ctx, 10)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotInitialized))
}

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := 0; i < 5; i++ {
		r := model.NewRecord("web_scout", fmt.Sprintf("obs %d", i), unitVec(i), model.DataTypeToolResult, nil)
		r.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
		_, err := s.Write(ctx, r)
		gt.NoError(t, err)
	}
	r := model.NewRecord("web_scout", "final", unitVec(5), model.DataTypeAgentResult, nil)
	r.Timestamp = time.Now().Add(time.Hour)
	_, err := s.Write(ctx, r)
	gt.NoError(t, err)

	// Recency order, newest first
	records, err := s.Read(ctx, "web_scout", 3, "")
	gt.NoError(t, err)
	gt.A(t, records).Length(3)
	gt.Equal(t, records[0].Content, "final")

	// Data type filter
	results, err := s.Read(ctx, "web_scout", 10, model.DataTypeAgentResult)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Content, "final")

	// Unknown agent is empty, not an error
	empty, err := s.Read(ctx, "nobody", 10, "")
	gt.NoError(t, err)
	gt.A(t, empty).Length(0)
}

func TestDimensionMismatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Write(ctx, model.NewRecord("a", "ok", unitVec(0), model.DataTypeThought, nil))
	gt.NoError(t, err)

	bad := model.NewRecord("a", "bad", make([]float32, dim+3), model.DataTypeThought, nil)
	_, err = s.Write(ctx, bad)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDimensionMismatch))

	stats, err := s.GetStats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalRecords, 1)
	gt.Equal(t, stats.Indexed, 1)
}

func TestKeyCollisionBumps(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ts := time.Now()
	a := model.NewRecord("agent", "first", unitVec(0), model.DataTypeThought, nil)
	a.Timestamp = ts
	b := model.NewRecord("agent", "second", unitVec(1), model.DataTypeThought, nil)
	b.Timestamp = ts

	keyA, err := s.Write(ctx, a)
	gt.NoError(t, err)
	keyB, err := s.Write(ctx, b)
	gt.NoError(t, err)
	gt.NotEqual(t, keyA, keyB)

	records, err := s.Read(ctx, "agent", 10, "")
	gt.NoError(t, err)
	gt.A(t, records).Length(2)
}

func TestSemanticSearch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := 0; i < 4; i++ {
		agent := fmt.Sprintf("agent_%d", i)
		r := model.NewRecord(agent, fmt.Sprintf("topic %d", i), unitVec(i), model.DataTypeToolResult, nil)
		_, err := s.Write(ctx, r)
		gt.NoError(t, err)
	}

	// Nearest to axis 2 is agent_2's record
	found, err := s.SemanticSearch(ctx, unitVec(2), 1, "")
	gt.NoError(t, err)
	gt.A(t, found).Length(1)
	gt.Equal(t, found[0].AgentID, "agent_2")

	// Agent filter restricts the candidate set
	filtered, err := s.SemanticSearch(ctx, unitVec(2), 2, "agent_0")
	gt.NoError(t, err)
	gt.A(t, filtered).Length(1)
	gt.Equal(t, filtered[0].AgentID, "agent_0")

	// k larger than the store is clamped, not an error
	all, err := s.SemanticSearch(ctx, unitVec(0), 100, "")
	gt.NoError(t, err)
	gt.A(t, all).Length(4)

	// Wrong query dimension is a hard error
	_, err = s.SemanticSearch(ctx, make([]float32, dim-1), 1, "")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDimensionMismatch))
}

func TestPruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	base := time.Now()
	for i := 0; i < 10; i++ {
		r := model.NewRecord("agent", fmt.Sprintf("obs %d", i), unitVec(i), model.DataTypeThought, nil)
		r.Timestamp = base.Add(time.Duration(i) * time.Second)
		_, err := s.Write(ctx, r)
		gt.NoError(t, err)
	}

	removed, err := s.Prune(ctx, 3)
	gt.NoError(t, err)
	gt.Equal(t, removed, 7)

	stats, err := s.GetStats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalRecords, 3)
	gt.Equal(t, stats.Indexed, 3)

	// Exactly the 3 most recent survive
	records, err := s.Read(ctx, "agent", 10, "")
	gt.NoError(t, err)
	gt.A(t, records).Length(3)
	gt.Equal(t, records[0].Content, "obs 9")
	gt.Equal(t, records[2].Content, "obs 7")

	// Prune to zero empties the store
	removed, err = s.Prune(ctx, 0)
	gt.NoError(t, err)
	gt.Equal(t, removed, 3)

	// Pruning an empty store is a no-op
	removed, err = s.Prune(ctx, 5)
	gt.NoError(t, err)
	gt.Equal(t, removed, 0)
}

func TestPruneTTL(t *testing.T) {
	ctx := context.Background()
	s := hot.New(hot.Config{Dimension: dim, Capacity: 100, TTL: time.Minute})
	gt.NoError(t, s.Init(ctx))

	old := model.NewRecord("agent", "stale", unitVec(0), model.DataTypeThought, nil)
	old.Timestamp = time.Now().Add(-time.Hour)
	_, err := s.Write(ctx, old)
	gt.NoError(t, err)

	fresh := model.NewRecord("agent", "fresh", unitVec(1), model.DataTypeThought, nil)
	_, err = s.Write(ctx, fresh)
	gt.NoError(t, err)

	removed, err := s.Prune(ctx, 100)
	gt.NoError(t, err)
	gt.Equal(t, removed, 1)

	records, err := s.Read(ctx, "agent", 10, "")
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].Content, "fresh")
}

func TestGetByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, id := range []string{"res_01_web", "res_02_code", "aux_99"} {
		_, err := s.Write(ctx, model.NewRecord(id, "x", unitVec(1), model.DataTypeThought, nil))
		gt.NoError(t, err)
	}

	records, err := s.GetByPrefix(ctx, "res_", 10)
	gt.NoError(t, err)
	gt.A(t, records).Length(2)

	records, err = s.GetByPrefix(ctx, "aux_", 10)
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
}

func TestConcurrentWriteAndPrune(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				r := model.NewRecord(fmt.Sprintf("agent_%d", w), "obs", unitVec(i), model.DataTypeToolResult, nil)
				if _, err := s.Write(ctx, r); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			if _, err := s.Prune(ctx, 20); err != nil {
				t.Error(err)
			}
		}
	}()
	wg.Wait()

	// No dangling index entries after the dust settles
	_, err := s.Prune(ctx, 20)
	gt.NoError(t, err)
	stats, err := s.GetStats(ctx)
	gt.NoError(t, err)
	gt.Number(t, stats.TotalRecords).LessOrEqual(20)
	gt.Equal(t, stats.TotalRecords, stats.Indexed)
}
