package gardener

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hivemind-lab/hivemind/pkg/memory/cold"
	"github.com/hivemind-lab/hivemind/pkg/memory/hot"
	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

// Pruner is what the gardener needs from the recent-memory tier
type Pruner interface {
	Prune(ctx context.Context, maxSize int) (int, error)
	Capacity() int
}

// Archiver moves data out of the hot tier before pruning can drop it.
// Returns the number of entries moved.
type Archiver func(ctx context.Context) (int, error)

// Gardener runs background maintenance on memory: a periodic cycle that
// archives what must survive, then prunes the hot tier back to capacity.
// One cycle failing or panicking never kills the loop.
type Gardener struct {
	hot      Pruner
	interval time.Duration
	archiver Archiver

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures the gardener
type Option func(*Gardener)

// WithArchiver inserts an archival step before each prune
func WithArchiver(fn Archiver) Option {
	return func(g *Gardener) {
		g.archiver = fn
	}
}

// New creates a gardener over the hot tier. Interval defaults to 10 minutes.
func New(pruner Pruner, interval time.Duration, opts ...Option) *Gardener {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	g := &Gardener{hot: pruner, interval: interval}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the maintenance loop. Returns an error if already running.
func (g *Gardener) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done != nil {
		return goerr.New("gardener already started")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done

	go g.run(loopCtx, done)
	logging.From(ctx).Info("gardener started", "interval", g.interval)
	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish.
// Idempotent.
func (g *Gardener) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run never touches g's fields that Stop mutates; the done channel is
// handed over at Start so a prompt Stop cannot race the goroutine.
func (g *Gardener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.cycle(ctx)
		}
	}
}

// cycle archives then prunes. Errors are logged and the loop carries on.
func (g *Gardener) cycle(ctx context.Context) {
	logger := logging.From(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("gardener cycle panicked", "recover", r)
		}
	}()

	if g.archiver != nil {
		archived, err := g.archiver(ctx)
		if err != nil {
			logger.Warn("archival step failed", "error", err)
		} else if archived > 0 {
			logger.Info("archived hot entries", "count", archived)
		}
	}

	pruned, err := g.hot.Prune(ctx, g.hot.Capacity())
	if err != nil {
		logger.Warn("prune failed", "error", err)
		return
	}
	if pruned > 0 {
		logger.Info("pruned hot memory", "count", pruned)
	}
}

// ArchiveAgentResults builds an archiver that copies agent results from the
// hot tier into the cold tier. A high-water mark keeps each record from
// being archived twice across cycles.
func ArchiveAgentResults(hotStore *hot.Store, coldStore *cold.Store) Archiver {
	var mu sync.Mutex
	var mark time.Time

	return func(ctx context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()

		records, err := hotStore.GetByPrefix(ctx, "", 0)
		if err != nil {
			return 0, err
		}

		var batch []*model.Record
		for _, r := range records {
			if r.DataType != model.DataTypeAgentResult {
				continue
			}
			if !r.Timestamp.After(mark) {
				continue
			}
			batch = append(batch, r)
		}
		if len(batch) == 0 {
			return 0, nil
		}

		count, err := coldStore.Archive(ctx, batch)
		if err != nil {
			return 0, err
		}

		// Records arrive newest first
		mark = batch[0].Timestamp
		return count, nil
	}
}
