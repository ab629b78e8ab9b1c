package hot

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Config tunes the hot store
type Config struct {
	// Dimension is the required embedding length of every record
	Dimension int

	// Capacity is the pruning target used by the gardener. The store itself
	// does not enforce it on write; Prune does.
	Capacity int

	// TTL drops entries older than this during Prune. Zero disables it.
	TTL time.Duration
}

// Store is the bounded, low-latency recent-memory tier. Every agent writes
// to it after every completed tool call. Vector search runs on an embedded
// chromem-go collection; recency reads and pruning run on an internal
// key-ordered table. The two are kept consistent under one write lock.
type Store struct {
	cfg Config

	mu    sync.RWMutex
	table map[string]*model.Record

	db  *chromem.DB
	col *chromem.Collection
}

const collectionName = "hive_hot_memory"

// New creates a hot store. Init must be called before any operation.
func New(cfg Config) *Store {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	return &Store{cfg: cfg}
}

// Init builds the in-memory vector index. Safe to call once.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.col != nil {
		return nil
	}

	db := chromem.NewDB()
	// Embeddings are always supplied by the caller, so no embedding func
	// and the default cosine distance are used.
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create hot memory collection")
	}

	s.db = db
	s.col = col
	s.table = make(map[string]*model.Record)

	logging.From(ctx).Info("hot memory initialized",
		"dimension", s.cfg.Dimension, "capacity", s.cfg.Capacity)
	return nil
}

func (s *Store) ready() error {
	if s.col == nil {
		return goerr.Wrap(model.ErrNotInitialized, "hot store")
	}
	return nil
}

// Write stores a record under the key {agent_id}:{data_type}:{timestamp_ms}.
// Writers are serialized through a single lock; a timestamp collision within
// one millisecond is bumped forward to keep keys unique.
func (s *Store) Write(ctx context.Context, record *model.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return "", err
	}
	if err := record.Validate(s.cfg.Dimension); err != nil {
		return "", err
	}

	key := record.Key()
	for {
		if _, exists := s.table[key]; !exists {
			break
		}
		record.Timestamp = record.Timestamp.Add(time.Millisecond)
		key = record.Key()
	}

	doc := chromem.Document{
		ID:        key,
		Content:   record.Content,
		Embedding: record.Embedding,
		Metadata: map[string]string{
			"agent_id":  record.AgentID,
			"data_type": string(record.DataType),
			"timestamp": strconv.FormatInt(record.Timestamp.UnixMilli(), 10),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return "", goerr.Wrap(err, "failed to index record", goerr.V("key", key))
	}

	s.table[key] = record
	logging.From(ctx).Debug("wrote to hot memory", "key", key)
	return key, nil
}

// Read returns up to limit most recent records for the agent, optionally
// filtered by data type. Order is newest first.
func (s *Store) Read(ctx context.Context, agentID string, limit int, dataType model.DataType) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	return s.collect(limit, func(r *model.Record) bool {
		if r.AgentID != agentID {
			return false
		}
		return dataType == "" || r.DataType == dataType
	}), nil
}

// GetByPrefix returns records whose agent_id starts with prefix, newest
// first. Supports cross-agent namespace queries.
func (s *Store) GetByPrefix(ctx context.Context, prefix string, limit int) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	return s.collect(limit, func(r *model.Record) bool {
		return strings.HasPrefix(r.AgentID, prefix)
	}), nil
}

// collect must be called with at least the read lock held
func (s *Store) collect(limit int, match func(*model.Record) bool) []*model.Record {
	records := make([]*model.Record, 0, limit)
	for _, r := range s.table {
		if match(r) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// SemanticSearch returns the k nearest records by cosine similarity,
// restricted to agentFilter if non-empty.
func (s *Store) SemanticSearch(ctx context.Context, query []float32, k int, agentFilter string) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(query) != s.cfg.Dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query vector",
			goerr.V("got", len(query)), goerr.V("want", s.cfg.Dimension))
	}

	// chromem rejects nResults larger than the collection
	n := k
	if count := s.col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if agentFilter != "" {
		where = map[string]string{"agent_id": agentFilter}
	}

	results, err := s.col.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "semantic search failed")
	}

	records := make([]*model.Record, 0, len(results))
	for _, res := range results {
		// Entries pruned between index query and table lookup are skipped
		if r, ok := s.table[res.ID]; ok {
			records = append(records, r)
		}
	}
	return records, nil
}

// Prune enforces a hard cap: the maxSize most recent records are retained,
// all others are removed from both the table and the vector index. Entries
// past their TTL are dropped regardless of the cap. The scan is O(total
// keys), acceptable because the store is bounded to a small working set.
// Returns the number of removed records.
func (s *Store) Prune(ctx context.Context, maxSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}
	if maxSize < 0 {
		maxSize = 0
	}

	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.table[keys[i]].Timestamp.After(s.table[keys[j]].Timestamp)
	})

	var expire time.Time
	if s.cfg.TTL > 0 {
		expire = time.Now().Add(-s.cfg.TTL)
	}

	var doomed []string
	for i, k := range keys {
		if i >= maxSize || (!expire.IsZero() && s.table[k].Timestamp.Before(expire)) {
			doomed = append(doomed, k)
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	if err := s.col.Delete(ctx, nil, nil, doomed...); err != nil {
		return 0, goerr.Wrap(err, "failed to delete from index")
	}
	for _, k := range doomed {
		delete(s.table, k)
	}

	logging.From(ctx).Info("pruned hot memory", "removed", len(doomed), "kept", len(s.table))
	return len(doomed), nil
}

// Stats describes the current index state
type Stats struct {
	TotalRecords int    `json:"total_records"`
	Indexed      int    `json:"indexed_vectors"`
	Dimension    int    `json:"dimension"`
	Capacity     int    `json:"capacity"`
	IndexKind    string `json:"index_kind"`
}

// GetStats returns record count and index introspection data
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	return &Stats{
		TotalRecords: len(s.table),
		Indexed:      s.col.Count(),
		Dimension:    s.cfg.Dimension,
		Capacity:     s.cfg.Capacity,
		IndexKind:    "chromem/cosine",
	}, nil
}

// Capacity returns the configured pruning target
func (s *Store) Capacity() int {
	return s.cfg.Capacity
}
