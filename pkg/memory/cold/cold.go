package cold

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/hivemind-lab/hivemind/pkg/adapter"
	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Config tunes the cold store
type Config struct {
	Dataset   string
	Table     string
	Dimension int

	// Partitions is the IVF list count of the vector index
	Partitions int

	// SubVectors is reported in stats only; the BigQuery IVF index does not
	// expose a product-quantization sub-vector knob.
	SubVectors int
}

// defaultReadLimit caps GetByAgent when the caller passes no limit
const defaultReadLimit = 100

// RerankSource selects the text the re-ranker scores candidates against
type RerankSource string

const (
	// RerankByQuery scores candidates against the original query text.
	// This is the default.
	RerankByQuery RerankSource = "query"

	// RerankByCandidates derives the scoring text from the retrieved
	// candidates' own content. Scoring candidates against themselves
	// rarely improves ordering; prefer RerankByQuery.
	RerankByCandidates RerankSource = "candidates"
)

// Reranker reorders a candidate set by relevance to a query text
type Reranker interface {
	RankCandidates(ctx context.Context, query string, candidates []string, k int) ([]int, error)
}

// SearchOptions controls two-phase retrieval
type SearchOptions struct {
	AgentFilter string
	Rerank      bool
	Query       string       // query text for the re-ranking pass
	Source      RerankSource // defaults to RerankByQuery
}

// Store is the durable long-term archive tier. Rows live in a BigQuery
// table with an IVF vector index on the embedding column and clustering on
// timestamp for range scans. Entries are permanent once archived.
type Store struct {
	bq       adapter.BigQuery
	cfg      Config
	reranker Reranker

	mu          sync.Mutex // serializes archive batches
	initialized bool
}

// Option configures the store
type Option func(*Store)

// WithReranker attaches a re-ranking model. Without one the store operates
// in non-reranked mode and logs the degradation on rerank requests.
func WithReranker(r Reranker) Option {
	return func(s *Store) {
		s.reranker = r
	}
}

// New creates a cold store. Init must be called before any operation.
func New(bq adapter.BigQuery, cfg Config, opts ...Option) *Store {
	if cfg.Table == "" {
		cfg.Table = "archived_knowledge"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 256
	}

	s := &Store{bq: bq, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tableRef() string {
	return fmt.Sprintf("`%s.%s`", s.cfg.Dataset, s.cfg.Table)
}

// Init opens or creates the archive table. Idempotent: an existing table
// keeps its indices, nothing is rebuilt.
func (s *Store) Init(ctx context.Context) error {
	logger := logging.From(ctx)

	if err := s.bq.EnsureDataset(ctx, s.cfg.Dataset); err != nil {
		return err
	}

	exists, err := s.bq.TableExists(ctx, s.cfg.Dataset, s.cfg.Table)
	if err != nil {
		return err
	}

	if exists {
		logger.Info("cold memory opened", "table", s.cfg.Table)
		s.initialized = true
		return nil
	}

	meta := &bigquery.TableMetadata{
		Schema: bigquery.Schema{
			{Name: "agent_id", Type: bigquery.StringFieldType, Required: true},
			{Name: "content", Type: bigquery.StringFieldType},
			{Name: "timestamp", Type: bigquery.IntegerFieldType, Required: true},
			{Name: "data_type", Type: bigquery.StringFieldType},
			{Name: "metadata", Type: bigquery.StringFieldType},
			{Name: "embedding", Type: bigquery.FloatFieldType, Repeated: true},
		},
		// Ordered access path for timestamp range queries
		Clustering: &bigquery.Clustering{Fields: []string{"timestamp"}},
	}
	if err := s.bq.CreateTable(ctx, s.cfg.Dataset, s.cfg.Table, meta); err != nil {
		return err
	}

	ddl := fmt.Sprintf(
		"CREATE VECTOR INDEX IF NOT EXISTS embedding_idx ON %s(embedding) "+
			"OPTIONS(index_type = 'IVF', distance_type = 'COSINE', ivf_options = '{\"num_lists\": %d}')",
		s.tableRef(), s.cfg.Partitions)
	if _, err := s.bq.Query(ctx, ddl); err != nil {
		return goerr.Wrap(err, "failed to create vector index")
	}

	logger.Info("cold memory initialized",
		"table", s.cfg.Table, "partitions", s.cfg.Partitions, "sub_vectors", s.cfg.SubVectors)
	s.initialized = true
	return nil
}

func (s *Store) ready() error {
	if !s.initialized {
		return goerr.Wrap(model.ErrNotInitialized, "cold store")
	}
	return nil
}

// archiveRow adapts a record to the BigQuery streaming insert API
type archiveRow struct {
	record *model.Record
}

func (r *archiveRow) Save() (map[string]bigquery.Value, string, error) {
	metadata, err := json.Marshal(r.record.Metadata)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to encode metadata")
	}

	embedding := make([]float64, len(r.record.Embedding))
	for i, v := range r.record.Embedding {
		embedding[i] = float64(v)
	}

	return map[string]bigquery.Value{
		"agent_id":  r.record.AgentID,
		"content":   r.record.Content,
		"timestamp": r.record.Timestamp.UnixMilli(),
		"data_type": string(r.record.DataType),
		"metadata":  string(metadata),
		"embedding": embedding,
	}, r.record.Key(), nil
}

// Archive appends a batch of records. An empty batch is a no-op, not an
// error. Batches are serialized against each other. Returns rows written.
func (s *Store) Archive(ctx context.Context, entries []*model.Record) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([]bigquery.ValueSaver, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(s.cfg.Dimension); err != nil {
			return 0, err
		}
		rows = append(rows, &archiveRow{record: e})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bq.Insert(ctx, s.cfg.Dataset, s.cfg.Table, rows); err != nil {
		return 0, err
	}

	logging.From(ctx).Info("archived entries to cold memory", "count", len(entries))
	return len(entries), nil
}

// Search performs two-phase retrieval: approximate vector search for 2k
// candidates (k when rerank is off), then an optional precision pass that
// reorders them by relevance and returns the top k.
func (s *Store) Search(ctx context.Context, query []float32, k int, opts SearchOptions) ([]*model.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(query) != s.cfg.Dimension {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "query vector",
			goerr.V("got", len(query)), goerr.V("want", s.cfg.Dimension))
	}
	if k <= 0 {
		return nil, nil
	}

	fetch := k
	if opts.Rerank {
		fetch = k * 2
	}

	base := fmt.Sprintf("TABLE %s", s.tableRef())
	var params []bigquery.QueryParameter
	if opts.AgentFilter != "" {
		base = fmt.Sprintf("(SELECT * FROM %s WHERE agent_id = @agent)", s.tableRef())
		params = append(params, bigquery.QueryParameter{Name: "agent", Value: opts.AgentFilter})
	}

	embedding := make([]float64, len(query))
	for i, v := range query {
		embedding[i] = float64(v)
	}
	params = append(params, bigquery.QueryParameter{Name: "query_vec", Value: embedding})

	sql := fmt.Sprintf(
		"SELECT base.agent_id AS agent_id, base.content AS content, base.timestamp AS timestamp, "+
			"base.data_type AS data_type, base.metadata AS metadata, distance "+
			"FROM VECTOR_SEARCH(%s, 'embedding', (SELECT @query_vec AS embedding), "+
			"top_k => %d, distance_type => 'COSINE') ORDER BY distance",
		base, fetch)

	rows, err := s.bq.Query(ctx, sql, params...)
	if err != nil {
		return nil, goerr.Wrap(err, "cold memory search failed")
	}

	records := decodeRows(rows)
	if !opts.Rerank || len(records) == 0 {
		return truncate(records, k), nil
	}
	return s.rerank(ctx, records, k, opts), nil
}

// rerank runs the precision pass. Any failure degrades to the unreranked
// candidate order; degradation is logged, never fatal.
func (s *Store) rerank(ctx context.Context, candidates []*model.Record, k int, opts SearchOptions) []*model.Record {
	logger := logging.From(ctx)

	if s.reranker == nil {
		logger.Warn("re-ranker unavailable, returning approximate order",
			"error", model.ErrIndexDegraded.Error())
		return truncate(candidates, k)
	}

	queryText := opts.Query
	if opts.Source == RerankByCandidates {
		// Score against the leading candidates' own text
		texts := make([]string, 0, 5)
		for i := 0; i < len(candidates) && i < 5; i++ {
			texts = append(texts, candidates[i].Content)
		}
		queryText = strings.Join(texts, " ")
	}

	contents := make([]string, len(candidates))
	for i, r := range candidates {
		contents[i] = r.Content
	}

	indices, err := s.reranker.RankCandidates(ctx, queryText, contents, k)
	if err != nil || len(indices) == 0 {
		logger.Warn("re-ranking failed, returning approximate order", "error", err)
		return truncate(candidates, k)
	}

	reranked := make([]*model.Record, 0, k)
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		reranked = append(reranked, candidates[idx])
	}
	if len(reranked) == 0 {
		return truncate(candidates, k)
	}
	// The re-ranker may hand back more indices than asked for
	return truncate(reranked, k)
}

// GetByAgent returns up to limit archived records for one agent
func (s *Store) GetByAgent(ctx context.Context, agentID string, limit int) ([]*model.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultReadLimit
	}
	sql := fmt.Sprintf(
		"SELECT agent_id, content, timestamp, data_type, metadata, embedding FROM %s "+
			"WHERE agent_id = @agent LIMIT %d", s.tableRef(), limit)

	rows, err := s.bq.Query(ctx, sql, bigquery.QueryParameter{Name: "agent", Value: agentID})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read archived entries", goerr.V("agent", agentID))
	}

	return decodeRows(rows), nil
}

// Stats describes the archive state
type Stats struct {
	TotalRows  int64          `json:"total_rows"`
	Indices    []string       `json:"indices"`
	IndexStats map[string]any `json:"index_stats"`
}

// GetStats returns row count, index list and per-index statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) AS total FROM %s", s.tableRef())
	rows, err := s.bq.Query(ctx, countSQL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count archived rows")
	}

	stats := &Stats{IndexStats: map[string]any{
		"partitions":  s.cfg.Partitions,
		"sub_vectors": s.cfg.SubVectors,
	}}
	if len(rows) > 0 {
		if total, ok := rows[0]["total"].(int64); ok {
			stats.TotalRows = total
		}
	}

	idxSQL := fmt.Sprintf(
		"SELECT index_name, coverage_percentage FROM `%s.INFORMATION_SCHEMA.VECTOR_INDEXES` WHERE table_name = @table",
		s.cfg.Dataset)
	idxRows, err := s.bq.Query(ctx, idxSQL, bigquery.QueryParameter{Name: "table", Value: s.cfg.Table})
	if err != nil {
		// Index metadata is best-effort; the count is still useful
		logging.From(ctx).Warn("failed to list vector indices", "error", err)
		return stats, nil
	}

	for _, row := range idxRows {
		if name, ok := row["index_name"].(string); ok {
			stats.Indices = append(stats.Indices, name)
			stats.IndexStats[name] = row["coverage_percentage"]
		}
	}
	return stats, nil
}

// OptimizeIndices triggers index warm-up. Safe on an empty or freshly
// created table, where it is a no-op.
func (s *Store) OptimizeIndices(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		return err
	}
	if stats.TotalRows == 0 {
		logging.From(ctx).Debug("cold memory empty, nothing to optimize")
		return nil
	}

	// A trivial vector probe keeps the index warm after large batch loads
	probe := make([]float32, s.cfg.Dimension)
	if _, err := s.Search(ctx, probe, 1, SearchOptions{}); err != nil {
		return goerr.Wrap(err, "index warm-up probe failed")
	}

	logging.From(ctx).Info("cold memory indices optimized", "rows", stats.TotalRows)
	return nil
}

func decodeRows(rows []map[string]bigquery.Value) []*model.Record {
	records := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		r := &model.Record{Metadata: map[string]any{}}
		if v, ok := row["agent_id"].(string); ok {
			r.AgentID = v
		}
		if v, ok := row["content"].(string); ok {
			r.Content = v
		}
		if v, ok := row["timestamp"].(int64); ok {
			r.Timestamp = time.UnixMilli(v)
		}
		if v, ok := row["data_type"].(string); ok {
			r.DataType = model.DataType(v)
		}
		if v, ok := row["metadata"].(string); ok && v != "" {
			// Tolerate malformed metadata rather than dropping the row
			_ = json.Unmarshal([]byte(v), &r.Metadata)
		}
		if vs, ok := row["embedding"].([]bigquery.Value); ok {
			r.Embedding = make([]float32, 0, len(vs))
			for _, v := range vs {
				if f, ok := v.(float64); ok {
					r.Embedding = append(r.Embedding, float32(f))
				}
			}
		}
		records = append(records, r)
	}
	return records
}

func truncate(records []*model.Record, k int) []*model.Record {
	if len(records) > k {
		return records[:k]
	}
	return records
}
