package cli

import (
	"context"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hivemind-lab/hivemind/pkg/adapter"
	"github.com/hivemind-lab/hivemind/pkg/agent"
	"github.com/hivemind-lab/hivemind/pkg/memory/cold"
	"github.com/hivemind-lab/hivemind/pkg/memory/gardener"
	"github.com/hivemind-lab/hivemind/pkg/memory/hot"
	"github.com/hivemind-lab/hivemind/pkg/oracle"
	"github.com/hivemind-lab/hivemind/pkg/policy"
	"github.com/hivemind-lab/hivemind/pkg/usecase/mission"
	"github.com/hivemind-lab/hivemind/pkg/utils/async"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/hivemind-lab/hivemind/pkg/utils/metrics"
)

// config holds configuration values
type config struct {
	logLevel string

	// Adapters
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	// Memory
	embeddingDim   int64
	hotCapacity    int64
	hotTTL         time.Duration
	coldDataset    string
	coldPartitions int64
	coldSubVectors int64
	gardenInterval time.Duration

	// Mission
	maxAgents   int64
	queueSize   int64
	rosterPath  string
	policyDir   string
	githubToken string
	mcpCommand  []string
	mcpTool     string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("HIVEMIND_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("HIVEMIND_GEMINI_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("HIVEMIND_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Model used for planning and synthesis",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("HIVEMIND_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Model used for embeddings",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("HIVEMIND_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dim",
			Usage:       "Embedding vector dimension",
			Value:       768,
			Sources:     cli.EnvVars("HIVEMIND_EMBEDDING_DIM"),
			Destination: &cfg.embeddingDim,
		},
	}
}

// memoryFlags returns flags tuning the two memory tiers and the gardener
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "hot-capacity",
			Usage:       "Hot memory record cap enforced by pruning",
			Value:       1000,
			Sources:     cli.EnvVars("HIVEMIND_HOT_CAPACITY"),
			Destination: &cfg.hotCapacity,
		},
		&cli.DurationFlag{
			Name:        "hot-ttl",
			Usage:       "Hot memory entry TTL (0 disables)",
			Sources:     cli.EnvVars("HIVEMIND_HOT_TTL"),
			Destination: &cfg.hotTTL,
		},
		&cli.StringFlag{
			Name:        "cold-dataset",
			Usage:       "BigQuery dataset of the cold memory tier",
			Value:       "hivemind",
			Sources:     cli.EnvVars("HIVEMIND_COLD_DATASET"),
			Destination: &cfg.coldDataset,
		},
		&cli.IntFlag{
			Name:        "cold-partitions",
			Usage:       "Vector index partition count",
			Value:       256,
			Sources:     cli.EnvVars("HIVEMIND_COLD_PARTITIONS"),
			Destination: &cfg.coldPartitions,
		},
		&cli.IntFlag{
			Name:        "cold-sub-vectors",
			Usage:       "Vector index sub-vector count (reported in stats)",
			Value:       96,
			Sources:     cli.EnvVars("HIVEMIND_COLD_SUB_VECTORS"),
			Destination: &cfg.coldSubVectors,
		},
		&cli.DurationFlag{
			Name:        "gardener-interval",
			Usage:       "Interval between memory maintenance cycles",
			Value:       600 * time.Second,
			Sources:     cli.EnvVars("HIVEMIND_GARDENER_INTERVAL"),
			Destination: &cfg.gardenInterval,
		},
	}
}

// missionFlags returns flags for dispatch and the agent roster
func missionFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-agents",
			Usage:       "Maximum agents recruitable per mission",
			Value:       5,
			Sources:     cli.EnvVars("HIVEMIND_MAX_AGENTS"),
			Destination: &cfg.maxAgents,
		},
		&cli.IntFlag{
			Name:        "queue-size",
			Usage:       "Bounded async memory write queue size",
			Value:       256,
			Sources:     cli.EnvVars("HIVEMIND_QUEUE_SIZE"),
			Destination: &cfg.queueSize,
		},
		&cli.StringFlag{
			Name:        "roster",
			Usage:       "Path to a YAML agent roster override",
			Sources:     cli.EnvVars("HIVEMIND_ROSTER"),
			Destination: &cfg.rosterPath,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego planning policies",
			Sources:     cli.EnvVars("HIVEMIND_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub API token for the code_hunter agent",
			Sources:     cli.EnvVars("HIVEMIND_GITHUB_TOKEN", "GITHUB_TOKEN"),
			Destination: &cfg.githubToken,
		},
		&cli.StringSliceFlag{
			Name:        "mcp-command",
			Usage:       "Command of the MCP server backing context_analyst",
			Sources:     cli.EnvVars("HIVEMIND_MCP_COMMAND"),
			Destination: &cfg.mcpCommand,
		},
		&cli.StringFlag{
			Name:        "mcp-tool",
			Usage:       "MCP tool name to bind (default: first advertised)",
			Sources:     cli.EnvVars("HIVEMIND_MCP_TOOL"),
			Destination: &cfg.mcpTool,
		},
	}
}

func (cfg *config) setupLogger(w io.Writer) {
	logging.SetDefault(logging.New(cfg.logLevel, w))
}

// newGemini creates the Gemini adapter
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithEmbeddingDim(int(cfg.embeddingDim)),
	)
}

// hive bundles every running component of one deployment
type hive struct {
	gemini      adapter.Gemini
	oracle      oracle.Oracle
	hot         *hot.Store
	cold        *cold.Store
	queue       *async.Queue
	recorder    *agent.Recorder
	registry    *agent.Registry
	coordinator *mission.Coordinator
	gardener    *gardener.Gardener
	tracker     *metrics.Tracker

	closers []func()
}

// build wires the hive together. withCold controls whether the BigQuery
// tier is connected; commands that never archive can skip it.
func (cfg *config) build(ctx context.Context, withCold bool) (*hive, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	h := &hive{
		gemini:  gemini,
		oracle:  oracle.NewGemini(gemini),
		tracker: metrics.New(),
	}

	h.hot = hot.New(hot.Config{
		Dimension: int(cfg.embeddingDim),
		Capacity:  int(cfg.hotCapacity),
		TTL:       cfg.hotTTL,
	})
	if err := h.hot.Init(ctx); err != nil {
		return nil, err
	}

	var archiver gardener.Option
	if withCold {
		bq, err := adapter.NewBigQuery(ctx, cfg.geminiProject)
		if err != nil {
			return nil, err
		}
		h.cold = cold.New(bq, cold.Config{
			Dataset:    cfg.coldDataset,
			Dimension:  int(cfg.embeddingDim),
			Partitions: int(cfg.coldPartitions),
			SubVectors: int(cfg.coldSubVectors),
		}, cold.WithReranker(h.oracle))
		if err := h.cold.Init(ctx); err != nil {
			return nil, err
		}
		archiver = gardener.WithArchiver(gardener.ArchiveAgentResults(h.hot, h.cold))
	}

	h.queue = async.NewQueue(ctx, int(cfg.queueSize))
	h.closers = append(h.closers, h.queue.Close)
	h.recorder = agent.NewRecorder(h.hot, gemini, h.queue)

	if h.registry, err = cfg.buildRegistry(ctx, h.recorder); err != nil {
		return nil, err
	}

	planner, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, err
	}

	h.coordinator = mission.New(h.registry, h.oracle, h.recorder,
		mission.WithPlanner(planner),
		mission.WithTracker(h.tracker),
		mission.WithMaxAgents(int(cfg.maxAgents)),
	)

	gardenOpts := []gardener.Option{}
	if archiver != nil {
		gardenOpts = append(gardenOpts, archiver)
	}
	h.gardener = gardener.New(h.hot, cfg.gardenInterval, gardenOpts...)

	return h, nil
}

// buildRegistry loads the roster and instantiates every agent on it
func (cfg *config) buildRegistry(ctx context.Context, recorder *agent.Recorder) (*agent.Registry, error) {
	roster, err := agent.LoadRoster(cfg.rosterPath)
	if err != nil {
		return nil, err
	}

	registry := agent.NewRegistry()
	logger := logging.From(ctx)

	for _, spec := range roster {
		var a agent.Agent
		switch spec.ID {
		case "web_scout":
			a = agent.NewWebScout(spec, recorder)
		case "code_hunter":
			a = agent.NewCodeHunter(spec, recorder, cfg.githubToken)
		case "scholar":
			a = agent.NewScholar(spec, recorder)
		case "fact_checker":
			a = agent.NewFactChecker(spec, recorder)
		case "the_fixer":
			a = agent.NewTheFixer(spec, recorder)
		case "social_sentiment":
			a = agent.NewSocialSentiment(spec, recorder)
		case "context_analyst":
			if len(cfg.mcpCommand) == 0 {
				logger.Debug("context_analyst disabled, no MCP command configured")
				continue
			}
			analyst, err := agent.NewContextAnalyst(ctx, spec, recorder, cfg.mcpCommand, cfg.mcpTool)
			if err != nil {
				logger.Warn("context_analyst unavailable", "error", err)
				continue
			}
			a = analyst
		default:
			logger.Warn("no implementation for roster agent, skipped", "id", spec.ID)
			continue
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// close tears the hive down, draining pending memory writes
func (h *hive) close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
	for _, id := range h.registry.IDs() {
		if a, ok := h.registry.Get(id); ok {
			if closer, ok := a.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}
}
