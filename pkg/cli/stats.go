package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

func statsCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, missionFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Print memory tier statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger(os.Stderr)
			ctx = logging.With(ctx, logging.Default())

			h, err := cfg.build(ctx, true)
			if err != nil {
				return err
			}
			defer h.close()

			hotStats, err := h.hot.GetStats(ctx)
			if err != nil {
				return err
			}
			coldStats, err := h.cold.GetStats(ctx)
			if err != nil {
				return err
			}

			out := map[string]any{
				"hot_memory":  hotStats,
				"cold_memory": coldStats,
				"agents":      h.registry.IDs(),
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
