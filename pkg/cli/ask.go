package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

func askCommand() *cli.Command {
	var (
		cfg    config
		agents []string
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "agent",
			Aliases:     []string{"a"},
			Usage:       "Recruit these agents explicitly instead of planning",
			Destination: &agents,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, missionFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Run one mission and print the answer",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("query is required")
			}

			cfg.setupLogger(os.Stderr)
			ctx = logging.With(ctx, logging.Default())

			h, err := cfg.build(ctx, false)
			if err != nil {
				return err
			}
			defer h.close()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr))
			sp.Suffix = " the hive is thinking..."
			sp.Start()

			m, err := h.coordinator.Dispatch(ctx, query, agents)
			sp.Stop()
			if err != nil {
				return err
			}

			printMission(c, m)
			return nil
		},
	}
}

func printMission(c *cli.Command, m *model.Mission) {
	w := c.Root().Writer
	fmt.Fprintf(w, "%s\n", m.Answer)
	fmt.Fprintf(w, "\nagents: %s  (%.0f ms)\n", strings.Join(m.Plan, ", "), m.DurationMS())
	for _, r := range m.Reports {
		fmt.Fprintf(w, "  [%s] %s\n", r.Agent, r.Summary)
	}
	for _, f := range m.Failures {
		fmt.Fprintf(w, "  [%s] failed: %s\n", f.Agent, f.Error)
	}
}
