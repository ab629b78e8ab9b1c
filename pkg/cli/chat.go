package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, missionFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive mission loop",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger(os.Stderr)
			ctx = logging.With(ctx, logging.Default())

			h, err := cfg.build(ctx, false)
			if err != nil {
				return err
			}
			defer h.close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "hive> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintln(w, "Ask the hive anything. Type 'exit' to leave.")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				query := strings.TrimSpace(line)
				switch query {
				case "":
					continue
				case "exit", "quit":
					return nil
				}

				for ev := range h.coordinator.Stream(ctx, query, nil) {
					switch {
					case ev.Content != "":
						fmt.Fprint(w, ev.Content)
					case ev.Agent != "":
						fmt.Fprintf(w, "[%s: %s]\n", ev.Agent, ev.Status)
					}
				}
				fmt.Fprintln(w)
			}
		},
	}
}
