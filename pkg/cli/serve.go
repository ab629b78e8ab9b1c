package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	controller "github.com/hivemind-lab/hivemind/pkg/controller/http"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("HIVEMIND_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, missionFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP orchestrator with background memory maintenance",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger(os.Stderr)
			logger := logging.Default()
			ctx = logging.With(ctx, logger)

			h, err := cfg.build(ctx, true)
			if err != nil {
				return err
			}
			defer h.close()

			server := controller.New(h.coordinator,
				controller.WithAgents(h.registry.Specs()),
				controller.WithTracker(h.tracker),
				controller.WithStatsSource(func(ctx context.Context) (string, any) {
					stats, err := h.hot.GetStats(ctx)
					if err != nil {
						return "hot_memory", map[string]any{"error": err.Error()}
					}
					return "hot_memory", stats
				}),
				controller.WithStatsSource(func(ctx context.Context) (string, any) {
					stats, err := h.cold.GetStats(ctx)
					if err != nil {
						return "cold_memory", map[string]any{"error": err.Error()}
					}
					return "cold_memory", stats
				}),
			)

			if err := h.gardener.Start(ctx); err != nil {
				return err
			}
			defer h.gardener.Stop()

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server,
				ReadHeaderTimeout: 10 * time.Second,
			}

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gCtx := errgroup.WithContext(sigCtx)
			g.Go(func() error {
				logger.Info("hive listening", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "HTTP server failed")
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				logger.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}
