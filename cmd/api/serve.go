package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"video-chapters-go/internal/api"
	"video-chapters-go/internal/config"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the pipeline workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	log := logger.New()
	log.WithField("service", "video-chapters-go").WithField("version", Version).Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	store, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open job status store")
		return err
	}

	q, err := newQueue(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to start task queue")
		return err
	}
	defer q.Close()

	videos := newVideoClient(cfg, log)
	orch := pipeline.New(store, videos, newTranscriptionClient(cfg, log), q, pipeline.Options{
		PollInterval:    cfg.Poll.Interval,
		PollMaxAttempts: cfg.Poll.MaxAttempts,
	}, log)

	router := api.NewRouter(api.Deps{
		Transcripts: videos,
		Refiner:     newRefiner(cfg, log),
		Jobs:        orch,
		Statuses:    store,
		Log:         log,

		AllowedOrigins: cfg.CORSOrigins,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return q.Run(gctx, orch.Handle)
	})
	g.Go(func() error {
		return api.Serve(gctx, cfg.Port, router, log)
	})
	if cfg.Sweep.Schedule != "off" {
		sweeper := pipeline.NewSweeper(store, cfg.Sweep.StaleAfter, log)
		g.Go(func() error {
			return sweeper.Run(gctx, cfg.Sweep.Schedule)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("server terminated")
		return err
	}
	log.Info("shutdown complete")
	return nil
}
