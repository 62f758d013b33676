package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/collabmesh"
	"github.com/hupe1980/collabmesh/config"
	"github.com/hupe1980/collabmesh/core"
	"github.com/hupe1980/collabmesh/gateway"
	"github.com/hupe1980/collabmesh/logging"
	"github.com/hupe1980/collabmesh/relay"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a session and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if agents, _ := cmd.Flags().GetInt("agents"); cmd.Flags().Changed("agents") {
				cfg.Session.Agents = agents
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Gateway.Enabled = true
				cfg.Gateway.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().Int("agents", 0, "Number of simulated agents (overrides config)")
	cmd.Flags().String("addr", "", "Enable the gateway on this address")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	base, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	replicaID := core.NewID()
	logger := base.WithReplica(replicaID)

	composer, err := newComposer(cfg.Composer, logger)
	if err != nil {
		return err
	}

	s := collabmesh.New(func(o *collabmesh.Options) {
		o.ReplicaID = replicaID
		o.Agents = cfg.Session.Agents
		o.Seed = cfg.Session.Seed
		o.Settings = cfg.Dev
		o.ConflictProbability = cfg.Session.ConflictProbability
		o.ConnectDelayMin = cfg.Session.ConnectDelayMin
		o.ConnectDelaySpan = cfg.Session.ConnectDelaySpan
		o.ReconnectDelay = cfg.Session.ReconnectDelay
		o.Composer = composer
		o.Logger = logger
	})
	defer s.Close()

	logger.Info("Starting session",
		"agents", len(s.Simulator().Agents()),
		"composer", cfg.Composer.String(),
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Relay.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Relay.Addr,
			Password: cfg.Relay.Password,
			DB:       cfg.Relay.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("relay: ping %s: %w", cfg.Relay.Addr, err)
		}

		r := relay.New(client, s.Bus(), func(o *relay.Options) {
			o.Channel = cfg.Relay.Channel
			o.ReplicaID = s.ID()
			o.Logger = logging.ForComponent(logger, "relay")
		})
		g.Go(func() error { return r.Run(ctx) })
		g.Go(func() error { return r.Follow(ctx) })
	}

	if cfg.Gateway.Enabled {
		srv := gateway.New(s, func(o *gateway.Options) {
			o.Logger = logging.ForComponent(logger, "gateway")
		})
		g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Gateway.Addr) })
	}

	if err := s.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err = g.Wait()
	logger.Info("Shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
