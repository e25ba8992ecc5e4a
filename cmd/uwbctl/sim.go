package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/uwbranging/internal/admin"
	"github.com/danmuck/uwbranging/internal/config"
	"github.com/danmuck/uwbranging/internal/engine/sim"
	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/scope"
	"github.com/danmuck/uwbranging/internal/transport/mem"
	"github.com/danmuck/uwbranging/internal/uwb"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func simCmd() *cobra.Command {
	var (
		controlees int
		duration   string
		seed       uint64
		withAdmin  bool
		adminAddr  string
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Negotiate and range between a controller and simulated controlees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("controlees") {
				cfg.Sim.Controlees = controlees
			}
			if flags.Changed("duration") {
				cfg.Sim.Duration = duration
			}
			if flags.Changed("seed") {
				cfg.Sim.Seed = seed
			}
			if flags.Changed("admin") {
				cfg.Admin.Enabled = withAdmin
			}
			if flags.Changed("admin-addr") {
				cfg.Admin.Addr = adminAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSim(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&controlees, "controlees", "n", 0, "number of simulated controlees")
	cmd.Flags().StringVarP(&duration, "duration", "d", "", "run time (e.g. 30s); 0 runs until interrupted")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulation seed; 0 seeds from the clock")
	cmd.Flags().BoolVar(&withAdmin, "admin", false, "serve the admin HTTP surface")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "admin listen address")
	return cmd
}

func runSim(ctx context.Context, cfg config.Config) error {
	runFor, err := cfg.Sim.RunDuration()
	if err != nil {
		return err
	}
	var cancel context.CancelFunc
	if runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, runFor)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	hub := mem.NewHub()
	engine := sim.New(cfg.SimEngineConfig())
	local := cfg.LocalEndpoint()

	ctrl, err := scope.NewController(cfg, hub.NewNode(local.ID), engine, local, cfg.Ranging.ConfigID)
	if err != nil {
		return fmt.Errorf("controller scope: %w", err)
	}
	scopes := []*scope.Scope{ctrl}
	for i := 1; i <= cfg.Sim.Controlees; i++ {
		id := fmt.Sprintf("%s-ee%d", local.ID, i)
		ee, err := scope.NewControlee(cfg, hub.NewNode(id), engine, uwb.NewEndpoint(id, []byte(id)))
		if err != nil {
			return fmt.Errorf("controlee scope %s: %w", id, err)
		}
		scopes = append(scopes, ee)
	}

	g, gctx := errgroup.WithContext(ctx)
	sources := make([]admin.Source, 0, len(scopes))
	for _, s := range scopes {
		events, err := s.Prepare(gctx)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", s.Local(), err)
		}
		sources = append(sources, s)
		g.Go(func() error {
			for ev := range events {
				react(gctx, s, ev)
			}
			return s.Wait()
		})
	}
	if cfg.Admin.Enabled {
		srv := admin.New(local.ID, cfg.Admin.Addr, cfg.Admin.CorsOrigins, sources...)
		g.Go(func() error { return srv.Serve(gctx) })
	}

	logging.Infof("uwbctl.sim running controller=%q controlees=%d admin=%t", local.ID, cfg.Sim.Controlees, cfg.Admin.Enabled)
	err = g.Wait()
	logging.Infof("uwbctl.sim finished err=%v", err)
	return err
}

// react logs every event. Controllers greet each new peer and controlees
// acknowledge greetings so the OOB message path stays exercised.
func react(ctx context.Context, s *scope.Scope, ev uwb.EndpointEvent) {
	logEvent(s, ev)
	switch {
	case ev.Kind == uwb.EventEndpointFound && s.Role() == "controller":
		if err := s.SendMessage(ctx, ev.Endpoint, []byte("hello")); err != nil {
			logging.Warnf("uwbctl.sim greet peer=%q err=%v", ev.Endpoint, err)
		}
	case ev.Kind == uwb.EventEndpointMessage && s.Role() == "controlee":
		if err := s.SendMessage(ctx, ev.Endpoint, []byte("ack:"+string(ev.Message))); err != nil {
			logging.Warnf("uwbctl.sim ack peer=%q err=%v", ev.Endpoint, err)
		}
	}
}

func logEvent(s *scope.Scope, ev uwb.EndpointEvent) {
	l := logging.Logger()
	e := l.Info()
	if ev.Kind == uwb.EventPositionUpdated {
		e = l.Debug()
	}
	e = e.Str("scope", s.Local().ID).
		Str("role", s.Role()).
		Str("event", ev.Kind.String()).
		Str("endpoint", ev.Endpoint.ID)
	if p := ev.Position; ev.Kind == uwb.EventPositionUpdated {
		if p.Distance != nil {
			e = e.Float64("distance_m", p.Distance.Value)
		}
		if p.Azimuth != nil {
			e = e.Float64("azimuth_deg", p.Azimuth.Value)
		}
		if p.Elevation != nil {
			e = e.Float64("elevation_deg", p.Elevation.Value)
		}
	}
	if ev.Kind == uwb.EventEndpointMessage {
		e = e.Str("message", string(ev.Message))
	}
	e.Msg("endpoint_event")
}
