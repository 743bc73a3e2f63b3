// Package app wires the configured components into a running agent.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evagent/config"
	"github.com/kilianp07/evagent/core/agent"
	"github.com/kilianp07/evagent/core/coordinator"
	"github.com/kilianp07/evagent/core/events"
	"github.com/kilianp07/evagent/core/journal"
	coremetrics "github.com/kilianp07/evagent/core/metrics"
	coremon "github.com/kilianp07/evagent/core/monitoring"
	"github.com/kilianp07/evagent/infra/logger"
	"github.com/kilianp07/evagent/infra/metrics"
	"github.com/kilianp07/evagent/infra/monitoring"
	"github.com/kilianp07/evagent/infra/mqtt"
	"github.com/kilianp07/evagent/internal/eventbus"
	"github.com/kilianp07/evagent/simulator"
)

// Options tunes how the service is assembled.
type Options struct {
	// Local replaces the MQTT coordinator with the in-process one.
	Local bool
	// Now overrides the clock driving the simulated vehicle.
	Now func() time.Time
}

// Service runs one agent bidding for one simulated EV.
type Service struct {
	Agent *agent.Agent
	EV    *simulator.EV

	cfg      *config.Config
	coord    coordinator.Coordinator
	broker   *mqtt.Coordinator
	sink     coremetrics.MetricsSink
	store    journal.Store
	stateBus *eventbus.TypedBus[events.EVUpdate]
	priceBus *eventbus.TypedBus[events.PriceHandled]
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts Options) (*Service, error) {
	settings, err := cfg.Agent.Parse()
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, &config.ConfigError{Field: "logging.level", Value: cfg.Logging.Level, Err: err}
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ev, err := simulator.NewEV(settings.Model, settings.Windows, now(), nil)
	if err != nil {
		return nil, fmt.Errorf("ev simulation: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	svc := &Service{EV: ev, cfg: cfg, sink: sink, store: store, log: logg}
	if opts.Local {
		svc.coord, err = coordinator.NewLocal(cfg.Local, logger.New("local_coordinator"))
	} else {
		svc.broker, err = mqtt.NewCoordinator(cfg.MQTT, settings.Agent.ParentID, settings.Agent.AgentID, logger.New("mqtt_coordinator"))
		svc.coord = svc.broker
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	a, err := agent.New(settings.Agent, ev, svc.coord, logger.New("agent"), sink)
	if err != nil {
		_ = svc.coord.Close()
		_ = store.Close()
		return nil, err
	}
	svc.stateBus = eventbus.New[events.EVUpdate]()
	svc.priceBus = eventbus.New[events.PriceHandled]()
	a.SetJournal(store)
	a.SetStateBus(svc.stateBus)
	a.SetPriceBus(svc.priceBus)
	a.SetClock(now)
	svc.Agent = a
	logg.Infof("agent %s (%s) ready, parent %s", settings.Agent.AgentID, settings.Model, settings.Agent.ParentID)
	return svc, nil
}

// Journal returns the store recording bids and price outcomes.
func (s *Service) Journal() journal.Store { return s.store }

// Coordinator returns the coordinator the agent bids to.
func (s *Service) Coordinator() coordinator.Coordinator { return s.coord }

// Run starts the agent and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.stateBus, s.sink)
	if s.broker != nil {
		go s.broker.ForwardStates(ctx, s.stateBus.Subscribe())
	}
	go s.logPrices(ctx, s.priceBus.Subscribe())
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if err := s.Agent.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Agent.Stop()
	return nil
}

func (s *Service) logPrices(ctx context.Context, ch <-chan events.PriceHandled) {
	for {
		select {
		case <-ctx.Done():
			return
		case ph, ok := <-ch:
			if !ok {
				return
			}
			s.log.Debugw("price handled", map[string]any{
				"bid_number": ph.Update.BidNumber,
				"price":      ph.Update.Price,
				"outcome":    ph.Outcome,
				"demand_kw":  ph.Demand,
			})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Agent.Stop()
	s.stateBus.Close()
	s.priceBus.Close()
	err := errors.Join(s.coord.Close(), s.store.Close())
	coremon.Flush(2 * time.Second)
	return err
}
