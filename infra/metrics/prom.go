package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evagent/core/metrics"
)

// PromSink records agent activity in Prometheus metrics.
type PromSink struct {
	bids      *prometheus.CounterVec
	prices    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	threshold *prometheus.GaugeVec
	power     *prometheus.GaugeVec
	urgency   *prometheus.GaugeVec
	soc       *prometheus.GaugeVec
}

// NewPromSink registers agent metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bids_published_total",
			Help: "Total number of bids accepted by the coordinator",
		}, []string{"agent", "kind"}),
		prices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_updates_total",
			Help: "Total number of price updates by outcome",
		}, []string{"agent", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bid_publish_failures_total",
			Help: "Total number of bids the coordinator did not accept",
		}, []string{"agent"}),
		threshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bid_threshold_price",
			Help: "Highest price at which the last bid still demands power",
		}, []string{"agent"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ev_charging_power_kw",
			Help: "Commanded charge power in kW",
		}, []string{"agent"}),
		urgency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ev_urgency_ratio",
			Help: "Charging urgency between 0 and 1",
		}, []string{"agent"}),
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ev_state_of_charge",
			Help: "Battery state of charge between 0 and 1",
		}, []string{"agent"}),
	}
	var err error
	if s.bids, err = register(reg, s.bids); err != nil {
		return nil, err
	}
	if s.prices, err = register(reg, s.prices); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	if s.threshold, err = register(reg, s.threshold); err != nil {
		return nil, err
	}
	if s.power, err = register(reg, s.power); err != nil {
		return nil, err
	}
	if s.urgency, err = register(reg, s.urgency); err != nil {
		return nil, err
	}
	if s.soc, err = register(reg, s.soc); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordBid counts the bid and exposes its threshold price.
func (s *PromSink) RecordBid(ev coremetrics.BidEvent) error {
	s.bids.WithLabelValues(ev.AgentID, ev.Kind).Inc()
	s.threshold.WithLabelValues(ev.AgentID).Set(ev.Threshold)
	return nil
}

// RecordPriceUpdate counts the price update by outcome.
func (s *PromSink) RecordPriceUpdate(ev coremetrics.PriceEvent) error {
	s.prices.WithLabelValues(ev.AgentID, ev.Outcome).Inc()
	return nil
}

// RecordDeviceState sets the charger gauges.
func (s *PromSink) RecordDeviceState(ev coremetrics.DeviceStateEvent) error {
	s.power.WithLabelValues(ev.AgentID).Set(ev.State.ChargingAt)
	s.urgency.WithLabelValues(ev.AgentID).Set(ev.State.UrgencyRatio)
	s.soc.WithLabelValues(ev.AgentID).Set(ev.State.StateOfCharge)
	return nil
}

// RecordPublishFailure counts a rejected bid.
func (s *PromSink) RecordPublishFailure(agentID string) error {
	s.failures.WithLabelValues(agentID).Inc()
	return nil
}
