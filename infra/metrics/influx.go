package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evagent/core/metrics"
	"github.com/kilianp07/evagent/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes agent events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBid writes a bid_published point.
func (s *InfluxSink) RecordBid(ev coremetrics.BidEvent) error {
	p := write.NewPointWithMeasurement("bid_published").
		AddTag("agent_id", ev.AgentID).
		AddTag("session_id", ev.SessionID).
		AddTag("kind", ev.Kind).
		AddField("bid_number", ev.BidNumber).
		AddField("demand_kw", round3(ev.DemandKW)).
		AddField("threshold", round3(ev.Threshold)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordPriceUpdate writes a price_update point.
func (s *InfluxSink) RecordPriceUpdate(ev coremetrics.PriceEvent) error {
	p := write.NewPointWithMeasurement("price_update").
		AddTag("agent_id", ev.AgentID).
		AddTag("outcome", ev.Outcome).
		AddField("bid_number", ev.BidNumber).
		AddField("price", round3(ev.Price)).
		AddField("demand_kw", round3(ev.DemandKW)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordDeviceState writes an ev_state point.
func (s *InfluxSink) RecordDeviceState(ev coremetrics.DeviceStateEvent) error {
	st := ev.State
	p := write.NewPointWithMeasurement("ev_state").
		AddTag("agent_id", ev.AgentID).
		AddTag("plugged_in", strconv.FormatBool(st.PluggedIn)).
		AddField("soc", round3(st.StateOfCharge)).
		AddField("urgency", round3(st.UrgencyRatio)).
		AddField("charging", st.Charging).
		AddField("power_kw", round3(st.ChargingAt)).
		SetTime(ev.Time)
	return s.write(p)
}

// Close flushes and releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
