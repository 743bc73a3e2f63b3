package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evagent/simulator"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `agent:
  agent_id: "ev-42"
  desired_parent_id: "feeder-1"
  bid_update_rate: 10
  ev_model: "tesla"
  time_home_lower: "17:30"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
  qos:
    bid: 2
metrics:
  prometheus_port: "9100"
  sinks:
    - type: "nop"
journal:
  backend: "jsonl"
  path: "/tmp/bids.jsonl"
local:
  clearing_price: 0.4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"agent_id", cfg.Agent.AgentID, "ev-42"},
		{"parent", cfg.Agent.DesiredParentID, "feeder-1"},
		{"bid_update_rate", cfg.Agent.BidUpdateRate, 10},
		{"ev_model", cfg.Agent.EVModel, "tesla"},
		{"time_home_lower", cfg.Agent.TimeHomeLower, "17:30"},
		{"time_home_upper default", cfg.Agent.TimeHomeUpper, "19:00"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"topic_prefix default", cfg.MQTT.TopicPrefix, "evagent"},
		{"bid qos", cfg.MQTT.QoS["bid"], byte(2)},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prometheus_port", cfg.Metrics.PrometheusPort, "9100"},
		{"journal", cfg.Journal.Backend, "jsonl"},
		{"clearing_price", cfg.Local.ClearingPrice, 0.4},
		{"local basis default", cfg.Local.Basis, DefaultLocalBasis},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}

	s, err := cfg.Agent.Parse()
	require.NoError(t, err)
	assert.Equal(t, simulator.ModelTesla, s.Model)
	assert.Equal(t, 10*time.Second, s.Agent.BidUpdateRate)
	assert.Equal(t, "feeder-1", s.Agent.ParentID)
	assert.Equal(t, 17*time.Hour+30*time.Minute, s.Windows.HomeLower)
	assert.Equal(t, 10*time.Hour, s.Windows.ChargeByUpper)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeFile(t, "config.json", `{"agent": {"agent_id": "ev-1"}}`)
	t.Setenv("K_AGENT__AGENT_ID", "ev-env")
	t.Setenv("K_AGENT__BID_UPDATE_RATE", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ev-env", cfg.Agent.AgentID)
	assert.Equal(t, 30, cfg.Agent.BidUpdateRate)
}

func TestEnvOverridesNestedKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", "mqtt:\n  topic_prefix: \"file\"\n")
	t.Setenv("K_MQTT__TOPIC_PREFIX", "from-env")
	t.Setenv("K_MQTT__MAX_RETRIES", "7")
	t.Setenv("K_LOCAL__CLEARING_PRICE", "0.75")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 7, cfg.MQTT.MaxRetries)
	assert.Equal(t, 0.75, cfg.Local.ClearingPrice)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "agent = 1"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "EV", cfg.Agent.AgentID)
	assert.Equal(t, "concentrator", cfg.Agent.DesiredParentID)
	assert.Equal(t, 5, cfg.Agent.BidUpdateRate)
	assert.Equal(t, "LEAF", cfg.Agent.EVModel)
	assert.Equal(t, "none", cfg.Journal.Backend)

	s, err := cfg.Agent.Parse()
	require.NoError(t, err)
	assert.Equal(t, simulator.DefaultWindows, s.Windows)
	assert.Equal(t, simulator.ModelLeaf, s.Model)
}

func TestAgentConfigErrors(t *testing.T) {
	base := func() AgentConfig {
		c := AgentConfig{}
		require.NoError(t, c.SetDefaults())
		return c
	}
	cases := []struct {
		name   string
		mutate func(*AgentConfig)
		field  string
		cause  error
	}{
		{"bad time", func(c *AgentConfig) { c.TimeHomeUpper = "7pm" }, "time_home_upper", ErrInvalidTimeOfDay},
		{"out of range", func(c *AgentConfig) { c.ChargeByLower = "25:00" }, "charge_by_lower", ErrInvalidTimeOfDay},
		{"model", func(c *AgentConfig) { c.EVModel = "ZOE" }, "ev_model", simulator.ErrUnknownModel},
		{"rate", func(c *AgentConfig) { c.BidUpdateRate = -1 }, "bid_update_rate", nil},
		{"inverted window", func(c *AgentConfig) { c.TimeHomeLower = "20:00" }, "time_home", simulator.ErrInvalidWindows},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			_, err := c.Parse()
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tc.field, cerr.Field)
			if tc.cause != nil {
				assert.ErrorIs(t, err, tc.cause)
			}
		})
	}
}

func TestLoadFailsFastOnBadAgentConfig(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "agent:\n  charge_by_upper: \"late\"\n"))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "charge_by_upper", cerr.Field)
	assert.Equal(t, "late", cerr.Value)
	assert.Contains(t, err.Error(), "charge_by_upper")
}
