package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evagent/config"
	coremetrics "github.com/kilianp07/evagent/core/metrics"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestBidCommandStep(t *testing.T) {
	out, err := execute(t, "bid", "--urgency", "0.5", "--power", "7", "--max-price", "1", "--min-price", "0", "--steps", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: step")
	assert.Contains(t, out, "threshold: 2.0000")
	assert.Contains(t, out, "2.0000  7.000")
	assert.Contains(t, out, "2.0000  0.000")
}

func TestBidCommandFlat(t *testing.T) {
	out, err := execute(t, "bid", "--urgency", "1", "--power", "3.6", "--max-price", "0.5", "--min-price", "0", "--steps", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: flat")
	assert.Contains(t, out, "0.5000  3.600")
}

func TestBidCommandRejectsZeroUrgency(t *testing.T) {
	_, err := execute(t, "bid", "--urgency", "0", "--power", "7", "--max-price", "1", "--min-price", "0", "--steps", "100")
	assert.ErrorContains(t, err, "no bid")
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`agent:
  agent_id: "ev-7"
mqtt:
  password: "secret"
metrics:
  sinks:
    - type: influx
      conf:
        token: "tok"
`), 0o644))
	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))
	agent := tree["agent"].(map[string]any)
	assert.Equal(t, "ev-7", agent["agent_id"])
	assert.Equal(t, "LEAF", agent["ev_model"])
	assert.Equal(t, redacted, tree["mqtt"].(map[string]any)["password"])
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "tok\n")
}

func TestConfigCommandMissingExplicitFile(t *testing.T) {
	_, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRenderConfigKeepsSource(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.MQTT.Password = "pw"
	cfg.Metrics.Sinks = []coremetrics.SinkConfig{{Type: "influx", Conf: map[string]any{"token": "t"}}}
	_, err = renderConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pw", cfg.MQTT.Password)
	assert.Equal(t, "t", cfg.Metrics.Sinks[0].Conf["token"])
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  time_home_lower: \"noon\"\n"), 0o644))
	_, err := execute(t, "run", "--local", "--config", path)
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "time_home_lower", cerr.Field)
}
