package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evagent/core/coordinator"
	"github.com/kilianp07/evagent/core/journal"
	"github.com/kilianp07/evagent/core/metrics"
	"github.com/kilianp07/evagent/core/model"
	"github.com/kilianp07/evagent/infra/mqtt"
)

type Config struct {
	Agent   AgentConfig             `json:"agent"`
	MQTT    mqtt.Config             `json:"mqtt"`
	Metrics metrics.Config          `json:"metrics"`
	Journal journal.Config          `json:"journal"`
	Logging LoggingConfig           `json:"logging"`
	Sentry  SentryConfig            `json:"sentry"`
	Local   coordinator.LocalConfig `json:"local"`
}

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// DefaultLocalBasis is the market basis of the in-process coordinator when
// none is configured.
var DefaultLocalBasis = model.MarketBasis{
	Commodity:    "electricity",
	Currency:     "EUR",
	PriceSteps:   100,
	MinimumPrice: 0,
	MaximumPrice: 1,
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var cfg Config
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// K_AGENT__AGENT_ID overrides agent.agent_id.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if err := c.Agent.SetDefaults(); err != nil {
		return err
	}
	c.MQTT.SetDefaults()
	c.Journal.SetDefaults()
	if c.Local.Basis == (model.MarketBasis{}) {
		c.Local.Basis = DefaultLocalBasis
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if err := c.Local.Basis.Validate(); err != nil {
		return &ConfigError{Field: "local.market_basis", Value: fmt.Sprintf("%+v", c.Local.Basis), Err: err}
	}
	return nil
}
