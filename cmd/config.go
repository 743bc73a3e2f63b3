package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evagent/config"
)

const redacted = "***"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := renderConfig(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// renderConfig encodes cfg as YAML with its json field names and secrets
// redacted.
func renderConfig(cfg *config.Config) ([]byte, error) {
	c := *cfg
	if c.MQTT.Password != "" {
		c.MQTT.Password = redacted
	}
	if c.Sentry.DSN != "" {
		c.Sentry.DSN = redacted
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if m, ok := tree["metrics"].(map[string]any); ok {
		sinks, _ := m["sinks"].([]any)
		for _, s := range sinks {
			conf, _ := s.(map[string]any)["conf"].(map[string]any)
			if tok, ok := conf["token"].(string); ok && tok != "" {
				conf["token"] = redacted
			}
		}
	}
	return yaml.Marshal(tree)
}
