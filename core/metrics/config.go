package metrics

// SinkConfig contains the type name and raw configuration of one sink.
type SinkConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []SinkConfig `json:"sinks"`
	// PrometheusPort enables the /metrics HTTP endpoint when non-empty.
	PrometheusPort string `json:"prometheus_port"`
}
