// Package metrics defines the recorder interfaces used by the agent. Sinks
// such as PromSink and InfluxSink in infra/metrics implement a subset of the
// optional recorders and can be combined with NewMultiSink. NewMetricsSink
// builds sinks from configuration through the registry.
package metrics
