// Package infra holds the adapters behind the core interfaces: the MQTT
// coordinator, zerolog logging, Prometheus and InfluxDB sinks and Sentry
// reporting. Nothing under core imports these packages.
package infra
