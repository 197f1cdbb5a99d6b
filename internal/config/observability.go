package config

// TracingConfig holds OpenTelemetry tracing configuration.
//
// Traces are exported over OTLP/HTTP to a local collector or agent. The
// endpoint follows the standard OTEL_EXPORTER_OTLP_ENDPOINT convention; when
// empty, the exporter's own default (localhost:4318) applies.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
