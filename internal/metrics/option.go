package metrics

import "time"

// Provider names a metric reader. The OTLP name matches the trace provider
// of the same transport so one telemetry setting selects both.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OTLPGRPCProvider   Provider = "otlp-grpc"
)

const defaultExportInterval = 30 * time.Second

// Config collects the options passed to NewMetricProvider.
type Config struct {
	ServiceName    string
	Readers        []ReaderConfig
	ExportInterval time.Duration
}

func (c Config) interval() time.Duration {
	if c.ExportInterval <= 0 {
		return defaultExportInterval
	}
	return c.ExportInterval
}

// ReaderConfig configures one exporter.
type ReaderConfig struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// WithPrometheus exposes instruments on the default Prometheus registry.
func WithPrometheus() OptionFn {
	return func(config Config) Config {
		config.Readers = append(config.Readers, ReaderConfig{Provider: PrometheusProvider})
		return config
	}
}

// WithOTLP pushes instruments to a collector every export interval.
func WithOTLP(endpoint string, headers map[string]string, insecure bool) OptionFn {
	return func(config Config) Config {
		config.Readers = append(config.Readers, ReaderConfig{
			Provider: OTLPGRPCProvider,
			Endpoint: endpoint,
			Headers:  headers,
			Insecure: insecure,
		})
		return config
	}
}

func WithExportInterval(d time.Duration) OptionFn {
	return func(config Config) Config {
		config.ExportInterval = d
		return config
	}
}

type PromServerConfig struct {
	port string
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

func WithPort(port string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.port = port
		return config
	}
}
