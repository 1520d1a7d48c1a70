package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opforge/opforge/pkg/operations"
	"github.com/opforge/opforge/pkg/telemetry"
)

// Config is the forge CLI configuration.
type Config struct {
	// MaxParallelism is the worker pool size. Negative means one thread per
	// CPU, zero means a single thread.
	MaxParallelism int `json:"max_parallelism" yaml:"max_parallelism" validate:"lte=4096"`

	// StopTimeout bounds how long shutdown waits for outstanding work.
	StopTimeout Duration `json:"stop_timeout" yaml:"stop_timeout" validate:"gte=0"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Events  EventsConfig  `json:"events" yaml:"events"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=console json"`
	Output string `json:"output" yaml:"output"`
}

// TracingConfig configures operation tracing.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Exporter     string  `json:"exporter" yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `json:"insecure" yaml:"insecure"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listen_address" yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `json:"path" yaml:"path" validate:"omitempty,startswith=/"`
	Namespace     string `json:"namespace" yaml:"namespace" validate:"omitempty,alphanum"`
}

// EventsConfig configures operation events.
type EventsConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	Async      bool `json:"async" yaml:"async"`
	BufferSize int  `json:"buffer_size" yaml:"buffer_size" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		MaxParallelism: -1,
		StopTimeout:    Duration(operations.DefaultStopTimeout),
		Logging: LoggingConfig{
			Level:  tel.Logging.Level,
			Format: tel.Logging.Format,
			Output: tel.Logging.Output,
		},
		Tracing: TracingConfig{
			Enabled:      tel.Tracing.Enabled,
			Exporter:     tel.Tracing.Exporter,
			SamplingRate: tel.Tracing.SamplingRate,
			Insecure:     tel.Tracing.Insecure,
		},
		Metrics: MetricsConfig{
			Enabled:       tel.Metrics.Enabled,
			ListenAddress: tel.Metrics.ListenAddress,
			Path:          tel.Metrics.Path,
			Namespace:     tel.Metrics.Namespace,
		},
		Events: EventsConfig{
			Enabled:    tel.Events.Enabled,
			Async:      tel.Events.EnableAsync,
			BufferSize: tel.Events.BufferSize,
		},
	}
}

// Telemetry maps the configuration onto a telemetry configuration.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tel := telemetry.DefaultConfig()
	if version != "" {
		tel.ServiceVersion = version
	}

	tel.Logging.Level = c.Logging.Level
	tel.Logging.Format = c.Logging.Format
	tel.Logging.Output = c.Logging.Output

	tel.Tracing.Enabled = c.Tracing.Enabled
	tel.Tracing.Exporter = c.Tracing.Exporter
	tel.Tracing.Endpoint = c.Tracing.Endpoint
	tel.Tracing.SamplingRate = c.Tracing.SamplingRate
	tel.Tracing.Insecure = c.Tracing.Insecure

	tel.Metrics.Enabled = c.Metrics.Enabled
	tel.Metrics.ListenAddress = c.Metrics.ListenAddress
	if c.Metrics.Path != "" {
		tel.Metrics.Path = c.Metrics.Path
	}
	if c.Metrics.Namespace != "" {
		tel.Metrics.Namespace = c.Metrics.Namespace
	}

	tel.Events.Enabled = c.Events.Enabled
	tel.Events.EnableAsync = c.Events.Async
	if c.Events.BufferSize > 0 {
		tel.Events.BufferSize = c.Events.BufferSize
	}
	return tel
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}
