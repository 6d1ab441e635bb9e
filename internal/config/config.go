// Package config loads the YAML configuration of the frame-latency
// pipeline and its outputs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/controller"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
)

// Config represents the complete frame-latency configuration
type Config struct {
	InstanceID string          `yaml:"instance_id"`
	Reporting  ReportingConfig `yaml:"reporting"`
	SampleBus  SampleBusConfig `yaml:"sample_bus"`
	Prometheus PromConfig      `yaml:"prometheus"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	UKM        UKMConfig       `yaml:"ukm"`
}

// ReportingConfig controls what reporters emit
type ReportingConfig struct {
	ReportHistograms   *bool `yaml:"report_histograms"` // default true
	ReportUKM          bool  `yaml:"report_ukm"`        // write structured records
	MaxOwnedDependents int   `yaml:"max_owned_partial_update_dependents"`
	MaxBackfillFrames  int   `yaml:"max_backfill_frames"`
	PaintMetrics       bool  `yaml:"paint_metrics"`
	SorterBufferSize   int   `yaml:"sorter_buffer_size"`
}

// HistogramsEnabled returns report_histograms, true when unset.
func (r ReportingConfig) HistogramsEnabled() bool {
	return r.ReportHistograms == nil || *r.ReportHistograms
}

// SampleBusConfig configures the sample fan-out
type SampleBusConfig struct {
	BufferSize int    `yaml:"buffer_size"` // per-subscriber channel capacity
	DropPolicy string `yaml:"drop_policy"` // drop_new, drop_old
}

// PromConfig configures the Prometheus exporter
type PromConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Namespace  string `yaml:"namespace"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Broker   string     `yaml:"broker"`
	ClientID string     `yaml:"client_id"`
	Topics   MQTTTopics `yaml:"topics"`
	QoS      byte       `yaml:"qos"`
}

// MQTTTopics contains publish topics
type MQTTTopics struct {
	Frames string `yaml:"frames"`
	Events string `yaml:"events"`
}

// UKMConfig configures the structured record stream
type UKMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: defaults invalid: %v", err))
	}
	return cfg
}

// ControllerConfig maps the reporting section onto controller settings.
func (c *Config) ControllerConfig() controller.Config {
	return controller.Config{
		Reporter: reporter.Config{
			ReportHistograms:   c.Reporting.HistogramsEnabled(),
			MaxOwnedDependents: c.Reporting.MaxOwnedDependents,
			PaintMetrics:       c.Reporting.PaintMetrics,
		},
		MaxBackfillFrames: c.Reporting.MaxBackfillFrames,
	}
}
