package config

import (
	"fmt"
	"regexp"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/controller"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/samplebus"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sorter"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "framelatency"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := validateReporting(&cfg.Reporting); err != nil {
		return fmt.Errorf("reporting: %w", err)
	}

	// Sample bus
	if cfg.SampleBus.BufferSize < 0 {
		return fmt.Errorf("sample_bus.buffer_size must be >= 0")
	}
	if cfg.SampleBus.BufferSize == 0 {
		cfg.SampleBus.BufferSize = 64 // default
	}
	if _, ok := samplebus.ParseDropPolicy(cfg.SampleBus.DropPolicy); !ok {
		return fmt.Errorf("sample_bus.drop_policy %q must be drop_new or drop_old", cfg.SampleBus.DropPolicy)
	}
	if cfg.SampleBus.DropPolicy == "" {
		cfg.SampleBus.DropPolicy = samplebus.DropNew.String()
	}

	// Prometheus
	if cfg.Prometheus.ListenAddr == "" {
		cfg.Prometheus.ListenAddr = ":9090"
	}
	if cfg.Prometheus.Namespace == "" {
		cfg.Prometheus.Namespace = "framelatency"
	}

	// MQTT
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.InstanceID
	}
	if cfg.MQTT.Topics.Frames == "" {
		cfg.MQTT.Topics.Frames = fmt.Sprintf("care/framelatency/%s/frames", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Events == "" {
		cfg.MQTT.Topics.Events = fmt.Sprintf("care/framelatency/%s/events", cfg.InstanceID)
	}

	// UKM
	if cfg.UKM.Enabled && cfg.UKM.Path == "" {
		return fmt.Errorf("ukm.path is required when ukm is enabled")
	}

	return nil
}

func validateReporting(r *ReportingConfig) error {
	if r.MaxOwnedDependents < 0 {
		return fmt.Errorf("max_owned_partial_update_dependents must be >= 0")
	}
	if r.MaxOwnedDependents == 0 {
		r.MaxOwnedDependents = reporter.DefaultMaxOwnedDependents
	}

	if r.MaxBackfillFrames < 0 {
		return fmt.Errorf("max_backfill_frames must be >= 0")
	}
	if r.MaxBackfillFrames == 0 {
		r.MaxBackfillFrames = controller.MaxBackfilledFrames
	}

	if r.SorterBufferSize < 0 {
		return fmt.Errorf("sorter_buffer_size must be >= 0")
	}
	if r.SorterBufferSize == 0 {
		r.SorterBufferSize = sorter.DefaultBufferSize
	}

	return nil
}
