// Package publish forwards frame-latency samples to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/samplebus"
)

var ErrNotConnected = errors.New("publish: mqtt not connected")

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes frame and event-latency samples as JSON.
type MQTTPublisher struct {
	cfg    config.MQTTConfig
	client Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTPublisher creates a publisher. Connect must be called before
// publishing.
func NewMQTTPublisher(cfg config.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// NewWithClient creates a publisher over an already connected client.
func NewWithClient(cfg config.MQTTConfig, client Client) *MQTTPublisher {
	p := NewMQTTPublisher(cfg)
	p.client = client
	p.connected = client.IsConnected()
	return p
}

// Connect establishes the broker connection with auto-reconnect.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		slog.Info("mqtt connection established",
			"broker", p.cfg.Broker,
			"client_id", p.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", p.cfg.Broker,
		)
	}

	client := mqtt.NewClient(opts)
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	slog.Info("connecting to mqtt broker", "broker", p.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

// Publish sends one sample to the frames or events topic.
func (p *MQTTPublisher) Publish(s samplebus.Sample) error {
	client := p.connectedClient()
	if client == nil {
		p.countError()
		return ErrNotConnected
	}

	topic := p.cfg.Topics.Frames
	var payload []byte
	var err error
	switch s.Kind {
	case samplebus.KindEventLatency:
		topic = p.cfg.Topics.Events
		payload, err = json.Marshal(NewEventPayload(s))
	default:
		payload, err = json.Marshal(NewFramePayload(s))
	}
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	token := client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	slog.Debug("sample published",
		"topic", topic,
		"kind", s.Kind.String(),
		"size", len(payload),
	)
	return nil
}

// Run publishes samples from ch until ctx is done or ch is closed.
// Publish failures are logged and counted; they do not stop the loop.
func (p *MQTTPublisher) Run(ctx context.Context, ch <-chan samplebus.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.Publish(s); err != nil {
				slog.Warn("failed to publish sample",
					"kind", s.Kind.String(),
					"seq", s.Seq,
					"error", err,
				)
			}
		}
	}
}

// Disconnect closes the broker connection.
func (p *MQTTPublisher) Disconnect() error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	p.setConnected(false)
	return nil
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns publisher statistics
func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
	}
}

// connectedClient returns the client, or nil when not connected.
func (p *MQTTPublisher) connectedClient() Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.connected {
		return nil
	}
	return p.client
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
