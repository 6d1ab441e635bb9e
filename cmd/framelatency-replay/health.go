package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/publish"
)

// HealthStatus represents the state of the replay
type HealthStatus struct {
	Status          string  `json:"status"` // "replaying", "done", "degraded"
	UptimeSeconds   int64   `json:"uptime_seconds"`
	Steps           int     `json:"steps"`
	MQTTEnabled     bool    `json:"mqtt_enabled"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	FramesStarted   uint64  `json:"frames_started,omitempty"`
	FramesPresented uint64  `json:"frames_presented,omitempty"`
	DropRate        float64 `json:"drop_rate,omitempty"`
}

// health serves liveness and readiness for the metrics server. Frame stats
// are published once the replay finishes.
type health struct {
	started time.Time

	mu        sync.RWMutex
	done      bool
	steps     int
	stats     framelatency.Stats
	publisher *publish.MQTTPublisher
}

func newHealth() *health {
	return &health{started: time.Now()}
}

func (h *health) setPublisher(p *publish.MQTTPublisher) {
	h.mu.Lock()
	h.publisher = p
	h.mu.Unlock()
}

func (h *health) finish(steps int, stats framelatency.Stats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
	h.steps = steps
	h.stats = stats
}

// Check returns the current health status
func (h *health) Check() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:        "replaying",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Steps:         h.steps,
	}
	if h.publisher != nil {
		status.MQTTEnabled = true
		status.MQTTConnected = h.publisher.Stats().Connected
	}
	if !h.done {
		return status
	}

	status.Status = "done"
	status.FramesStarted = h.stats.Controller.FramesStarted
	status.FramesPresented = h.stats.Controller.FramesPresented
	status.DropRate = framelatency.CalculateDropRate(h.stats.Sorter)
	if status.MQTTEnabled && !status.MQTTConnected {
		status.Status = "degraded"
	}
	return status
}

// LivenessHandler handles /health endpoint (simple liveness check)
func (h *health) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(h.started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness endpoint. Returns 503 until the
// replay has finished and every histogram is exported.
func (h *health) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := h.Check()

	statusCode := http.StatusOK
	if status.Status == "replaying" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}
