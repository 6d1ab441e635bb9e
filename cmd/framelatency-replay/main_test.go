package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// TestRunReleasesResourcesOnEarlyFailure verifies a failed MQTT connect
// still shuts down the metrics server and closes the record stream.
func TestRunReleasesResourcesOnEarlyFailure(t *testing.T) {
	dir := t.TempDir()
	addr := freeAddr(t)
	ukmPath := filepath.Join(dir, "records.ukm")

	cfgPath := filepath.Join(dir, "framelatency.yaml")
	cfg := fmt.Sprintf(`
instance_id: test
prometheus:
  enabled: true
  listen_addr: %q
mqtt:
  enabled: true
  broker: 127.0.0.1:1
ukm:
  enabled: true
  path: %q
`, addr, ukmPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	scPath := writeScenario(t, "steps: [{op: begin_impl}]")

	// A cancelled context fails the broker connect right away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfgPath, scPath, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	if _, err := os.Stat(ukmPath); err != nil {
		t.Errorf("Expected record stream to be created: %v", err)
	}

	// The serve goroutine may still be closing its listener.
	var ln net.Listener
	for i := 0; i < 50; i++ {
		if ln, err = net.Listen("tcp", addr); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Expected metrics address to be released, got %v", err)
	}
	ln.Close()
}
