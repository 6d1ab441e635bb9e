package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/clock"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/publish"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/samplebus"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/sink"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/ukm"
)

const (
	version = "v0.1.0"

	defaultConfigPath = "config/framelatency.yaml"
	shutdownTimeout   = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults when empty)")
	scenarioPath := flag.String("scenario", "", "Path to replay scenario (required)")
	hold := flag.Bool("hold", false, "Keep serving /metrics after the replay until interrupted")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		flag.Usage()
		os.Exit(1)
	}

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting framelatency replay",
		"version", version,
		"config", *configPath,
		"scenario", *scenarioPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *scenarioPath, *hold); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}

	slog.Info("framelatency replay stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

func run(ctx context.Context, configPath, scenarioPath string, hold bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	sc, err := LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	rec := sink.NewRecorder()
	histograms := sink.Tee{rec}
	structured := sink.StructuredTee{rec}

	// Prometheus exporter and health endpoints
	h := newHealth()
	var srv *http.Server
	if cfg.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		prom := sink.NewPrometheus(reg, cfg.Prometheus.Namespace)
		histograms = append(histograms, prom)
		structured = append(structured, prom)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", h.LivenessHandler)
		mux.HandleFunc("/readiness", h.ReadinessHandler)
		srv = &http.Server{
			Addr:         cfg.Prometheus.ListenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown failed", "error", err)
			}
		}()
		slog.Info("serving metrics",
			"addr", cfg.Prometheus.ListenAddr,
			"endpoints", []string{"/metrics", "/health", "/readiness"},
		)
	}

	// UKM record stream
	var records *ukm.Writer
	if cfg.UKM.Enabled {
		records, err = ukm.Create(cfg.UKM.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := records.Close(); err != nil {
				slog.Warn("failed to close record stream", "error", err)
			}
		}()
		structured = append(structured, records)
	}

	// Sample bus and MQTT publisher
	clk := clock.NewFake(time.Unix(0, 0))
	bus := samplebus.New(clk.Now)
	var publisher *publish.MQTTPublisher
	var wg, fwd sync.WaitGroup
	samples := make(chan samplebus.Sample, cfg.SampleBus.BufferSize)
	if cfg.MQTT.Enabled {
		publisher = publish.NewMQTTPublisher(cfg.MQTT)
		if err := publisher.Connect(ctx); err != nil {
			return err
		}
		defer publisher.Disconnect()
		h.setPublisher(publisher)
		policy, _ := samplebus.ParseDropPolicy(cfg.SampleBus.DropPolicy)
		if policy == samplebus.DropOld {
			receiver, err := bus.SubscribeDropOld("mqtt")
			if err != nil {
				return err
			}
			fwd.Add(1)
			go func() {
				defer fwd.Done()
				forward(receiver, samples)
			}()
		} else if err := bus.Subscribe("mqtt", samples); err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx, samples); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("mqtt publisher stopped", "error", err)
			}
		}()
	}

	// Runs before the publisher disconnects
	drained := false
	drain := func() {
		if drained {
			return
		}
		drained = true
		bus.Close()
		fwd.Wait()
		close(samples)
		wg.Wait()
	}
	defer drain()

	opts := framelatency.Options{
		Config:           cfg.ControllerConfig(),
		Clock:            clk,
		Observer:         &samplebus.Observer{Bus: bus},
		SorterBufferSize: cfg.Reporting.SorterBufferSize,
	}
	if cfg.Reporting.HistogramsEnabled() {
		opts.Histograms = histograms
	}
	if cfg.Reporting.ReportUKM {
		opts.Structured = structured
	}
	p, err := framelatency.New(opts)
	if err != nil {
		return err
	}

	start := time.Now()
	steps, replayErr := Replay(ctx, p, clk, sc)
	if err := p.Close(); err != nil {
		slog.Warn("pipeline close failed", "error", err)
	}

	slog.Info("replay finished",
		"scenario", sc.Name,
		"steps", steps,
		"elapsed", time.Since(start),
	)

	// Drain the publisher before reporting its counters
	busStats := bus.Stats()
	drain()

	h.finish(steps, p.Stats())
	printFinalStats(sc, steps, p.Stats(), rec, busStats, publisher, records)

	if hold && srv != nil && replayErr == nil {
		slog.Info("holding metrics server, interrupt to exit")
		<-ctx.Done()
	}

	return replayErr
}

// forward copies latest-only samples into ch until the receiver closes.
func forward(r samplebus.Receiver, ch chan<- samplebus.Sample) {
	for {
		s, ok := r.Receive()
		if !ok {
			return
		}
		select {
		case ch <- s:
		default:
		}
	}
}
