package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/wvasim/internal/catalog"
	"codeberg.org/mutker/wvasim/internal/config"
	"codeberg.org/mutker/wvasim/internal/discovery"
	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/journal"
	"codeberg.org/mutker/wvasim/internal/logger"
	"codeberg.org/mutker/wvasim/internal/metrics"
	"codeberg.org/mutker/wvasim/internal/mqtt"
	"codeberg.org/mutker/wvasim/internal/pid"
	"codeberg.org/mutker/wvasim/internal/registry"
	"codeberg.org/mutker/wvasim/internal/stream"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Str("file", cfg.ConfigFile).Msg("Config loaded")
}

func main() {
	if cfg.PIDFile != "" {
		if err := pid.Write(cfg.PIDFile); err != nil {
			logger.Fatal().Err(err).Msg("failed to write PID file")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	err := run(ctx)
	cancel()
	cleanup()

	if err != nil {
		logger.Error().Err(err).Msg("wvasim stopped with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	errFactory := errors.New()
	log := logger.Default()

	var seed []registry.Subscription
	if cfg.Discovery.SeedSubscriptions {
		seed = registry.DefaultSubscriptions()
	}
	svc := discovery.NewService(
		catalog.Default(),
		catalog.NewSynthesizer(nil, nil),
		registry.NewSubscriptions(seed...),
		registry.NewAlarms(),
	)

	mux := http.NewServeMux()
	var observers stream.Observers
	var requestObserver discovery.RequestObserver

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, err := metrics.New(reg)
		if err != nil {
			return errFactory.Wrap(errors.ErrInitApp, err)
		}
		observers = append(observers, collector)
		requestObserver = collector
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	j, err := journal.New(journal.Config{
		Enabled:      cfg.Journal.Enabled,
		DBPath:       cfg.Journal.DBPath,
		BatchSize:    cfg.Journal.BatchSize,
		BatchTimeout: cfg.Journal.BatchTimeout,
		BackupDir:    cfg.Journal.BackupDir,
	}, log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close journal")
		}
	}()
	observers = append(observers, j)

	if cfg.MQTT.Enabled {
		mqttCfg := mqtt.DefaultConfig()
		mqttCfg.Broker = cfg.MQTT.Broker
		mqttCfg.Topic = cfg.MQTT.Topic
		mqttCfg.Username = cfg.MQTT.Username
		mqttCfg.Password = cfg.MQTT.Password
		mqttCfg.QoS = byte(cfg.MQTT.QoS)
		if cfg.MQTT.ClientID != "" {
			mqttCfg.ClientID = cfg.MQTT.ClientID
		}

		mirror := mqtt.New(mqttCfg, log)
		if err := mirror.Start(); err != nil {
			logger.Warn().Err(err).Msg("MQTT mirror unavailable, continuing without it")
		} else {
			defer mirror.Stop()
			observers = append(observers, mirror)
		}
	}

	engine := stream.NewEngine(stream.Timing{
		SampleDelay: cfg.Stream.SampleDelay,
		CycleDelay:  cfg.Stream.CycleDelay,
	}, log, stream.WithObserver(observers))

	discovery.NewHandler(svc, log.With("discovery"), requestObserver).Mount(mux)
	if cfg.Stream.Websocket {
		mux.Handle(cfg.Stream.WebsocketPath, stream.NewWebsocketHandler(ctx, engine, log))
	}

	httpServer := &http.Server{
		Addr:              cfg.Discovery.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	streamServer := stream.NewServer(cfg.Stream.Addr, engine, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return streamServer.ListenAndServe(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Discovery.Addr).Msg("Discovery API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errFactory.Wrap(errors.ErrServe, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errFactory.Wrap(errors.ErrShutdownFailed, err)
		}
		return nil
	})

	return g.Wait()
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if cfg.PIDFile != "" {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}
	logger.Info().Msg("Exiting...")
}
