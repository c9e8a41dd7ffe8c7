package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/htbalar/vehicle-safety/internal/config"
	"github.com/htbalar/vehicle-safety/internal/feed"
	"github.com/htbalar/vehicle-safety/internal/gpio"
	"github.com/htbalar/vehicle-safety/internal/journal"
	"github.com/htbalar/vehicle-safety/internal/logger"
	"github.com/htbalar/vehicle-safety/internal/mqtt"
	"github.com/htbalar/vehicle-safety/internal/service"
	"github.com/htbalar/vehicle-safety/internal/state"
	"github.com/htbalar/vehicle-safety/internal/status"
	"github.com/htbalar/vehicle-safety/internal/version"
	"github.com/htbalar/vehicle-safety/internal/web"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 5 * time.Second

func run(ctx context.Context, cfg *config.Config) error {
	ctx = logger.WithName(ctx, "vehicle-safety")
	logger.InfoKV(ctx, "starting", "version", version.Full(), "broker", cfg.MQTT.Broker)

	var reader gpio.Reader
	if len(cfg.GPIO.Lines) > 0 {
		r, err := gpio.Probe(ctx, cfg.GPIO.Chip, cfg.GPIO.Lines)
		if err != nil {
			logger.Warnf(ctx, "gpio unavailable, continuing with MQTT inputs only: %v", err)
		} else {
			defer r.Close()
			reader = r
		}
	}

	var (
		recorder service.Recorder
		events   web.EventSource
	)
	if !cfg.Journal.Disabled {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Warnf(ctx, "event journal disabled: %v", err)
		} else {
			defer j.Close()
			recorder, events = j, j
		}
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	will, err := mqtt.SystemMessage(cfg.MQTT.Topics.System, mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
		Retained:  true,
	})
	if err != nil {
		return fmt.Errorf("build will message: %w", err)
	}

	client, err := mqtt.NewRealClient(ctx, mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID + "-" + uuid.NewString()[:8],
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		BufferSize:     cfg.MQTT.BufferSize,
		Subscriptions:  feed.NewDecoder(cfg.MQTT.Topics).Subscriptions(),
		Will:           &will,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, events)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf(ctx, "http server error: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Infof(ctx, "http status server listening on %s", cfg.HTTP.Addr)
	}

	opts := service.Options{
		Config:        cfg,
		Publisher:     client,
		Inbound:       client.Messages(),
		GPIO:          reader,
		AutoLockStore: state.NewFileStore(cfg.AutoLock.StateFile),
		ChildStore:    state.NewFileStore(cfg.ChildMode.StateFile),
		Journal:       recorder,
		Tracker:       tracker,
		Now:           time.Now,
	}

	if reader != nil {
		poll := time.NewTicker(cfg.GPIO.Poll)
		defer poll.Stop()
		opts.Poll = poll.C
	}
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		opts.Heartbeat = hb.C
	}
	if cfg.Safety.EvalInterval > 0 {
		eval := time.NewTicker(cfg.Safety.EvalInterval)
		defer eval.Stop()
		opts.Eval = eval.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	opts.Signals = sigCh

	svc, err := service.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	return svc.Run(ctx)
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		ThresholdKph:          cfg.Safety.ThresholdKph,
		DebounceCount:         cfg.Safety.DebounceCount,
		LockAboveKph:          cfg.AutoLock.LockAboveKph,
		UnlockBelowKph:        cfg.AutoLock.UnlockBelowKph,
		ChildLockThresholdKph: cfg.ChildMode.ChildLockThresholdKph,
		ChildMaxSpeedKph:      cfg.ChildMode.MaxSpeedKph,
		PollMs:                cfg.GPIO.Poll.Milliseconds(),
		HeartbeatMs:           cfg.Heartbeat.Milliseconds(),
		Broker:                cfg.MQTT.Broker,
		HTTPAddr:              cfg.HTTP.Addr,
	}
}
