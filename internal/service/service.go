// Package service wires the safety logic to its inputs and outputs. A single
// dispatcher goroutine owns every controller and handles MQTT messages, GPIO
// contact changes and timer ticks strictly in sequence.
package service

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/htbalar/vehicle-safety/internal/config"
	"github.com/htbalar/vehicle-safety/internal/feed"
	"github.com/htbalar/vehicle-safety/internal/gpio"
	"github.com/htbalar/vehicle-safety/internal/journal"
	"github.com/htbalar/vehicle-safety/internal/logger"
	"github.com/htbalar/vehicle-safety/internal/logic"
	"github.com/htbalar/vehicle-safety/internal/mqtt"
	"github.com/htbalar/vehicle-safety/internal/state"
	"github.com/htbalar/vehicle-safety/internal/status"
)

// Kinds recorded in the journal and the status counters.
const (
	KindDoor          = "door"
	KindSeatbelt      = "seatbelt"
	KindLock          = "lock"
	KindUnlock        = "unlock"
	KindAutoLock      = "autolock"
	KindChildLock     = "childlock"
	KindChildEvent    = "child_event"
	KindUnlockForward = "unlock_forward"
	KindSafetyConfig  = "safety_config"
	KindSystem        = "system"
)

var (
	errConfigRequired    = errors.New("service: config is required")
	errPublisherRequired = errors.New("service: publisher is required")
)

// Recorder stores published messages.
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Options holds the dependencies of a Service. Only Config and Publisher are
// required; nil channels never fire.
type Options struct {
	Config    *config.Config
	Publisher mqtt.Publisher
	// Status reports the broker connection. Defaults to Publisher when it
	// implements mqtt.ConnectionStatus.
	Status mqtt.ConnectionStatus

	Inbound <-chan mqtt.Message
	GPIO    gpio.Reader

	AutoLockStore state.Store
	ChildStore    state.Store
	Journal       Recorder
	Tracker       *status.Tracker

	Now       func() time.Time
	Poll      <-chan time.Time
	Heartbeat <-chan time.Time
	Eval      <-chan time.Time
	Signals   <-chan os.Signal
}

// Service is the dispatcher. It is not safe for concurrent use; Run owns it.
type Service struct {
	cfg     *config.Config
	topics  config.Topics
	pub     mqtt.Publisher
	conn    mqtt.ConnectionStatus
	decoder *feed.Decoder

	agg      *logic.Aggregator
	monitor  *logic.SafetyMonitor
	child    *logic.ChildMode
	autoLock *logic.AutoLock

	autoLockStore state.Store
	childStore    state.Store
	journal       Recorder
	tracker       *status.Tracker

	gpio    gpio.Reader
	changes *gpio.Changes

	opts Options
	now  func() time.Time
}

// New builds the controllers and restores the persisted autolock and child
// mode flags. Load failures are logged and the configured defaults used.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errConfigRequired
	}
	if opts.Publisher == nil {
		return nil, errPublisherRequired
	}

	cfg := opts.Config
	s := &Service{
		cfg:           cfg,
		topics:        cfg.MQTT.Topics,
		pub:           opts.Publisher,
		conn:          opts.Status,
		decoder:       feed.NewDecoder(cfg.MQTT.Topics),
		autoLockStore: opts.AutoLockStore,
		childStore:    opts.ChildStore,
		journal:       opts.Journal,
		tracker:       opts.Tracker,
		gpio:          opts.GPIO,
		changes:       gpio.NewChanges(),
		opts:          opts,
		now:           opts.Now,
	}
	if s.conn == nil {
		s.conn, _ = opts.Publisher.(mqtt.ConnectionStatus)
	}
	if s.autoLockStore == nil {
		s.autoLockStore = state.NewMemoryStore()
	}
	if s.childStore == nil {
		s.childStore = state.NewMemoryStore()
	}
	if s.now == nil {
		s.now = time.Now
	}

	ctx = logger.WithName(ctx, "dispatcher")

	autoLockOn := loadFlag(ctx, "autolock", s.autoLockStore, cfg.AutoLock.Enabled)
	childOn := loadFlag(ctx, "child mode", s.childStore, false)

	s.agg = logic.NewAggregator()
	for _, id := range cfg.Safety.Doors {
		s.agg.SetDoor(id, false)
	}
	for _, id := range cfg.Safety.Belts {
		s.agg.SetBelt(id, true)
	}

	s.monitor = logic.NewSafetyMonitor(logic.MonitorConfig{
		ThresholdKph:  cfg.Safety.ThresholdKph,
		DebounceCount: cfg.Safety.DebounceCount,
	}, s.agg)

	s.child = logic.NewChildMode(logic.ChildModeConfig{
		NormalLockThresholdKph: cfg.ChildMode.NormalLockThresholdKph,
		ChildLockThresholdKph:  cfg.ChildMode.ChildLockThresholdKph,
		MaxSpeedKph:            cfg.ChildMode.MaxSpeedKph,
		BlockRearInsideUnlock:  cfg.ChildMode.BlockRearInsideUnlock,
	}, childOn)

	s.autoLock = logic.NewAutoLock(logic.AutoLockConfig{
		LockAboveKph:   cfg.AutoLock.LockAboveKph,
		UnlockBelowKph: cfg.AutoLock.UnlockBelowKph,
	}, autoLockOn, s.child, s.monitor)

	return s, nil
}

func loadFlag(ctx context.Context, name string, store state.Store, def bool) bool {
	v, err := state.LoadOr(ctx, store, def)
	switch {
	case errors.Is(err, state.ErrNotFound):
		logger.DebugKV(ctx, "no persisted flag, using default", "flag", name, "enabled", def)
	case err != nil:
		logger.ErrorKV(ctx, "cannot load persisted flag, using default", "flag", name, "enabled", def, "error", err)
	default:
		logger.InfoKV(ctx, "restored persisted flag", "flag", name, "enabled", v)
	}
	return v
}

// Run publishes the startup messages and dispatches events until a signal
// arrives or ctx is cancelled. A SHUTDOWN event is published on the way out.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "dispatcher")

	s.start(ctx)

	inbound := s.opts.Inbound
	for {
		select {
		case <-ctx.Done():
			s.shutdown(context.WithoutCancel(ctx), "CONTEXT_DONE")
			return nil

		case sig := <-s.opts.Signals:
			logger.Infof(ctx, "received %v, shutting down", sig)
			s.shutdown(ctx, signalName(sig))
			return nil

		case msg, ok := <-inbound:
			if !ok {
				logger.Warnf(ctx, "inbound channel closed")
				inbound = nil
				continue
			}
			s.HandleMessage(ctx, msg)

		case <-s.opts.Poll:
			s.pollGPIO(ctx)

		case <-s.opts.Eval:
			s.publishAlerts(ctx, s.monitor.Tick())
			s.updateTracker()

		case <-s.opts.Heartbeat:
			s.heartbeat(ctx)
		}
	}
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func (s *Service) start(ctx context.Context) {
	if s.gpio != nil && s.tracker != nil {
		s.tracker.SetGPIOLines(len(s.gpio.Contacts()))
	}
	s.updateTracker()

	s.publishSystem(ctx, "STARTUP", "", true)

	payload, err := mqtt.FormatSafetyConfig(s.cfg.Safety.ThresholdKph, s.monitor.DebounceCount())
	if err == nil {
		s.publish(ctx, KindSafetyConfig, mqtt.Message{Topic: s.topics.SafetyConfig, Payload: payload, QoS: 1, Retained: true})
	}

	if s.child.Enabled() && !s.autoLock.Enabled() {
		logger.Infof(ctx, "child mode active at startup, forcing autolock on")
		s.setAutoLock(ctx, true)
	} else {
		s.publishEnabled(ctx, KindAutoLock, s.topics.AutoLockState, s.autoLock.Enabled())
	}
	s.publishEnabled(ctx, KindChildLock, s.topics.ChildLockState, s.child.Enabled())

	logger.InfoKV(ctx, "started",
		"thresholdKph", s.cfg.Safety.ThresholdKph,
		"debounce", s.monitor.DebounceCount(),
		"lockAboveKph", s.autoLock.LockAbove(),
		"unlockBelowKph", s.autoLock.UnlockBelow(),
		"autolock", s.autoLock.Enabled(),
		"childMode", s.child.Enabled(),
	)
}

func (s *Service) shutdown(ctx context.Context, reason string) {
	s.publishSystem(ctx, "SHUTDOWN", reason, true)
}

func (s *Service) heartbeat(ctx context.Context) {
	s.updateTracker()
	s.publishSystem(ctx, "HEARTBEAT", "", false)
}

// HandleMessage decodes and dispatches one inbound MQTT message.
// Malformed messages are logged and dropped.
func (s *Service) HandleMessage(ctx context.Context, msg mqtt.Message) {
	in, err := s.decoder.Decode(msg.Topic, msg.Payload)
	if err != nil {
		switch {
		case msg.Topic == s.topics.AutoLockSet:
			logger.WarnKV(ctx, "invalid autolock config command ignored", "payload", string(msg.Payload))
		case errors.Is(err, feed.ErrUnknownTopic):
			logger.DebugKV(ctx, "message on unhandled topic", "topic", msg.Topic)
		default:
			logger.DebugKV(ctx, "dropping malformed input", "topic", msg.Topic, "error", err)
		}
		return
	}

	s.handle(ctx, in)
	s.updateTracker()
}

func (s *Service) handle(ctx context.Context, in feed.Input) {
	switch in.Kind {
	case feed.KindSpeed:
		s.onSpeed(ctx, in.SpeedKph)

	case feed.KindDoor:
		s.publishAlerts(ctx, s.monitor.OnDoor(in.ID, in.Value))
		s.applyLock(ctx, s.autoLock.OnDoors(s.agg.AnyDoorOpen()))

	case feed.KindBelt:
		s.publishAlerts(ctx, s.monitor.OnBelt(in.ID, in.Value))

	case feed.KindAutoLockSet:
		s.setAutoLock(ctx, in.Value)

	case feed.KindChildLockSet:
		s.setChildMode(ctx, in.Value)

	case feed.KindChildPresence:
		if !s.cfg.ChildMode.PresenceEnables {
			logger.DebugKV(ctx, "child presence ignored", "present", in.Value)
			return
		}
		logger.InfoKV(ctx, "child presence changed", "present", in.Value)
		s.setChildMode(ctx, in.Value)

	case feed.KindUnlockRequest:
		s.onUnlockRequest(ctx, logic.Door(in.ID), in.Source)
	}
}

func (s *Service) onSpeed(ctx context.Context, kph float64) {
	s.publishAlerts(ctx, s.monitor.OnSpeed(kph))
	s.applyLock(ctx, s.autoLock.OnSpeed(kph))
	s.publishChildEvents(ctx, s.child.ObserveSpeed(kph))
}

func (s *Service) pollGPIO(ctx context.Context) {
	if s.gpio == nil {
		return
	}

	readings, err := s.gpio.Read()
	if err != nil {
		logger.WarnKV(ctx, "gpio read failed", "error", err)
		return
	}

	changed := s.changes.Filter(readings)
	for _, r := range changed {
		kind := feed.KindDoor
		if r.Kind == config.KindBelt {
			kind = feed.KindBelt
		}
		logger.DebugKV(ctx, "contact changed", "kind", r.Kind, "id", r.ID, "value", r.Value)
		s.handle(ctx, feed.Input{Kind: kind, ID: r.ID, Value: r.Value})
	}
	if len(changed) > 0 {
		s.updateTracker()
	}
}

func (s *Service) publishAlerts(ctx context.Context, alerts []logic.Alert) {
	for _, a := range alerts {
		payload, err := mqtt.FormatAlert(a)
		if err != nil {
			logger.ErrorKV(ctx, "cannot encode alert", "predicate", a.Predicate, "error", err)
			continue
		}

		topic, kind := s.topics.Door, KindDoor
		if a.Predicate == logic.PredicateSeatbelt {
			topic, kind = s.topics.Seatbelt, KindSeatbelt
		}

		logger.InfoKV(ctx, "alert",
			"predicate", a.Predicate,
			"state", a.State,
			"moving", a.Moving,
			"speedKph", logic.RoundKph(a.SpeedKph),
			"members", a.Members,
		)
		s.publish(ctx, kind, mqtt.Message{Topic: topic, Payload: payload, QoS: 1})

		s.publishChildEvents(ctx, s.child.ObserveAlert(a))
	}
}

func (s *Service) applyLock(ctx context.Context, r logic.LockResult) {
	if r.PendingSet {
		logger.InfoKV(ctx, "lock pending until doors close", "lockAboveKph", s.autoLock.LockAbove())
	}
	if r.PendingExecuted {
		logger.InfoKV(ctx, "doors closed, executing pending lock")
	}

	switch r.Command {
	case logic.CommandLock:
		s.publishCommand(ctx, KindLock, s.topics.LockCommand, r.Command)
	case logic.CommandUnlock:
		s.publishCommand(ctx, KindUnlock, s.topics.UnlockCommand, r.Command)
	}
}

func (s *Service) publishCommand(ctx context.Context, kind, topic string, cmd logic.Command) {
	payload, err := mqtt.FormatCommand(cmd)
	if err != nil {
		logger.ErrorKV(ctx, "cannot encode command", "command", cmd, "error", err)
		return
	}
	speed, _ := s.monitor.CurrentSpeed()
	logger.InfoKV(ctx, "door command", "command", cmd, "speedKph", logic.RoundKph(speed))
	s.publish(ctx, kind, mqtt.Message{Topic: topic, Payload: payload, QoS: 1})
}

// setAutoLock applies an autolock toggle. The state is republished even when
// unchanged; only real changes are persisted.
func (s *Service) setAutoLock(ctx context.Context, enabled bool) {
	if s.autoLock.SetEnabled(enabled) {
		logger.InfoKV(ctx, "autolock toggled", "enabled", enabled)
		if enabled {
			s.autoLock.SyncDoors(s.agg.AnyDoorOpen())
		}
		if err := s.autoLockStore.Save(ctx, enabled); err != nil {
			logger.ErrorKV(ctx, "cannot persist autolock flag", "error", err)
		}
	}
	s.publishEnabled(ctx, KindAutoLock, s.topics.AutoLockState, enabled)
}

// setChildMode applies a child mode toggle. Activation forces autolock on;
// deactivation leaves autolock as it is.
func (s *Service) setChildMode(ctx context.Context, enabled bool) {
	events := s.child.SetEnabled(enabled)
	if events == nil {
		logger.DebugKV(ctx, "child mode unchanged", "enabled", enabled)
		return
	}

	logger.InfoKV(ctx, "child mode toggled", "enabled", enabled)
	if err := s.childStore.Save(ctx, enabled); err != nil {
		logger.ErrorKV(ctx, "cannot persist child mode flag", "error", err)
	}

	if enabled {
		s.setAutoLock(ctx, true)
	}
	s.publishChildEvents(ctx, events)
	s.publishEnabled(ctx, KindChildLock, s.topics.ChildLockState, enabled)
}

func (s *Service) onUnlockRequest(ctx context.Context, door logic.Door, source logic.UnlockSource) {
	allowed, events := s.child.AllowUnlock(door, source)
	s.publishChildEvents(ctx, events)

	if !allowed {
		logger.InfoKV(ctx, "unlock blocked", "door", door.Label(), "source", source)
		return
	}

	payload, err := mqtt.FormatUnlockForward(door, source)
	if err != nil {
		logger.ErrorKV(ctx, "cannot encode unlock forward", "error", err)
		return
	}
	logger.InfoKV(ctx, "unlock allowed", "door", door.Label(), "source", source)
	s.publish(ctx, KindUnlockForward, mqtt.Message{
		Topic:   feed.Fill(s.topics.UnlockForward, string(door)),
		Payload: payload,
		QoS:     1,
	})
}

func (s *Service) publishChildEvents(ctx context.Context, events []logic.ChildEvent) {
	for _, ev := range events {
		payload, err := mqtt.FormatChildEvent(ev)
		if err != nil {
			logger.ErrorKV(ctx, "cannot encode child event", "event", ev.Type, "error", err)
			continue
		}
		logger.InfoKV(ctx, "child mode event", "event", ev.Type)
		s.publish(ctx, KindChildEvent, mqtt.Message{Topic: s.topics.ChildLockEvents, Payload: payload, QoS: 1})
	}
}

func (s *Service) publishEnabled(ctx context.Context, kind, topic string, enabled bool) {
	payload, err := mqtt.FormatEnabled(enabled)
	if err != nil {
		logger.ErrorKV(ctx, "cannot encode flag", "topic", topic, "error", err)
		return
	}
	s.publish(ctx, kind, mqtt.Message{Topic: topic, Payload: payload, QoS: 1, Retained: true})
}

func (s *Service) publishSystem(ctx context.Context, event, reason string, retained bool) {
	ev := mqtt.SystemEvent{
		Timestamp: s.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if s.tracker != nil {
		if s.conn != nil {
			s.tracker.SetMQTTConnected(s.conn.IsConnected())
		}
		ev.RawPayload = status.FormatStatusEvent(s.tracker.Snapshot(), event, reason)
	}

	msg, err := mqtt.SystemMessage(s.topics.System, ev)
	if err != nil {
		logger.ErrorKV(ctx, "cannot encode system event", "event", event, "error", err)
		return
	}
	logger.InfoKV(ctx, "system event", "event", event, "reason", reason)
	s.publish(ctx, KindSystem, msg)
}

// publish sends msg and records it. Failures are logged; the dispatcher never
// stops because of them.
func (s *Service) publish(ctx context.Context, kind string, msg mqtt.Message) {
	if err := s.pub.Publish(msg); err != nil {
		logger.ErrorKV(ctx, "publish failed", "topic", msg.Topic, "error", err)
	}

	if s.tracker != nil {
		s.tracker.Count(kind)
	}

	if s.journal != nil {
		err := s.journal.Append(ctx, journal.Entry{
			Topic:     msg.Topic,
			Kind:      kind,
			Payload:   string(msg.Payload),
			CreatedAt: s.now(),
		})
		if err != nil {
			logger.WarnKV(ctx, "journal append failed", "topic", msg.Topic, "error", err)
		}
	}
}

func (s *Service) updateTracker() {
	if s.tracker == nil {
		return
	}

	speed, known := s.monitor.CurrentSpeed()
	snap := s.monitor.Snapshot()
	lock := s.autoLock.State()

	s.tracker.Update(status.Vehicle{
		SpeedKph:        speed,
		SpeedKnown:      known,
		Moving:          snap.Moving,
		Lock:            lock.Lock,
		PendingLock:     lock.PendingLock,
		AutoLock:        lock.Enabled,
		ChildMode:       s.child.Enabled(),
		DoorAlert:       s.monitor.DoorActive(),
		SeatbeltAlert:   s.monitor.SeatbeltActive(),
		OpenDoors:       snap.OpenDoors,
		UnfastenedBelts: snap.UnfastenedBelts,
	})
	if s.conn != nil {
		s.tracker.SetMQTTConnected(s.conn.IsConnected())
	}
}

// AutoLockState returns the lock controller state.
func (s *Service) AutoLockState() logic.AutoLockState {
	return s.autoLock.State()
}

// ChildModeEnabled reports whether child mode is on.
func (s *Service) ChildModeEnabled() bool {
	return s.child.Enabled()
}
