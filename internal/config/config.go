package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the vehicle-safety daemon.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Heartbeat is the interval between HEARTBEAT system events. Zero disables them.
	Heartbeat time.Duration `yaml:"heartbeat"`

	MQTT      MQTT      `yaml:"mqtt"`
	Safety    Safety    `yaml:"safety"`
	AutoLock  AutoLock  `yaml:"autolock"`
	ChildMode ChildMode `yaml:"child_mode"`
	GPIO      GPIO      `yaml:"gpio"`
	Journal   Journal   `yaml:"journal"`
	HTTP      HTTP      `yaml:"http"`
}

// MQTT holds broker connection settings and topic names.
type MQTT struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// BufferSize is how many outbound messages are kept while disconnected.
	BufferSize int    `yaml:"buffer_size"`
	Topics     Topics `yaml:"topics"`
}

// Topics lists every topic the daemon reads or writes.
type Topics struct {
	SpeedInput      string `yaml:"speed_input"`
	SpeedExternal   string `yaml:"speed_external"`
	DoorInput       string `yaml:"door_input"`
	SeatbeltInput   string `yaml:"seatbelt_input"`
	AutoLockSet     string `yaml:"autolock_set"`
	AutoLockState   string `yaml:"autolock_state"`
	ChildLockSet    string `yaml:"childlock_set"`
	ChildLockState  string `yaml:"childlock_state"`
	ChildLockEvents string `yaml:"childlock_events"`
	ChildPresence   string `yaml:"child_presence"`
	UnlockRequest   string `yaml:"unlock_request"`
	UnlockForward   string `yaml:"unlock_forward"`
	Door            string `yaml:"door"`
	Seatbelt        string `yaml:"seatbelt"`
	LockCommand     string `yaml:"lock_command"`
	UnlockCommand   string `yaml:"unlock_command"`
	SafetyConfig    string `yaml:"safety_config"`
	System          string `yaml:"system"`
}

// Safety configures the door and seatbelt monitor.
type Safety struct {
	ThresholdKph  float64 `yaml:"threshold_kph"`
	DebounceCount int     `yaml:"debounce_count"`
	// EvalInterval re-evaluates the monitor periodically. Zero evaluates on input only.
	EvalInterval time.Duration `yaml:"eval_interval"`
	// Doors and Belts are the entities known at startup (closed and fastened).
	Doors []string `yaml:"doors"`
	Belts []string `yaml:"belts"`
}

// AutoLock configures the speed-based door lock.
type AutoLock struct {
	Enabled        bool    `yaml:"enabled"`
	LockAboveKph   float64 `yaml:"lock_above_kph"`
	UnlockBelowKph float64 `yaml:"unlock_below_kph"`
	StateFile      string  `yaml:"state_file"`
}

// ChildMode configures the child-safety policy.
type ChildMode struct {
	NormalLockThresholdKph float64 `yaml:"normal_lock_threshold_kph"`
	ChildLockThresholdKph  float64 `yaml:"child_lock_threshold_kph"`
	MaxSpeedKph            float64 `yaml:"max_speed_kph"`
	BlockRearInsideUnlock  bool    `yaml:"block_rear_inside_unlock"`
	// PresenceEnables lets the child presence topic switch child mode.
	PresenceEnables bool   `yaml:"presence_enables"`
	StateFile       string `yaml:"state_file"`
}

// GPIO configures hard-wired door and belt contacts.
type GPIO struct {
	Chip  string        `yaml:"chip"`
	Poll  time.Duration `yaml:"poll"`
	Lines []GPIOLine    `yaml:"lines,omitempty"`
}

// GPIOLine maps one chip line to a door or belt.
type GPIOLine struct {
	// Kind is "door" or "belt".
	Kind      string `yaml:"kind"`
	ID        string `yaml:"id"`
	Offset    int    `yaml:"offset"`
	ActiveLow bool   `yaml:"active_low"`
}

// Journal configures the SQLite event journal.
type Journal struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// HTTP configures the status server. An empty Addr disables it.
type HTTP struct {
	Addr string `yaml:"addr"`
}

const (
	// DefaultConfigFilename is used when no path is given.
	DefaultConfigFilename = "vehicle-safety.yaml"

	// DefaultFilePermissions is the permission used when writing config files.
	DefaultFilePermissions = 0o600

	// Line kinds.
	KindDoor = "door"
	KindBelt = "belt"
)

var (
	errConfigIsNotSet      = errors.New("configuration is not set")
	errBrokerRequired      = errors.New("mqtt broker must be provided")
	errThresholdsInverted  = errors.New("autolock unlock_below_kph must be lower than lock_above_kph")
	errNegativeThreshold   = errors.New("thresholds must not be negative")
	errChildThreshold      = errors.New("child_lock_threshold_kph must be at least unlock_below_kph")
	errUnknownLineKind     = errors.New("gpio line kind must be door or belt")
	errLineIDRequired      = errors.New("gpio line id must be provided")
	errUnsupportedScheme   = errors.New("unsupported broker scheme")
	errDuplicateGPIOOffset = errors.New("gpio line offset used twice")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Heartbeat: 15 * time.Minute,
		MQTT: MQTT{
			Broker:         "tcp://127.0.0.1:1883",
			ClientID:       "vehicle-safety",
			ConnectTimeout: 10 * time.Second,
			BufferSize:     100,
			Topics:         DefaultTopics(),
		},
		Safety: Safety{
			ThresholdKph:  5,
			DebounceCount: 1,
			Doors:         []string{"frontLeft", "frontRight", "rearLeft", "rearRight"},
			Belts:         []string{"row1_pos1", "row1_pos2"},
		},
		AutoLock: AutoLock{
			Enabled:        true,
			LockAboveKph:   5,
			UnlockBelowKph: 3,
			StateFile:      "autolock.json",
		},
		ChildMode: ChildMode{
			NormalLockThresholdKph: 10,
			ChildLockThresholdKph:  5,
			MaxSpeedKph:            30,
			BlockRearInsideUnlock:  true,
			StateFile:              "childlock.json",
		},
		GPIO: GPIO{
			Chip: "gpiochip0",
			Poll: 100 * time.Millisecond,
		},
		Journal: Journal{
			Path: "vehicle-safety.db",
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
	}
}

// DefaultTopics returns the standard topic layout.
func DefaultTopics() Topics {
	return Topics{
		SpeedInput:      "safety/input/speed_kph",
		SpeedExternal:   "ext/safety/speed",
		DoorInput:       "safety/input/door/+",
		SeatbeltInput:   "safety/input/seatbelt/+",
		AutoLockSet:     "safety/config/autolock/set",
		AutoLockState:   "ext/safety/config/autolock",
		ChildLockSet:    "vehicle/childLock/set",
		ChildLockState:  "ext/safety/config/childLock",
		ChildLockEvents: "ext/safety/childLock/events",
		ChildPresence:   "vehicle/childPresence",
		UnlockRequest:   "ext/doors/+/unlock",
		UnlockForward:   "vehicle/doors/+/unlock",
		Door:            "ext/safety/door",
		Seatbelt:        "ext/safety/seatbelt",
		LockCommand:     "vehicle/lockDoors",
		UnlockCommand:   "vehicle/unlockDoors",
		SafetyConfig:    "ext/safety/config",
		System:          "ext/safety/system",
	}
}

// Load reads configuration from path on top of Default and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// Validate checks cfg and fills zero values with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	def := Default()

	if cfg.MQTT.Broker == "" {
		return errBrokerRequired
	}
	u, err := url.Parse(cfg.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.MQTT.ConnectTimeout <= 0 {
		cfg.MQTT.ConnectTimeout = def.MQTT.ConnectTimeout
	}
	if cfg.MQTT.BufferSize <= 0 {
		cfg.MQTT.BufferSize = def.MQTT.BufferSize
	}
	fillTopics(&cfg.MQTT.Topics, def.MQTT.Topics)

	if cfg.Safety.DebounceCount < 1 {
		cfg.Safety.DebounceCount = 1
	}
	if cfg.Safety.ThresholdKph < 0 || cfg.AutoLock.LockAboveKph < 0 || cfg.AutoLock.UnlockBelowKph < 0 ||
		cfg.ChildMode.ChildLockThresholdKph < 0 || cfg.ChildMode.MaxSpeedKph < 0 {
		return errNegativeThreshold
	}
	if cfg.AutoLock.UnlockBelowKph >= cfg.AutoLock.LockAboveKph && cfg.AutoLock.LockAboveKph != 0 {
		return fmt.Errorf("%w: %.1f >= %.1f", errThresholdsInverted,
			cfg.AutoLock.UnlockBelowKph, cfg.AutoLock.LockAboveKph)
	}
	if cfg.ChildMode.ChildLockThresholdKph < cfg.AutoLock.UnlockBelowKph {
		return fmt.Errorf("%w: %.1f < %.1f", errChildThreshold,
			cfg.ChildMode.ChildLockThresholdKph, cfg.AutoLock.UnlockBelowKph)
	}
	if cfg.ChildMode.MaxSpeedKph == 0 {
		cfg.ChildMode.MaxSpeedKph = def.ChildMode.MaxSpeedKph
	}

	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = def.GPIO.Chip
	}
	if cfg.GPIO.Poll <= 0 {
		cfg.GPIO.Poll = def.GPIO.Poll
	}
	offsets := make(map[int]bool, len(cfg.GPIO.Lines))
	for i, line := range cfg.GPIO.Lines {
		if line.Kind != KindDoor && line.Kind != KindBelt {
			return fmt.Errorf("gpio line %d: %w", i, errUnknownLineKind)
		}
		if line.ID == "" {
			return fmt.Errorf("gpio line %d: %w", i, errLineIDRequired)
		}
		if offsets[line.Offset] {
			return fmt.Errorf("gpio line %d: %w: %d", i, errDuplicateGPIOOffset, line.Offset)
		}
		offsets[line.Offset] = true
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Disabled = true
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	return nil
}

func fillTopics(t *Topics, def Topics) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&t.SpeedInput, def.SpeedInput)
	fill(&t.SpeedExternal, def.SpeedExternal)
	fill(&t.DoorInput, def.DoorInput)
	fill(&t.SeatbeltInput, def.SeatbeltInput)
	fill(&t.AutoLockSet, def.AutoLockSet)
	fill(&t.AutoLockState, def.AutoLockState)
	fill(&t.ChildLockSet, def.ChildLockSet)
	fill(&t.ChildLockState, def.ChildLockState)
	fill(&t.ChildLockEvents, def.ChildLockEvents)
	fill(&t.ChildPresence, def.ChildPresence)
	fill(&t.UnlockRequest, def.UnlockRequest)
	fill(&t.UnlockForward, def.UnlockForward)
	fill(&t.Door, def.Door)
	fill(&t.Seatbelt, def.Seatbelt)
	fill(&t.LockCommand, def.LockCommand)
	fill(&t.UnlockCommand, def.UnlockCommand)
	fill(&t.SafetyConfig, def.SafetyConfig)
	fill(&t.System, def.System)
}
