package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, Validate(cfg))
	require.Equal(t, 5.0, cfg.AutoLock.LockAboveKph)
	require.Equal(t, 3.0, cfg.AutoLock.UnlockBelowKph)
	require.Equal(t, 30.0, cfg.ChildMode.MaxSpeedKph)
	require.True(t, cfg.AutoLock.Enabled)
	require.False(t, cfg.Journal.Disabled)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	tests := map[string]func(*Config){
		"missing broker":     func(c *Config) { c.MQTT.Broker = "" },
		"bad scheme":         func(c *Config) { c.MQTT.Broker = "http://localhost:1883" },
		"inverted band":      func(c *Config) { c.AutoLock.UnlockBelowKph = 6 },
		"negative threshold": func(c *Config) { c.Safety.ThresholdKph = -1 },
		"child below unlock": func(c *Config) { c.ChildMode.ChildLockThresholdKph = 2 },
		"bad line kind": func(c *Config) {
			c.GPIO.Lines = []GPIOLine{{Kind: "window", ID: "x", Offset: 1}}
		},
		"missing line id": func(c *Config) {
			c.GPIO.Lines = []GPIOLine{{Kind: KindDoor, Offset: 1}}
		},
		"duplicate offset": func(c *Config) {
			c.GPIO.Lines = []GPIOLine{
				{Kind: KindDoor, ID: "frontLeft", Offset: 4},
				{Kind: KindBelt, ID: "row1_pos1", Offset: 4},
			}
		},
	}
	for name, mutate := range tests {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MQTT.ClientID = ""
	cfg.MQTT.Topics = Topics{Door: "custom/door"}
	cfg.Safety.DebounceCount = 0
	cfg.Journal.Path = ""
	cfg.GPIO.Poll = 0

	require.NoError(t, Validate(cfg))
	require.Equal(t, "vehicle-safety", cfg.MQTT.ClientID)
	require.Equal(t, "custom/door", cfg.MQTT.Topics.Door)
	require.Equal(t, "ext/safety/seatbelt", cfg.MQTT.Topics.Seatbelt)
	require.Equal(t, 1, cfg.Safety.DebounceCount)
	require.True(t, cfg.Journal.Disabled)
	require.Equal(t, 100*time.Millisecond, cfg.GPIO.Poll)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	contents := `
log_level: debug
safety:
  debounce_count: 2
autolock:
  enabled: false
child_mode:
  max_speed_kph: 40
gpio:
  lines:
    - kind: door
      id: rearLeft
      offset: 17
      active_low: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 2, cfg.Safety.DebounceCount)
	require.Equal(t, 5.0, cfg.Safety.ThresholdKph)
	require.False(t, cfg.AutoLock.Enabled)
	require.Equal(t, 5.0, cfg.AutoLock.LockAboveKph)
	require.Equal(t, 40.0, cfg.ChildMode.MaxSpeedKph)
	require.Equal(t, []GPIOLine{{Kind: KindDoor, ID: "rearLeft", Offset: 17, ActiveLow: true}}, cfg.GPIO.Lines)
	require.Equal(t, "tcp://127.0.0.1:1883", cfg.MQTT.Broker)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safety: [\n"), DefaultFilePermissions))
	_, err = Load(path)
	require.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.MQTT.Broker = "ssl://broker.local:8883"
	cfg.Heartbeat = 30 * time.Second
	cfg.ChildMode.PresenceEnables = true

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())

	require.Error(t, Save(path, nil))
}
