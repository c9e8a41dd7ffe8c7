package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/htbalar/vehicle-safety/internal/config"
	"github.com/htbalar/vehicle-safety/internal/logger"
	"github.com/htbalar/vehicle-safety/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

// flags are the command line overrides applied on top of the config file.
type flags struct {
	configPath string
	logLevel   string
	broker     string
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "vehicle-safety",
		Short: "Run the vehicle safety and door lock daemon.",
		Long: `Subscribes to speed, door and seatbelt topics, publishes door and seatbelt
alerts, locks the doors when the vehicle moves off and unlocks them when it
stops. Child mode lowers the lock threshold and vetoes rear inside unlocks.

Settings are read from a YAML file; built-in defaults are used when the
default file does not exist.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f, cmd.Flags().Changed("config"))
			if err != nil {
				logger.Errorf(cmd.Context(), "load settings: %v", err)
				return err
			}

			if err := run(cmd.Context(), cfg); err != nil {
				logger.Errorf(cmd.Context(), "fatal: %v", err)
				return err
			}
			return nil
		},
	}
	root.SetContext(context.Background())

	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&f.broker, "broker", "", "MQTT broker URL (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	version.AttachCobraVersionCommand(root)

	return root
}

// loadConfig reads the config file and applies flag overrides. A missing
// file falls back to defaults unless the path was given explicitly.
func loadConfig(f *flags, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		cfg = config.Default()
	default:
		return nil, err
	}

	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}
	logger.SetLevel(level)

	return cfg, nil
}
