package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/replayclip/cmd/capture"
	"github.com/tphakala/replayclip/cmd/devices"
	"github.com/tphakala/replayclip/internal/buildinfo"
	"github.com/tphakala/replayclip/internal/conf"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "replayclip",
		Short:        "Instant replay clipper for screen and audio capture",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default searches ./config.yaml and the user config directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	captureCmd := capture.Command(settings)
	devicesCmd := devices.Command()
	versionCmd := versionCommand(build)
	rootCmd.AddCommand(captureCmd, devicesCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that need no settings
		if cmd.Name() == devicesCmd.Name() || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, configFile, build)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush(sentryFlushTimeout)
		if err := logger.Global().Close(); err != nil {
			fmt.Printf("error closing log output: %v\n", err)
		}
	}

	return rootCmd
}

// initialize loads settings after flags are parsed, so bound flags take
// precedence over the config file, then sets up logging and telemetry.
func initialize(settings *conf.Settings, configFile string, build *buildinfo.Context) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	centralLogger, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}
	logger.SetGlobal(centralLogger)

	log := logger.Global().Module("main")
	log.Info("replayclip starting",
		logger.String("version", build.GetVersion()),
		logger.String("config", conf.ConfigFileUsed()))

	if settings.Telemetry.Sentry.Enabled {
		if build.SystemID == "" {
			build.SystemID = systemID(log)
		}
		if err := telemetry.InitSentry(telemetry.Config{
			Enabled:     true,
			DSN:         settings.Telemetry.Sentry.DSN,
			Environment: settings.Telemetry.Sentry.Environment,
			Release:     build.Release(),
			SystemID:    build.GetSystemID(),
		}); err != nil {
			log.Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

func systemID(log logger.Logger) string {
	paths, err := conf.GetDefaultConfigPaths()
	if err != nil {
		log.Warn("cannot locate config directory for system ID", logger.Error(err))
		return ""
	}
	id, err := buildinfo.LoadOrCreateSystemID(paths[len(paths)-1])
	if err != nil {
		log.Warn("cannot persist system ID", logger.Error(err))
		return ""
	}
	return id
}

func versionCommand(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "replayclip %s (built %s)\n", build.GetVersion(), build.GetBuildDate())
		},
	}
}
