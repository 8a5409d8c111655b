// conf/config.go settings for the replay clipper
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// CaptureSettings contains the buffer settings shared by both streams.
type CaptureSettings struct {
	BufferDuration time.Duration `yaml:"bufferduration"` // replay window kept in memory
	Synthetic      bool          `yaml:"synthetic"`      // true to use generated test sources instead of devices
	ToneFrequency  float64       `yaml:"tonefrequency"`  // synthetic audio tone in Hz
}

// VideoSettings contains the screen capture settings.
type VideoSettings struct {
	Display   string  `yaml:"display"`   // display index, empty for the primary display
	OffsetX   int     `yaml:"offsetx"`   // capture region origin
	OffsetY   int     `yaml:"offsety"`   // capture region origin
	Width     int     `yaml:"width"`     // capture region width
	Height    int     `yaml:"height"`    // capture region height
	FrameRate float64 `yaml:"framerate"` // frames per second
}

// AudioSettings contains the audio capture settings.
type AudioSettings struct {
	Enabled     bool   `yaml:"enabled"`     // false records video only
	Device      string `yaml:"device"`      // device name or ID substring, empty for the system default
	SampleRate  int    `yaml:"samplerate"`  // Hz
	Channels    int    `yaml:"channels"`    // 1 or 2
	ChunkFrames int    `yaml:"chunkframes"` // sample frames per buffered chunk
}

// ClipSettings contains the clip output settings.
type ClipSettings struct {
	OutputDir       string          `yaml:"outputdir"`       // finished clips
	TempDir         string          `yaml:"tempdir"`         // interchange files, empty for the system temp dir
	DefaultDuration time.Duration   `yaml:"defaultduration"` // clip length when none is requested
	DriftTolerance  time.Duration   `yaml:"drifttolerance"`  // audio/video drift reported as a warning
	FFmpegPath      string          `yaml:"ffmpegpath"`      // empty to look ffmpeg up in PATH
	Profile         encoder.Profile `yaml:"profile"`
}

// TriggerSettings contains the voice and hotkey trigger settings.
type TriggerSettings struct {
	Keywords   []string      `yaml:"keywords"`   // direct match phrases, the first is the primary keyword
	Stopwords  []string      `yaml:"stopwords"`  // empty for the built-in list
	Threshold  int           `yaml:"threshold"`  // fuzzy match acceptance, 0-100
	Cooldown   time.Duration `yaml:"cooldown"`   // minimum spacing between clips
	DedupeSize int           `yaml:"dedupesize"` // recent phrases remembered
	QueueSize  int           `yaml:"queuesize"`  // pending clip requests
	Hotkey     string        `yaml:"hotkey"`     // stdin line that triggers a clip
}

// RecordingSettings contains the full session recording settings.
type RecordingSettings struct {
	Enabled          bool   `yaml:"enabled"`          // true to allow recordings
	OutputDir        string `yaml:"outputdir"`        // finished recordings
	FrameQueue       int    `yaml:"framequeue"`       // frames held while the writer is behind
	AudioBufferBytes int    `yaml:"audiobufferbytes"` // PCM bytes held while the writer is behind
}

// SentrySettings contains error telemetry settings.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`     // true to report errors
	DSN         string `yaml:"dsn"`         // Sentry DSN
	Environment string `yaml:"environment"` // reported environment name
}

// TelemetrySettings contains the metrics endpoint and error reporting settings.
type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled"` // true to serve /metrics
	Listen  string         `yaml:"listen"`  // host:port of the metrics endpoint
	Sentry  SentrySettings `yaml:"sentry"`
}

// MQTTSettings contains the event publishing settings.
type MQTTSettings struct {
	Enabled  bool     `yaml:"enabled"`  // true to publish events
	Broker   string   `yaml:"broker"`   // tcp://host:1883
	ClientID string   `yaml:"clientid"` // client identifier
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Topic    string   `yaml:"topic"`  // prefix, the event kind is appended
	Retain   bool     `yaml:"retain"` // true to retain messages at the broker
	QoS      int      `yaml:"qos"`    // 0, 1 or 2
	Events   []string `yaml:"events"` // event kinds to publish, empty for the default set
}

// DesktopSettings contains the desktop notification settings.
type DesktopSettings struct {
	Enabled bool     `yaml:"enabled"`
	Types   []string `yaml:"types"` // notification types delivered, empty for all
}

// PushSettings contains the shoutrrr push notification settings.
type PushSettings struct {
	Enabled bool          `yaml:"enabled"`
	URLs    []string      `yaml:"urls"`    // shoutrrr service URLs
	Types   []string      `yaml:"types"`   // notification types delivered, empty for all
	Timeout time.Duration `yaml:"timeout"` // per send
}

// NotificationSettings contains the user notification settings.
type NotificationSettings struct {
	Enabled      bool            `yaml:"enabled"`
	MinType      string          `yaml:"mintype"`      // error, warning or info
	DedupeWindow time.Duration   `yaml:"dedupewindow"` // identical notifications inside the window are dropped
	SendTimeout  time.Duration   `yaml:"sendtimeout"`
	Desktop      DesktopSettings `yaml:"desktop"`
	Push         PushSettings    `yaml:"push"`
}

// MonitorSettings contains the resource monitor settings.
type MonitorSettings struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	MemoryWarning float64       `yaml:"memorywarning"` // host memory used percent
	DiskWarning   float64       `yaml:"diskwarning"`   // output filesystem used percent
	Hysteresis    float64       `yaml:"hysteresis"`    // percent below the threshold that clears a warning
}

// Settings contains all configuration options.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug logging

	Capture      CaptureSettings      `yaml:"capture"`
	Video        VideoSettings        `yaml:"video"`
	Audio        AudioSettings        `yaml:"audio"`
	Clip         ClipSettings         `yaml:"clip"`
	Trigger      TriggerSettings      `yaml:"trigger"`
	Recording    RecordingSettings    `yaml:"recording"`
	Logging      logger.LoggingConfig `yaml:"logging"`
	Telemetry    TelemetrySettings    `yaml:"telemetry"`
	MQTT         MQTTSettings         `yaml:"mqtt"`
	Notification NotificationSettings `yaml:"notification"`
	Monitor      MonitorSettings      `yaml:"monitor"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. configFile
// selects an explicit file; empty searches the default config paths and
// writes a default file when none exists.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()
	bindEnvVars()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[len(configPaths)-1])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	logger.Global().Module("conf").Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the file the settings were read from.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing
// file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so the replace is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
