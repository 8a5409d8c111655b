// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func() []string{
		func() []string { return validateCaptureSettings(&settings.Capture) },
		func() []string { return validateVideoSettings(&settings.Video) },
		func() []string { return validateAudioSettings(&settings.Audio) },
		func() []string { return validateClipSettings(&settings.Clip, settings.Capture.BufferDuration) },
		func() []string { return validateTriggerSettings(&settings.Trigger) },
		func() []string { return validateRecordingSettings(&settings.Recording) },
		func() []string { return validateTelemetrySettings(&settings.Telemetry) },
		func() []string { return validateMQTTSettings(&settings.MQTT) },
		func() []string { return validateNotificationSettings(&settings.Notification) },
		func() []string { return validateMonitorSettings(&settings.Monitor) },
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate()...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateCaptureSettings(settings *CaptureSettings) []string {
	var errs []string
	if settings.BufferDuration <= 0 {
		errs = append(errs, "capture buffer duration must be positive")
	}
	if settings.Synthetic && settings.ToneFrequency < 0 {
		errs = append(errs, "synthetic tone frequency must not be negative")
	}
	return errs
}

func validateVideoSettings(settings *VideoSettings) []string {
	var errs []string
	if settings.Width <= 0 || settings.Height <= 0 {
		errs = append(errs, fmt.Sprintf("video resolution must be positive, got %dx%d", settings.Width, settings.Height))
	}
	if settings.OffsetX < 0 || settings.OffsetY < 0 {
		errs = append(errs, "video capture offset must not be negative")
	}
	if settings.FrameRate <= 0 || settings.FrameRate > 240 {
		errs = append(errs, fmt.Sprintf("video frame rate must be between 0 and 240, got %g", settings.FrameRate))
	}
	return errs
}

func validateAudioSettings(settings *AudioSettings) []string {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if settings.SampleRate < 8000 || settings.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("audio sample rate must be between 8000 and 192000, got %d", settings.SampleRate))
	}
	if settings.Channels != 1 && settings.Channels != 2 {
		errs = append(errs, fmt.Sprintf("audio channels must be 1 or 2, got %d", settings.Channels))
	}
	if settings.ChunkFrames <= 0 {
		errs = append(errs, "audio chunk frames must be positive")
	}
	return errs
}

func validateClipSettings(settings *ClipSettings, buffer time.Duration) []string {
	var errs []string
	if strings.TrimSpace(settings.OutputDir) == "" {
		errs = append(errs, "clip output directory must not be empty")
	}
	if settings.DefaultDuration <= 0 {
		errs = append(errs, "clip default duration must be positive")
	} else if buffer > 0 && settings.DefaultDuration > buffer {
		errs = append(errs, fmt.Sprintf("clip default duration %s exceeds the buffer duration %s", settings.DefaultDuration, buffer))
	}
	if settings.DriftTolerance < 0 {
		errs = append(errs, "clip drift tolerance must not be negative")
	}
	if err := settings.Profile.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("clip profile: %v", err))
	}
	return errs
}

func validateTriggerSettings(settings *TriggerSettings) []string {
	var errs []string
	if len(settings.Keywords) == 0 {
		errs = append(errs, "trigger keywords must not be empty")
	}
	for _, k := range settings.Keywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, "trigger keywords must not contain empty entries")
			break
		}
	}
	if settings.Threshold < 0 || settings.Threshold > 100 {
		errs = append(errs, fmt.Sprintf("trigger threshold must be between 0 and 100, got %d", settings.Threshold))
	}
	if settings.Cooldown < 0 {
		errs = append(errs, "trigger cooldown must not be negative")
	}
	if settings.DedupeSize < 0 {
		errs = append(errs, "trigger dedupe size must not be negative")
	}
	if settings.QueueSize <= 0 {
		errs = append(errs, "trigger queue size must be positive")
	}
	return errs
}

func validateRecordingSettings(settings *RecordingSettings) []string {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if strings.TrimSpace(settings.OutputDir) == "" {
		errs = append(errs, "recording output directory must not be empty")
	}
	if settings.FrameQueue < 0 || settings.AudioBufferBytes < 0 {
		errs = append(errs, "recording queue sizes must not be negative")
	}
	return errs
}

func validateTelemetrySettings(settings *TelemetrySettings) []string {
	var errs []string
	if settings.Enabled {
		if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("telemetry listen address %q is invalid: %v", settings.Listen, err))
		}
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		errs = append(errs, "sentry DSN is required when sentry is enabled")
	}
	return errs
}

func validateMQTTSettings(settings *MQTTSettings) []string {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if settings.Broker == "" {
		errs = append(errs, "MQTT broker URL is required when MQTT is enabled")
	} else if u, err := url.Parse(settings.Broker); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("MQTT broker URL %q is invalid", settings.Broker))
	}
	if settings.Topic == "" {
		errs = append(errs, "MQTT topic must not be empty")
	}
	if settings.QoS < 0 || settings.QoS > 2 {
		errs = append(errs, fmt.Sprintf("MQTT QoS must be 0, 1 or 2, got %d", settings.QoS))
	}
	return errs
}

var notificationTypes = []string{"error", "warning", "info"}

func validateNotificationSettings(settings *NotificationSettings) []string {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if !slices.Contains(notificationTypes, settings.MinType) {
		errs = append(errs, fmt.Sprintf("notification min type must be one of %s, got %q", strings.Join(notificationTypes, ", "), settings.MinType))
	}
	for _, t := range append(slices.Clone(settings.Desktop.Types), settings.Push.Types...) {
		if !slices.Contains(notificationTypes, t) {
			errs = append(errs, fmt.Sprintf("unknown notification type %q", t))
		}
	}
	if settings.Push.Enabled && len(settings.Push.URLs) == 0 {
		errs = append(errs, "push notifications require at least one URL")
	}
	return errs
}

func validateMonitorSettings(settings *MonitorSettings) []string {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if settings.Interval < time.Second {
		errs = append(errs, "monitor interval must be at least 1s")
	}
	for name, v := range map[string]float64{"memory": settings.MemoryWarning, "disk": settings.DiskWarning} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Sprintf("monitor %s warning must be between 0 and 100, got %g", name, v))
		}
	}
	if settings.Hysteresis < 0 || settings.Hysteresis > 50 {
		errs = append(errs, "monitor hysteresis must be between 0 and 50")
	}
	return errs
}
