package conf

import (
	"github.com/tphakala/replayclip/internal/capture"
	"github.com/tphakala/replayclip/internal/clipper"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/mediacore"
	"github.com/tphakala/replayclip/internal/monitor"
	"github.com/tphakala/replayclip/internal/mqtt"
	"github.com/tphakala/replayclip/internal/notification"
	"github.com/tphakala/replayclip/internal/recording"
	"github.com/tphakala/replayclip/internal/replay"
	"github.com/tphakala/replayclip/internal/trigger"
)

// ReplayConfig returns the capture, clip and trigger configuration of the
// replay service.
func (s *Settings) ReplayConfig() replay.Config {
	tc := trigger.DefaultConfig()
	tc.Keywords = s.Trigger.Keywords
	if len(s.Trigger.Stopwords) > 0 {
		tc.Stopwords = s.Trigger.Stopwords
	}
	tc.Threshold = s.Trigger.Threshold
	tc.Cooldown = s.Trigger.Cooldown
	tc.DedupeSize = s.Trigger.DedupeSize
	tc.QueueSize = s.Trigger.QueueSize
	tc.DefaultDuration = s.Clip.DefaultDuration
	tc.MaxDuration = s.Capture.BufferDuration

	return replay.Config{
		Capture: capture.Config{
			Video: mediacore.VideoConfig{
				DeviceID:  s.Video.Display,
				OffsetX:   s.Video.OffsetX,
				OffsetY:   s.Video.OffsetY,
				Width:     s.Video.Width,
				Height:    s.Video.Height,
				FrameRate: s.Video.FrameRate,
			},
			Audio: mediacore.AudioConfig{
				Enabled:     s.Audio.Enabled,
				DeviceID:    s.Audio.Device,
				SampleRate:  s.Audio.SampleRate,
				Channels:    s.Audio.Channels,
				ChunkFrames: s.Audio.ChunkFrames,
			},
			BufferDuration: s.Capture.BufferDuration,
		},
		Clip: clipper.Config{
			OutputDir:       s.Clip.OutputDir,
			TempDir:         s.Clip.TempDir,
			Profile:         s.Clip.Profile,
			DefaultDuration: s.Clip.DefaultDuration,
			DriftTolerance:  s.Clip.DriftTolerance,
		},
		Trigger: tc,
	}
}

// RecordingConfig returns the recording output settings, or nil when
// recordings are disabled. Frame rate and audio format are filled in by the
// capture controller.
func (s *Settings) RecordingConfig() *recording.Config {
	if !s.Recording.Enabled {
		return nil
	}
	return &recording.Config{
		OutputDir:        s.Recording.OutputDir,
		TempDir:          s.Clip.TempDir,
		Profile:          s.Clip.Profile,
		FrameQueue:       s.Recording.FrameQueue,
		AudioBufferBytes: s.Recording.AudioBufferBytes,
	}
}

// MQTTConfig returns the client configuration and the published event kinds.
func (s *Settings) MQTTConfig() (mqtt.Config, []events.Kind) {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.MQTT.Broker
	if s.MQTT.ClientID != "" {
		cfg.ClientID = s.MQTT.ClientID
	}
	cfg.Username = s.MQTT.Username
	cfg.Password = s.MQTT.Password
	cfg.Topic = s.MQTT.Topic
	cfg.Retain = s.MQTT.Retain
	cfg.QoS = byte(s.MQTT.QoS)

	kinds := mqtt.DefaultKinds
	if len(s.MQTT.Events) > 0 {
		kinds = make([]events.Kind, 0, len(s.MQTT.Events))
		for _, k := range s.MQTT.Events {
			kinds = append(kinds, events.Kind(k))
		}
	}
	return cfg, kinds
}

// NotificationConfig returns the notification service settings.
func (s *Settings) NotificationConfig() notification.Config {
	return notification.Config{
		MinType:      notification.Type(s.Notification.MinType),
		DedupeWindow: s.Notification.DedupeWindow,
		SendTimeout:  s.Notification.SendTimeout,
	}
}

// NotificationProviders builds the configured providers. Disabled providers
// are returned too and skipped by the service.
func (s *Settings) NotificationProviders() []notification.Provider {
	n := s.Notification
	return []notification.Provider{
		notification.NewDesktopProvider(n.Desktop.Enabled, n.Desktop.Types),
		notification.NewShoutrrrProvider("push", n.Push.Enabled, n.Push.URLs, n.Push.Types, n.Push.Timeout),
	}
}

// MonitorConfig returns the resource monitor settings. Disk usage is checked
// on the filesystem holding the clip output directory.
func (s *Settings) MonitorConfig() monitor.Config {
	return monitor.Config{
		Enabled:           s.Monitor.Enabled,
		Interval:          s.Monitor.Interval,
		MemoryWarning:     s.Monitor.MemoryWarning,
		DiskWarning:       s.Monitor.DiskWarning,
		DiskPath:          s.Clip.OutputDir,
		HysteresisPercent: s.Monitor.Hysteresis,
	}
}
