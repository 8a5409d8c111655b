package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/replayclip/internal/encoder"
)

func validSettings() *Settings {
	return &Settings{
		Capture: CaptureSettings{BufferDuration: 30 * time.Second},
		Video:   VideoSettings{Width: 1280, Height: 720, FrameRate: 30},
		Audio:   AudioSettings{Enabled: true, SampleRate: 48000, Channels: 2, ChunkFrames: 1024},
		Clip: ClipSettings{
			OutputDir:       "clips",
			DefaultDuration: 30 * time.Second,
			Profile:         encoder.DefaultProfile(),
		},
		Trigger: TriggerSettings{Keywords: []string{"clip"}, Threshold: 70, QueueSize: 4},
		Notification: NotificationSettings{
			Enabled: true,
			MinType: "info",
		},
		Monitor: MonitorSettings{Enabled: true, Interval: 30 * time.Second, MemoryWarning: 90, DiskWarning: 90, Hysteresis: 5},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "valid", mutate: func(*Settings) {}},
		{name: "audio disabled skips audio checks", mutate: func(s *Settings) {
			s.Audio = AudioSettings{Enabled: false}
		}},
		{name: "zero buffer", mutate: func(s *Settings) { s.Capture.BufferDuration = 0 }, wantErr: "buffer duration"},
		{name: "zero frame rate", mutate: func(s *Settings) { s.Video.FrameRate = 0 }, wantErr: "frame rate"},
		{name: "negative offset", mutate: func(s *Settings) { s.Video.OffsetX = -1 }, wantErr: "offset"},
		{name: "bad channels", mutate: func(s *Settings) { s.Audio.Channels = 6 }, wantErr: "channels"},
		{name: "clip longer than buffer", mutate: func(s *Settings) { s.Clip.DefaultDuration = time.Minute }, wantErr: "exceeds the buffer"},
		{name: "unknown container", mutate: func(s *Settings) { s.Clip.Profile.Container = "flv" }, wantErr: "clip profile"},
		{name: "no keywords", mutate: func(s *Settings) { s.Trigger.Keywords = nil }, wantErr: "keywords"},
		{name: "blank keyword", mutate: func(s *Settings) { s.Trigger.Keywords = []string{"clip", " "} }, wantErr: "empty entries"},
		{name: "threshold out of range", mutate: func(s *Settings) { s.Trigger.Threshold = 101 }, wantErr: "threshold"},
		{name: "recording without dir", mutate: func(s *Settings) {
			s.Recording = RecordingSettings{Enabled: true}
		}, wantErr: "recording output"},
		{name: "bad listen address", mutate: func(s *Settings) {
			s.Telemetry = TelemetrySettings{Enabled: true, Listen: "9090"}
		}, wantErr: "listen address"},
		{name: "sentry without dsn", mutate: func(s *Settings) { s.Telemetry.Sentry.Enabled = true }, wantErr: "DSN"},
		{name: "mqtt without broker", mutate: func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Topic: "replay"}
		}, wantErr: "broker URL is required"},
		{name: "mqtt bad qos", mutate: func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "tcp://host:1883", Topic: "replay", QoS: 3}
		}, wantErr: "QoS"},
		{name: "unknown notification type", mutate: func(s *Settings) { s.Notification.Desktop.Types = []string{"critical"} }, wantErr: "critical"},
		{name: "push without urls", mutate: func(s *Settings) { s.Notification.Push.Enabled = true }, wantErr: "URL"},
		{name: "monitor interval", mutate: func(s *Settings) { s.Monitor.Interval = time.Millisecond }, wantErr: "interval"},
		{name: "monitor disabled", mutate: func(s *Settings) { s.Monitor = MonitorSettings{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
