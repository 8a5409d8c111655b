// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("capture.bufferduration", 30*time.Second)
	viper.SetDefault("capture.synthetic", false)
	viper.SetDefault("capture.tonefrequency", 440.0)

	viper.SetDefault("video.display", "")
	viper.SetDefault("video.offsetx", 0)
	viper.SetDefault("video.offsety", 0)
	viper.SetDefault("video.width", 1920)
	viper.SetDefault("video.height", 1080)
	viper.SetDefault("video.framerate", 30.0)

	viper.SetDefault("audio.enabled", true)
	viper.SetDefault("audio.device", "")
	viper.SetDefault("audio.samplerate", 44100)
	viper.SetDefault("audio.channels", 2)
	viper.SetDefault("audio.chunkframes", 1024)

	viper.SetDefault("clip.outputdir", "clips")
	viper.SetDefault("clip.tempdir", "")
	viper.SetDefault("clip.defaultduration", 30*time.Second)
	viper.SetDefault("clip.drifttolerance", 100*time.Millisecond)
	viper.SetDefault("clip.ffmpegpath", "")
	viper.SetDefault("clip.profile.container", "mp4")
	viper.SetDefault("clip.profile.videocodec", "libx264")
	viper.SetDefault("clip.profile.audiocodec", "aac")
	viper.SetDefault("clip.profile.preset", "veryfast")
	viper.SetDefault("clip.profile.crf", 23)
	viper.SetDefault("clip.profile.audiobitrate", "192k")

	viper.SetDefault("trigger.keywords", []string{"clip", "clips", "clipped", "save that", "clip that"})
	viper.SetDefault("trigger.stopwords", []string{})
	viper.SetDefault("trigger.threshold", 70)
	viper.SetDefault("trigger.cooldown", 2*time.Second)
	viper.SetDefault("trigger.dedupesize", 5)
	viper.SetDefault("trigger.queuesize", 4)
	viper.SetDefault("trigger.hotkey", "c")

	viper.SetDefault("recording.enabled", false)
	viper.SetDefault("recording.outputdir", "recordings")
	viper.SetDefault("recording.framequeue", 120)
	viper.SetDefault("recording.audiobufferbytes", 1<<20)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/replayclip.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size", 50)
	viper.SetDefault("logging.file_output.max_age", 14)
	viper.SetDefault("logging.file_output.max_backups", 5)
	viper.SetDefault("logging.file_output.compress", true)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "127.0.0.1:9090")
	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
	viper.SetDefault("telemetry.sentry.environment", "production")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "replayclip")
	viper.SetDefault("mqtt.topic", "replayclip")
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.events", []string{})

	viper.SetDefault("notification.enabled", true)
	viper.SetDefault("notification.mintype", "info")
	viper.SetDefault("notification.dedupewindow", time.Minute)
	viper.SetDefault("notification.sendtimeout", 10*time.Second)
	viper.SetDefault("notification.desktop.enabled", false)
	viper.SetDefault("notification.desktop.types", []string{"error", "warning"})
	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})
	viper.SetDefault("notification.push.types", []string{"error", "warning", "info"})
	viper.SetDefault("notification.push.timeout", 30*time.Second)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", 30*time.Second)
	viper.SetDefault("monitor.memorywarning", 90.0)
	viper.SetDefault("monitor.diskwarning", 90.0)
	viper.SetDefault("monitor.hysteresis", 5.0)
}
