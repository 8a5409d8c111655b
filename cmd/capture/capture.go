package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/replayclip/internal/conf"
	"github.com/tphakala/replayclip/internal/realtime"
)

// Command creates the capture command, which keeps the replay buffer
// running and saves clips on demand.
func Command(settings *conf.Settings) *cobra.Command {
	var recognizerFeed string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the screen and audio into the replay buffer",
		Long: `Start capturing into the replay buffer. Clips are saved by typing on stdin:
  <enter> or the hotkey   save the default clip length
  clip <duration>         save the last <duration>, e.g. clip 15s
  say <phrase>            evaluate a phrase as if spoken
  record start|stop       start or finish a full session recording
  stats                   log buffer and clip statistics
  quit                    stop capturing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var feed io.Reader
			if recognizerFeed != "" {
				f, err := os.Open(recognizerFeed)
				if err != nil {
					return fmt.Errorf("error opening recognizer feed: %w", err)
				}
				defer f.Close()
				feed = f
			}

			return realtime.Run(ctx, settings, realtime.Options{
				Control:        os.Stdin,
				RecognizerFeed: feed,
			})
		},
	}

	cmd.Flags().StringVar(&recognizerFeed, "recognizer-feed", "", "File or FIFO of speech recognizer JSON lines enabling voice triggers")
	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags binds command line overrides to their config keys.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("output", "", "Directory for saved clips")
	flags.Duration("buffer", 0, "Replay buffer duration, e.g. 30s")
	flags.Float64("fps", 0, "Capture frame rate")
	flags.String("display", "", "Display index to capture")
	flags.String("audio-device", "", "Audio capture device name or ID")
	flags.Bool("audio", true, "Capture audio")
	flags.Bool("synthetic", false, "Use a generated test pattern and tone instead of devices")
	flags.Bool("telemetry", false, "Enable Prometheus telemetry endpoint")
	flags.String("listen", "", "Listen address and port of telemetry endpoint")

	bindings := map[string]string{
		"clip.outputdir":         "output",
		"capture.bufferduration": "buffer",
		"video.framerate":        "fps",
		"video.display":          "display",
		"audio.device":           "audio-device",
		"audio.enabled":          "audio",
		"capture.synthetic":      "synthetic",
		"telemetry.enabled":      "telemetry",
		"telemetry.listen":       "listen",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
