// Package realtime runs the replay service with its event consumers until
// shutdown.
package realtime

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tphakala/replayclip/internal/capture"
	"github.com/tphakala/replayclip/internal/clipper"
	"github.com/tphakala/replayclip/internal/conf"
	"github.com/tphakala/replayclip/internal/encoder"
	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/monitor"
	"github.com/tphakala/replayclip/internal/mqtt"
	"github.com/tphakala/replayclip/internal/notification"
	"github.com/tphakala/replayclip/internal/observability"
	"github.com/tphakala/replayclip/internal/replay"
)

// Shutdown budgets.
const (
	clipDrainTimeout   = 30 * time.Second
	busShutdownTimeout = 5 * time.Second
	recordingTimeout   = 2 * time.Minute
)

// Options are the inputs of a run that do not come from settings.
type Options struct {
	Control        io.Reader              // control lines, nil disables them; closed at shutdown if an io.Closer
	RecognizerFeed io.Reader              // recognizer JSON lines, nil disables voice triggers; closed like Control
	Sources        capture.SourceFactory  // nil selects devices or synthetic sources from settings
	Encoder        encoder.Encoder        // nil runs ffmpeg from settings
	OnClip         func(r clipper.Result) // optional
}

// Run captures until ctx is cancelled or a quit command is read, then shuts
// every component down in reverse order.
func Run(ctx context.Context, settings *conf.Settings, opts Options) error {
	log := logger.Global().Module("realtime")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	// wg tracks the background servers stopped through quitChan
	var wg sync.WaitGroup
	quitChan := make(chan struct{})
	defer func() {
		close(quitChan)
		wg.Wait()
	}()

	if err := startTelemetryEndpoint(&wg, settings, metrics, quitChan); err != nil {
		return err
	}

	bus := events.NewEventBus(events.DefaultConfig())
	defer func() {
		if err := bus.Shutdown(busShutdownTimeout); err != nil {
			log.Warn("event bus shutdown incomplete", logger.Error(err))
		}
	}()

	disconnect, err := startMQTT(ctx, settings, metrics, bus)
	if err != nil {
		return err
	}
	defer disconnect()

	if err := startNotifications(settings, metrics, bus); err != nil {
		return err
	}

	sysMonitor := monitor.NewSystemMonitor(settings.MonitorConfig(), nil, bus, metrics.System)
	sysMonitor.Start()
	defer sysMonitor.Stop()

	enc := opts.Encoder
	if enc == nil {
		path, err := encoder.ResolveBinary(settings.Clip.FFmpegPath)
		if err != nil {
			return err
		}
		enc = encoder.NewFFmpeg(path)
	}

	sources := opts.Sources
	if sources == nil {
		sources = sourceFactory(settings)
	}

	svc, err := replay.New(settings.ReplayConfig(), replay.Dependencies{
		Sources:   sources,
		Encoder:   enc,
		Publisher: bus,
		Metrics:   metrics.Replay,
		Recording: settings.RecordingConfig(),
		OnResult:  opts.OnClip,
	})
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	log.Info("capture running",
		logger.Duration("buffer", settings.Capture.BufferDuration),
		logger.Float64("frame_rate", settings.Video.FrameRate),
		logger.Bool("audio", settings.Audio.Enabled),
		logger.String("output_dir", settings.Clip.OutputDir))

	// inputs tracks the readers; they exit on EOF or once closed at shutdown
	var inputs sync.WaitGroup
	if opts.RecognizerFeed != nil {
		inputs.Go(func() {
			if err := svc.RunRecognizer(ctx, opts.RecognizerFeed); err != nil && ctx.Err() == nil {
				log.Warn("recognizer feed ended", logger.Error(err))
			}
		})
	}
	if opts.Control != nil {
		ctl := &controller{
			target:       svc,
			hotkey:       settings.Trigger.Hotkey,
			recordingDir: settings.Recording.OutputDir,
			stopTimeout:  recordingTimeout,
			quit:         cancel,
			log:          log,
		}
		inputs.Go(func() { ctl.run(ctx, opts.Control) })
	}

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), clipDrainTimeout)
	defer stopCancel()
	stopErr := svc.Stop(stopCtx)
	closeInput(opts.RecognizerFeed)
	closeInput(opts.Control)
	inputs.Wait()
	return stopErr
}

// closeInput unblocks a reader goroutine stuck in Read.
func closeInput(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

// sourceFactory selects generated or device sources.
func sourceFactory(settings *conf.Settings) capture.SourceFactory {
	if settings.Capture.Synthetic {
		return capture.SyntheticFactory{ToneFrequency: settings.Capture.ToneFrequency}
	}
	return capture.DeviceFactory{}
}

func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, metrics *observability.Metrics, quitChan chan struct{}) error {
	if !settings.Telemetry.Enabled {
		return nil
	}
	endpoint, err := observability.NewEndpoint(settings.Telemetry.Listen, metrics)
	if err != nil {
		return fmt.Errorf("error initializing telemetry endpoint: %w", err)
	}
	return endpoint.Start(wg, quitChan)
}

// startMQTT connects the event publisher. A broker that is unreachable at
// startup is logged and retried on later events; configuration errors fail.
func startMQTT(ctx context.Context, settings *conf.Settings, metrics *observability.Metrics, bus *events.EventBus) (func(), error) {
	if !settings.MQTT.Enabled {
		return func() {}, nil
	}
	cfg, kinds := settings.MQTTConfig()
	client, err := mqtt.NewClient(cfg, metrics.MQTT)
	if err != nil {
		return nil, err
	}

	log := logger.Global().Module("realtime")
	if err := client.Connect(ctx); err != nil {
		log.Warn("MQTT broker unavailable, retrying on the next event",
			logger.String("broker", cfg.Broker),
			logger.Error(err))
	}
	if err := bus.RegisterConsumer(mqtt.NewPublisher(client, cfg, kinds)); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client.Disconnect, nil
}

func startNotifications(settings *conf.Settings, metrics *observability.Metrics, bus *events.EventBus) error {
	if !settings.Notification.Enabled {
		return nil
	}
	svc, err := notification.NewService(settings.NotificationConfig(), metrics.Notification, settings.NotificationProviders()...)
	if err != nil {
		return err
	}
	if svc.Providers() == 0 {
		logger.Global().Module("realtime").Debug("no notification providers enabled")
		return nil
	}
	return bus.RegisterConsumer(svc)
}
