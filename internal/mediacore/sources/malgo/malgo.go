// Package malgo implements an AudioSource on top of miniaudio through
// github.com/gen2brain/malgo.
package malgo

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
)

const component = "malgo"

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Index   int
	Name    string
	ID      string
	Default bool
}

// Source captures PCM audio from a miniaudio capture device.
type Source struct {
	cfg mediacore.AudioConfig
	log logger.Logger

	state     mediacore.StateMachine
	lifecycle sync.Mutex

	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	emitter   *mediacore.Emitter[mediacore.AudioChunk]
	chunks    *chunker
	accepting atomic.Bool
}

// New creates an audio source for cfg.
func New(cfg mediacore.AudioConfig) *Source {
	return &Source{
		cfg: cfg,
		log: logger.Global().Module("capture").Module(component),
	}
}

// ID returns the configured device selector.
func (s *Source) ID() string {
	if s.cfg.DeviceID == "" {
		return "default"
	}
	return s.cfg.DeviceID
}

// Format returns the delivered PCM format.
func (s *Source) Format() mediacore.AudioFormat {
	return s.cfg.Format()
}

// ChunkDuration returns the playback length of one chunk.
func (s *Source) ChunkDuration() time.Duration {
	return s.cfg.ChunkDuration()
}

// State returns the current life-cycle state.
func (s *Source) State() mediacore.SourceState {
	return s.state.Load()
}

func backends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa, malgo.BackendPulseaudio}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// Start opens the device and begins delivering chunks.
func (s *Source) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateStopped, mediacore.StateStarting) {
		return mediacore.NewDeviceError(mediacore.ErrDeviceBusy, component, s.ID(), nil)
	}

	if err := s.open(); err != nil {
		s.release()
		s.state.Transition(mediacore.StateStarting, mediacore.StateStopped)
		return err
	}

	s.state.Transition(mediacore.StateStarting, mediacore.StateRunning)
	s.log.Info("audio capture started",
		logger.String("device", s.ID()),
		logger.Int("sample_rate", s.cfg.SampleRate),
		logger.Int("channels", s.cfg.Channels))
	return nil
}

func (s *Source) open() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(backends(), malgo.ContextConfig{}, func(message string) {
		s.log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(), fmt.Errorf("audio context init: %w", err))
	}
	s.malgoCtx = mctx

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(), err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if s.cfg.DeviceID != "" {
		info, ok := selectDevice(infos, s.cfg.DeviceID)
		if !ok {
			return mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.cfg.DeviceID, nil)
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	} else if len(infos) == 0 {
		return mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(), fmt.Errorf("no capture devices"))
	}

	s.emitter = mediacore.NewEmitter[mediacore.AudioChunk](mediacore.DefaultSampleBuffer)
	s.chunks = newChunker(s.cfg.Format(), s.cfg.ChunkFrames)
	emitter := s.emitter
	chunks := s.chunks

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if !s.accepting.Load() {
				return
			}
			chunks.write(input, time.Now(), func(c mediacore.AudioChunk, at time.Time) {
				emitter.Emit(c, at)
			})
		},
		Stop: func() {
			// miniaudio stopped the device without Stop being called
			if s.accepting.Load() {
				s.log.Warn("audio device stopped unexpectedly", logger.String("device", s.ID()))
				emitter.ReportError(mediacore.NewDeviceError(mediacore.ErrDeviceNotFound, component, s.ID(),
					fmt.Errorf("device stopped unexpectedly")))
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return mediacore.NewDeviceError(classifyInitError(err), component, s.ID(), err)
	}
	s.device = device

	s.accepting.Store(true)
	if err := device.Start(); err != nil {
		s.accepting.Store(false)
		return mediacore.NewDeviceError(classifyInitError(err), component, s.ID(), err)
	}
	return nil
}

// release frees whatever open managed to allocate.
func (s *Source) release() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.malgoCtx != nil {
		_ = s.malgoCtx.Uninit()
		s.malgoCtx.Free()
		s.malgoCtx = nil
	}
}

// Stop stops the device. miniaudio does not invoke the data callback after
// device.Stop returns.
func (s *Source) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.state.Transition(mediacore.StateRunning, mediacore.StateStopping) {
		return nil
	}

	s.accepting.Store(false)
	var stopErr error
	if err := s.device.Stop(); err != nil {
		stopErr = mediacore.NewDeviceError(mediacore.ErrDeviceBusy, component, s.ID(), err)
	}
	s.release()
	s.chunks.reset()
	s.emitter.Close()
	s.state.Transition(mediacore.StateStopping, mediacore.StateStopped)

	s.log.Info("audio capture stopped",
		logger.Uint64("chunks", s.emitter.Delivered()),
		logger.Uint64("dropped", s.emitter.Dropped()))
	return stopErr
}

// Samples returns the chunk channel of the current run.
func (s *Source) Samples() <-chan mediacore.AudioSample {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Samples()
}

// Errors returns the error channel of the current run.
func (s *Source) Errors() <-chan error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Errors()
}

// ListDevices enumerates capture devices.
func ListDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(backends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			Index:   i,
			Name:    infos[i].Name(),
			ID:      decodeID(infos[i].ID.String()),
			Default: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

func selectDevice(infos []malgo.DeviceInfo, selector string) (malgo.DeviceInfo, bool) {
	for i := range infos {
		if matchesDevice(decodeID(infos[i].ID.String()), infos[i].Name(), selector) {
			return infos[i], true
		}
	}
	return malgo.DeviceInfo{}, false
}

// matchesDevice accepts an exact decoded ID or a case-insensitive name substring.
func matchesDevice(decodedID, name, selector string) bool {
	if selector == "" {
		return false
	}
	return decodedID == selector || strings.Contains(strings.ToLower(name), strings.ToLower(selector))
}

// decodeID turns miniaudio's hex encoded device ID into readable text. IDs
// that are not valid hex are returned unchanged.
func decodeID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(raw), "\x00")
}

// classifyInitError maps backend error text to a device error kind.
func classifyInitError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "access denied"), strings.Contains(msg, "not permitted"):
		return mediacore.ErrDevicePermissionDenied
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "no such"), strings.Contains(msg, "not found"):
		return mediacore.ErrDeviceNotFound
	default:
		return mediacore.ErrDeviceBusy
	}
}

var _ mediacore.AudioSource = (*Source)(nil)
