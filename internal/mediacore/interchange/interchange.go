// Package interchange writes the temporary raw video and WAV files handed to
// the encoder.
package interchange

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/mediacore"
)

// ErrFrameGeometry is returned when a frame does not match the first frame
// written to a raw video file.
var ErrFrameGeometry = errors.NewStd("frame geometry differs from stream")

// RawVideoWriter packs frames back to back without row padding.
type RawVideoWriter struct {
	file   *os.File
	w      *bufio.Writer
	width  int
	height int
	format mediacore.PixelFormat
	frames int
	bytes  int64
}

// CreateRawVideo creates a raw video file at path.
func CreateRawVideo(path string) (*RawVideoWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw video file: %w", err)
	}
	return &RawVideoWriter{file: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// WriteFrame appends one frame. The first frame fixes the stream geometry.
func (r *RawVideoWriter) WriteFrame(frame *mediacore.Frame) error {
	if r.frames == 0 {
		r.width, r.height, r.format = frame.Width, frame.Height, frame.Format
	} else if frame.Width != r.width || frame.Height != r.height || frame.Format != r.format {
		return fmt.Errorf("%w: got %dx%d %s, stream is %dx%d %s", ErrFrameGeometry,
			frame.Width, frame.Height, frame.Format, r.width, r.height, r.format)
	}

	rowBytes := frame.Width * frame.Format.BytesPerPixel()
	stride := frame.Stride
	if stride < rowBytes {
		stride = rowBytes
	}
	if len(frame.Pix) < stride*(frame.Height-1)+rowBytes {
		return fmt.Errorf("frame buffer too small: %d bytes for %dx%d", len(frame.Pix), frame.Width, frame.Height)
	}

	for y := range frame.Height {
		row := frame.Pix[y*stride : y*stride+rowBytes]
		if _, err := r.w.Write(row); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	r.frames++
	r.bytes += int64(rowBytes * frame.Height)
	return nil
}

// Frames returns the number of frames written.
func (r *RawVideoWriter) Frames() int { return r.frames }

// Bytes returns the number of bytes written.
func (r *RawVideoWriter) Bytes() int64 { return r.bytes }

// Geometry returns the stream dimensions fixed by the first frame.
func (r *RawVideoWriter) Geometry() (width, height int, format mediacore.PixelFormat) {
	return r.width, r.height, r.format
}

// Close flushes and closes the file.
func (r *RawVideoWriter) Close() error {
	flushErr := r.w.Flush()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush raw video file: %w", flushErr)
	}
	return closeErr
}

// WAVWriter streams 16-bit PCM into a WAV file. The header is finalized on Close.
type WAVWriter struct {
	file    *os.File
	enc     *wav.Encoder
	format  mediacore.AudioFormat
	buf     audio.IntBuffer
	bytes   int64
	pending []byte // odd trailing byte carried to the next write
}

// CreateWAV creates a WAV file at path for format.
func CreateWAV(path string, format mediacore.AudioFormat) (*WAVWriter, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, only 16 bit PCM is written", format.BitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}
	return &WAVWriter{
		file:   f,
		enc:    wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1),
		format: format,
		buf: audio.IntBuffer{
			Format:         &audio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// Write appends interleaved little-endian 16-bit samples.
func (w *WAVWriter) Write(pcm []byte) (int, error) {
	n := len(pcm)
	if len(w.pending) > 0 {
		pcm = append(w.pending, pcm...)
		w.pending = nil
	}
	if len(pcm)%2 == 1 {
		w.pending = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	if len(pcm) == 0 {
		return n, nil
	}

	w.buf.Data = PCMToInts(pcm, w.buf.Data[:0])
	if err := w.enc.Write(&w.buf); err != nil {
		return 0, fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	w.bytes += int64(len(pcm))
	return n, nil
}

// Bytes returns the number of PCM bytes written.
func (w *WAVWriter) Bytes() int64 { return w.bytes }

// Close finalizes the header and closes the file.
func (w *WAVWriter) Close() error {
	encErr := w.enc.Close()
	closeErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", encErr)
	}
	return closeErr
}

// PCMToInts converts little-endian 16-bit PCM into dst.
func PCMToInts(pcm []byte, dst []int) []int {
	for i := 0; i+1 < len(pcm); i += 2 {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(pcm[i:]))))
	}
	return dst
}

// WAVInfo is the header of a WAV file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// ReadWAVInfo decodes the header of a WAV file.
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("invalid WAV file %s", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return WAVInfo{}, fmt.Errorf("failed to read WAV duration: %w", err)
	}
	return WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   d.Seconds(),
	}, nil
}
