package interchange

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/replayclip/internal/mediacore"
)

func TestRawVideoStripsStride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "v.raw")
	w, err := CreateRawVideo(path)
	require.NoError(t, err)

	// 2x2 RGBA with 4 bytes of padding per row
	frame := mediacore.Frame{Width: 2, Height: 2, Stride: 12, Format: mediacore.PixelFormatRGBA, Pix: make([]byte, 24)}
	for i := range frame.Pix {
		frame.Pix[i] = byte(i)
	}
	require.NoError(t, w.WriteFrame(&frame))
	require.NoError(t, w.WriteFrame(&frame))

	other := mediacore.Frame{Width: 4, Height: 2, Stride: 16, Format: mediacore.PixelFormatRGBA, Pix: make([]byte, 32)}
	assert.ErrorIs(t, w.WriteFrame(&other), ErrFrameGeometry)

	assert.Equal(t, 2, w.Frames())
	assert.Equal(t, int64(32), w.Bytes())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 32)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 12, 13, 14, 15, 16, 17, 18, 19}, data[:16])
}

func TestRawVideoShortBuffer(t *testing.T) {
	t.Parallel()

	w, err := CreateRawVideo(filepath.Join(t.TempDir(), "v.raw"))
	require.NoError(t, err)
	defer w.Close()

	frame := mediacore.Frame{Width: 2, Height: 2, Stride: 8, Format: mediacore.PixelFormatRGBA, Pix: make([]byte, 10)}
	assert.Error(t, w.WriteFrame(&frame))
}

func TestWAVRoundTripHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.wav")
	format := mediacore.AudioFormat{SampleRate: 8000, Channels: 2, BitDepth: 16}
	w, err := CreateWAV(path, format)
	require.NoError(t, err)

	// one second of stereo audio written in odd sized pieces
	pcm := make([]byte, 8000*4)
	for off := 0; off < len(pcm); off += 333 {
		end := min(off+333, len(pcm))
		n, err := w.Write(pcm[off:end])
		require.NoError(t, err)
		assert.Equal(t, end-off, n)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(len(pcm)), w.Bytes())

	info, err := ReadWAVInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.InDelta(t, 1.0, info.Duration, 0.01)
}

func TestCreateWAVRejectsBitDepth(t *testing.T) {
	t.Parallel()

	_, err := CreateWAV(filepath.Join(t.TempDir(), "a.wav"), mediacore.AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 24})
	assert.Error(t, err)
}

func TestPCMToInts(t *testing.T) {
	t.Parallel()

	got := PCMToInts([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f}, nil)
	assert.Equal(t, []int{1, -1, -32768}, got)
}
