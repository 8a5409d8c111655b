package malgo

import (
	"time"

	"github.com/tphakala/replayclip/internal/mediacore"
)

// chunker re-slices device callback buffers of arbitrary length into fixed
// size chunks. It is only used from the device callback goroutine.
type chunker struct {
	chunkBytes    int
	bytesPerFrame int
	byteDuration  float64 // nanoseconds of audio per byte
	pending       []byte
}

func newChunker(format mediacore.AudioFormat, chunkFrames int) *chunker {
	bpf := format.BytesPerFrame()
	return &chunker{
		chunkBytes:    chunkFrames * bpf,
		bytesPerFrame: bpf,
		byteDuration:  float64(time.Second) / float64(format.SampleRate*bpf),
		pending:       make([]byte, 0, chunkFrames*bpf*2),
	}
}

// write appends data received at now and calls emit for every complete chunk.
// Each chunk is stamped with the time its last byte was acquired, estimated
// from the bytes still pending behind it.
func (c *chunker) write(data []byte, now time.Time, emit func(mediacore.AudioChunk, time.Time)) {
	c.pending = append(c.pending, data...)

	for len(c.pending) >= c.chunkBytes {
		chunk := make([]byte, c.chunkBytes)
		copy(chunk, c.pending[:c.chunkBytes])
		c.pending = c.pending[c.chunkBytes:]

		behind := time.Duration(float64(len(c.pending)) * c.byteDuration)
		emit(mediacore.AudioChunk{Data: chunk, Frames: c.chunkBytes / c.bytesPerFrame}, now.Add(-behind))
	}

	// compact so the backing array does not grow without bound
	if cap(c.pending)-len(c.pending) < c.chunkBytes {
		c.pending = append(make([]byte, 0, c.chunkBytes*2), c.pending...)
	}
}

func (c *chunker) reset() {
	c.pending = c.pending[:0]
}
