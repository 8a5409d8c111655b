package clipper

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"
)

const timestampLayout = "20060102_150405"

// Counters are shared by every extractor in the process, so extractors
// writing to the same directories never collide within one second.
var (
	clipCounter atomic.Uint64
	tempCounter atomic.Uint64
)

// namer issues collision free file names.
type namer struct{}

// outputPath returns clip_{YYYYMMDD_HHMMSS}_{counter}.{ext} under dir.
func (namer) outputPath(dir string, at time.Time, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("clip_%s_%d.%s", at.Format(timestampLayout), clipCounter.Add(1), ext))
}

// tempPaths returns the raw video and WAV interchange paths for one extraction.
func (namer) tempPaths(dir string, at time.Time) (videoPath, audioPath string) {
	id := tempCounter.Add(1)
	stamp := at.Format(timestampLayout)
	return filepath.Join(dir, fmt.Sprintf("temp_video_%s_%d.raw", stamp, id)),
		filepath.Join(dir, fmt.Sprintf("temp_audio_%s_%d.wav", stamp, id))
}
