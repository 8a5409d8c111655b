package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/mediacore"
)

// tempExt marks output being written; the file is renamed once FFmpeg succeeds.
const tempExt = ".temp"

// maxStderr bounds the diagnostic text kept from a failed run.
const maxStderr = 4096

// FFmpeg runs the ffmpeg binary as a subprocess.
type FFmpeg struct {
	path string
	log  logger.Logger
}

// NewFFmpeg returns an encoder using the binary at path. An empty path is
// resolved from PATH when Encode runs.
func NewFFmpeg(path string) *FFmpeg {
	return &FFmpeg{path: path, log: logger.Global().Module("encoder")}
}

// BinaryName returns the platform specific ffmpeg executable name.
func BinaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// ResolveBinary validates path, or looks ffmpeg up in PATH when empty.
func ResolveBinary(path string) (string, error) {
	if path == "" {
		found, err := exec.LookPath(BinaryName())
		if err != nil {
			return "", fmt.Errorf("FFmpeg is not available: %w", err)
		}
		return found, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("FFmpeg binary %s: %w", path, err)
	}
	return path, nil
}

// Encode runs FFmpeg for job and waits for it to exit. The subprocess is
// killed when ctx is cancelled.
func (f *FFmpeg) Encode(ctx context.Context, job Job) (*Result, error) {
	binary, err := ResolveBinary(f.path)
	if err != nil {
		return nil, mediacore.NewClipError(mediacore.ErrEncodingFailed, "encode", err)
	}

	if err := os.MkdirAll(filepath.Dir(job.Output.Path), 0o755); err != nil {
		return nil, mediacore.NewClipError(mediacore.ErrClipIO, "encode", fmt.Errorf("failed to create output directory: %w", err))
	}

	tempPath := job.Output.Path + tempExt
	args := BuildArgs(job, tempPath)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.Debug("running ffmpeg",
		logger.String("output", job.Output.Path),
		logger.String("args", strings.Join(args, " ")))

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		OutputPath: job.Output.Path,
		ExitCode:   exitCode(cmd, runErr),
		Stderr:     tail(stderr.String(), maxStderr),
		Elapsed:    time.Since(start),
	}

	if runErr != nil {
		_ = os.Remove(tempPath)
		var cause error
		switch {
		case ctx.Err() != nil:
			cause = fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		case result.Stderr != "":
			cause = fmt.Errorf("ffmpeg exited with code %d: %s", result.ExitCode, lastLine(result.Stderr))
		default:
			cause = fmt.Errorf("ffmpeg failed: %w", runErr)
		}
		f.log.Warn("ffmpeg run failed",
			logger.String("output", job.Output.Path),
			logger.Int("exit_code", result.ExitCode),
			logger.Error(cause))
		return result, enrich(mediacore.NewClipError(mediacore.ErrEncodingFailed, "encode", cause), result)
	}

	if err := os.Rename(tempPath, job.Output.Path); err != nil {
		_ = os.Remove(tempPath)
		return result, mediacore.NewClipError(mediacore.ErrEncodingFailed, "finalize",
			fmt.Errorf("failed to rename temporary output: %w", err))
	}

	f.log.Info("encoded media file",
		logger.String("output", job.Output.Path),
		logger.Duration("elapsed", result.Elapsed))
	return result, nil
}

// enrich attaches the exit code to an enhanced error.
func enrich(err error, result *Result) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		if ee.Context == nil {
			ee.Context = map[string]any{}
		}
		ee.Context["exit_code"] = result.ExitCode
	}
	return err
}

// BuildArgs builds the FFmpeg command line writing to outputPath.
func BuildArgs(job Job, outputPath string) []string {
	v := job.Video
	pixFmt := string(v.PixelFormat)
	if pixFmt == "" {
		pixFmt = string(mediacore.PixelFormatRGBA)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-s", fmt.Sprintf("%dx%d", v.Width, v.Height),
		"-framerate", strconv.FormatFloat(v.FrameRate, 'f', -1, 64),
		"-i", v.Path,
	}

	out := job.Output.Profile
	if job.Audio != nil {
		args = append(args, "-i", job.Audio.Path)
	}

	args = append(args, "-c:v", out.VideoCodec)
	if out.Preset != "" {
		args = append(args, "-preset", out.Preset)
	}
	args = append(args,
		"-crf", strconv.Itoa(out.CRF),
		"-pix_fmt", "yuv420p",
	)

	if job.Audio != nil {
		codec := out.AudioCodec
		if codec == "" {
			codec = "aac"
		}
		args = append(args, "-c:a", codec)
		if out.AudioBitrate != "" {
			args = append(args, "-b:a", out.AudioBitrate)
		}
		args = append(args, "-shortest")
	}

	return append(args,
		"-f", out.Muxer(),
		"-y",
		outputPath,
	)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

var _ Encoder = (*FFmpeg)(nil)
