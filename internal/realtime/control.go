package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tphakala/replayclip/internal/logger"
	"github.com/tphakala/replayclip/internal/recording"
	"github.com/tphakala/replayclip/internal/replay"
	"github.com/tphakala/replayclip/internal/trigger"
)

// CommandKind identifies a control line.
type CommandKind int

const (
	CommandHotkey CommandKind = iota
	CommandClip
	CommandPhrase
	CommandRecordStart
	CommandRecordStop
	CommandStats
	CommandQuit
)

// Command is one parsed control line.
type Command struct {
	Kind     CommandKind
	Duration time.Duration // CommandClip, zero for the default length
	Text     string        // CommandPhrase
}

// parseCommand interprets a control line. The configured hotkey and an empty
// line both save a default length clip.
func parseCommand(line, hotkey string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, hotkey) {
		return Command{Kind: CommandHotkey}, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(verb) {
	case "clip":
		if rest == "" {
			return Command{Kind: CommandClip}, nil
		}
		d, err := time.ParseDuration(rest)
		if err != nil {
			return Command{}, fmt.Errorf("invalid clip duration %q: %w", rest, err)
		}
		if d <= 0 {
			return Command{}, fmt.Errorf("clip duration must be positive, got %s", d)
		}
		return Command{Kind: CommandClip, Duration: d}, nil
	case "say":
		if rest == "" {
			return Command{}, fmt.Errorf("say needs a phrase")
		}
		return Command{Kind: CommandPhrase, Text: rest}, nil
	case "record":
		switch strings.ToLower(rest) {
		case "start":
			return Command{Kind: CommandRecordStart}, nil
		case "stop":
			return Command{Kind: CommandRecordStop}, nil
		}
		return Command{}, fmt.Errorf("record expects start or stop, got %q", rest)
	case "stats":
		return Command{Kind: CommandStats}, nil
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", line)
}

// controlTarget is the part of the replay service driven by control lines.
type controlTarget interface {
	Hotkey() trigger.Outcome
	Clip(duration time.Duration) trigger.Outcome
	Phrase(text string) trigger.Outcome
	StartRecording(outputDir string) error
	StopRecording(ctx context.Context) (recording.Result, error)
	Statistics() replay.Statistics
}

// controller executes control lines against the service.
type controller struct {
	target       controlTarget
	hotkey       string
	recordingDir string
	stopTimeout  time.Duration
	quit         context.CancelFunc
	log          logger.Logger
}

// run reads control lines from r until EOF or ctx is done.
func (c *controller) run(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.handle(ctx, line)
		}
	}
}

func (c *controller) handle(ctx context.Context, line string) {
	cmd, err := parseCommand(line, c.hotkey)
	if err != nil {
		c.log.Warn("ignoring control input", logger.Error(err))
		return
	}

	switch cmd.Kind {
	case CommandHotkey:
		c.logOutcome(c.target.Hotkey())
	case CommandClip:
		c.logOutcome(c.target.Clip(cmd.Duration))
	case CommandPhrase:
		c.logOutcome(c.target.Phrase(cmd.Text))
	case CommandRecordStart:
		if err := c.target.StartRecording(c.recordingDir); err != nil {
			c.log.Error("failed to start recording", logger.Error(err))
			return
		}
		c.log.Info("recording started", logger.String("output_dir", c.recordingDir))
	case CommandRecordStop:
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		defer cancel()
		res, err := c.target.StopRecording(stopCtx)
		if err != nil {
			c.log.Error("failed to finish recording", logger.Error(err))
			return
		}
		c.log.Info("recording finished", logger.String("path", res.OutputPath), logger.Duration("duration", res.Duration))
	case CommandStats:
		c.logStatistics(c.target.Statistics())
	case CommandQuit:
		c.quit()
	}
}

func (c *controller) logOutcome(o trigger.Outcome) {
	if o.Accepted {
		c.log.Info("clip requested",
			logger.String("request_id", o.Request.ID.String()),
			logger.Duration("duration", o.Request.Duration))
		return
	}
	c.log.Info("clip request rejected", logger.String("reason", string(o.Reason)))
}

func (c *controller) logStatistics(s replay.Statistics) {
	c.log.Info("replay statistics",
		logger.String("session_id", s.Session.ID),
		logger.String("state", s.Session.State.String()),
		logger.Int("clips_created", s.Clips.ClipsCreated),
		logger.Int("clips_failed", s.Clips.ClipsFailed),
		logger.String("last_clip", s.Clips.LastClipPath),
		logger.Float64("video_buffer", s.Buffers.VideoRatio()),
		logger.Float64("audio_buffer", s.Buffers.AudioRatio()),
		logger.Duration("drift", s.Drift),
		logger.Bool("recording", s.Recording))
}
