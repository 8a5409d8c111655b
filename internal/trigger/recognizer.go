package trigger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/replayclip/internal/errors"
	"github.com/tphakala/replayclip/internal/logger"
)

// RecognizerResult is one parsed line of recognizer output.
type RecognizerResult struct {
	Text    string // final transcript, empty if none
	Partial bool   // interim hypothesis, not matched
	Err     string // engine-reported failure
}

// ParseRecognizerLine parses a recognizer JSON result such as
// {"text": "clip that"} or {"partial": "cli"}. Plain text lines are accepted
// as final transcripts. ok is false for empty or malformed input.
func ParseRecognizerLine(line []byte) (result RecognizerResult, ok bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return RecognizerResult{}, false
	}
	if !strings.HasPrefix(trimmed, "{") {
		return RecognizerResult{Text: trimmed}, true
	}

	obj, err := jason.NewObjectFromBytes([]byte(trimmed))
	if err != nil {
		return RecognizerResult{}, false
	}

	if msg, err := obj.GetString("error"); err == nil && msg != "" {
		return RecognizerResult{Err: msg}, true
	}
	if text, err := obj.GetString("text"); err == nil {
		text = strings.TrimSpace(text)
		return RecognizerResult{Text: text}, text != ""
	}
	if partial, err := obj.GetString("partial"); err == nil {
		return RecognizerResult{Text: strings.TrimSpace(partial), Partial: true}, true
	}
	return RecognizerResult{}, false
}

// Feed parses one recognizer line and evaluates it. Malformed lines and
// partial results produce a rejected outcome with reason RejectEmpty.
// Engine errors are reported as warnings and also rejected.
func (d *Detector) Feed(line []byte) Outcome {
	res, ok := ParseRecognizerLine(line)
	switch {
	case !ok || res.Partial:
		return Outcome{Kind: KindVoice, Reason: RejectEmpty}
	case res.Err != "":
		d.RecognizerFailed(fmt.Errorf("%s", res.Err))
		return Outcome{Kind: KindVoice, Reason: RejectEmpty}
	default:
		return d.Phrase(res.Text)
	}
}

// RecognizerFailed reports a recognizer engine failure. Hotkey and manual
// triggers keep working.
func (d *Detector) RecognizerFailed(cause error) {
	err := errors.New(cause).
		Component("trigger").
		Category(errors.CategoryTrigger).
		Priority(errors.PriorityLow).
		Context("operation", "recognize").
		Build()
	d.log.Warn("speech recognizer failure", logger.Error(err))
	if d.onWarning != nil {
		d.onWarning(err)
	}
}

// RunFeed reads newline separated recognizer results from r until EOF or ctx
// is cancelled. Read failures are reported as recognizer warnings.
func (d *Detector) RunFeed(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.Feed(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		d.RecognizerFailed(err)
		return err
	}
	return nil
}
