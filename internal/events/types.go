// Package events provides an asynchronous event bus that decouples capture
// and clip outcomes from notification, publishing and telemetry consumers.
package events

import (
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindClipCompleted     Kind = "clip_completed"
	KindClipFailed        Kind = "clip_failed"
	KindTriggerAccepted   Kind = "trigger_accepted"
	KindDeviceFailure     Kind = "device_failure"
	KindSyncWarning       Kind = "sync_warning"
	KindRecordingFinished Kind = "recording_finished"
	KindResourceWarning   Kind = "resource_warning"
)

// Event is an immutable notification published on the bus.
type Event struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
	Timestamp time.Time
	Fields    map[string]any
}

// New creates an event stamped with the current time.
func New(kind Kind, component, message string) Event {
	return Event{Kind: kind, Component: component, Message: message, Timestamp: time.Now()}
}

// WithField returns a copy of e with key set.
func (e Event) WithField(key string, value any) Event {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	e.Fields = fields
	return e
}

// WithError returns a copy of e carrying err.
func (e Event) WithError(err error) Event {
	e.Err = err
	return e
}

// Field returns a field value or nil.
func (e Event) Field(key string) any {
	return e.Fields[key]
}

// IsFailure reports whether the event describes something going wrong.
func (e Event) IsFailure() bool {
	if e.Err != nil {
		return true
	}
	switch e.Kind {
	case KindClipFailed, KindDeviceFailure, KindSyncWarning, KindResourceWarning:
		return true
	default:
		return false
	}
}

// EventConsumer processes events delivered by the bus.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent handles a single event. It runs on a bus worker and
	// should not block for long.
	ProcessEvent(event Event) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// Well-known field keys.
const (
	FieldRequestID   = "request_id"
	FieldTriggerKind = "trigger_kind"
	FieldReason      = "reason"
	FieldOutputPath  = "output_path"
	FieldDuration    = "duration_seconds"
	FieldFrameCount  = "frame_count"
	FieldErrorKind   = "error_kind"
	FieldStream      = "stream"
	FieldDeviceID    = "device_id"
	FieldDrift       = "drift_seconds"
	FieldMemoryBytes = "memory_bytes"
)
