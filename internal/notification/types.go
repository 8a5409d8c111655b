// Package notification turns bus events into desktop and push notifications.
package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/replayclip/internal/events"
)

// Type represents the type of notification
type Type string

const (
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Priority represents the priority level of a notification
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is a single user-facing message.
type Notification struct {
	ID        string
	Type      Type
	Priority  Priority
	Title     string
	Message   string
	Component string
	Timestamp time.Time
	Metadata  map[string]any
}

// FromEvent maps a bus event to a notification. ok is false for events
// that never produce one.
func FromEvent(e events.Event) (n *Notification, ok bool) {
	n = &Notification{
		ID:        uuid.NewString(),
		Component: e.Component,
		Timestamp: e.Timestamp,
		Metadata:  e.Fields,
	}

	switch e.Kind {
	case events.KindClipCompleted:
		n.Type, n.Priority = TypeInfo, PriorityLow
		n.Title = "Clip saved"
		n.Message = e.Message
		if path, _ := e.Field(events.FieldOutputPath).(string); path != "" {
			n.Message = path
		}
	case events.KindRecordingFinished:
		if e.Err != nil {
			n.Type, n.Priority = TypeError, PriorityMedium
			n.Title = "Recording failed"
			n.Message = withError(e)
			break
		}
		n.Type, n.Priority = TypeInfo, PriorityLow
		n.Title = "Recording saved"
		n.Message = e.Message
		if path, _ := e.Field(events.FieldOutputPath).(string); path != "" {
			n.Message = path
		}
	case events.KindClipFailed:
		n.Type, n.Priority = TypeError, PriorityMedium
		n.Title = "Clip failed"
		n.Message = withError(e)
	case events.KindDeviceFailure:
		n.Type, n.Priority = TypeError, PriorityHigh
		n.Title = "Capture device failed"
		n.Message = withError(e)
	case events.KindResourceWarning:
		n.Type, n.Priority = TypeWarning, PriorityMedium
		n.Title = "Resource warning"
		n.Message = e.Message
	case events.KindSyncWarning:
		n.Type, n.Priority = TypeWarning, PriorityLow
		n.Title = "Audio/video out of sync"
		n.Message = e.Message
	default:
		return nil, false
	}
	return n, true
}

func withError(e events.Event) string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// severity orders types for filtering.
func (t Type) severity() int {
	switch t {
	case TypeError:
		return 2
	case TypeWarning:
		return 1
	default:
		return 0
	}
}
