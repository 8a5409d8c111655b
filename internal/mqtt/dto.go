package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tphakala/replayclip/internal/events"
)

// EventDTO is the JSON payload published for each event. Field names are
// part of the topic contract consumed by home automation setups.
type EventDTO struct {
	Kind        string  `json:"kind"`
	Component   string  `json:"component"`
	Message     string  `json:"message"`
	Timestamp   string  `json:"timestamp"` // RFC3339 with milliseconds
	Error       string  `json:"error,omitempty"`
	RequestID   string  `json:"requestId,omitempty"`
	TriggerKind string  `json:"triggerKind,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	OutputPath  string  `json:"outputPath,omitempty"`
	Duration    float64 `json:"durationSeconds,omitempty"`
	FrameCount  int     `json:"frameCount,omitempty"`
	ErrorKind   string  `json:"errorKind,omitempty"`
	Stream      string  `json:"stream,omitempty"`
}

// NewEventDTO flattens a bus event into its wire form.
func NewEventDTO(e events.Event) *EventDTO {
	dto := &EventDTO{
		Kind:        string(e.Kind),
		Component:   e.Component,
		Message:     e.Message,
		Timestamp:   e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		RequestID:   stringField(e, events.FieldRequestID),
		TriggerKind: stringField(e, events.FieldTriggerKind),
		Reason:      stringField(e, events.FieldReason),
		OutputPath:  stringField(e, events.FieldOutputPath),
		ErrorKind:   stringField(e, events.FieldErrorKind),
		Stream:      stringField(e, events.FieldStream),
	}
	if e.Err != nil {
		dto.Error = e.Err.Error()
	}
	switch v := e.Field(events.FieldDuration).(type) {
	case float64:
		dto.Duration = v
	case time.Duration:
		dto.Duration = v.Seconds()
	}
	if n, ok := e.Field(events.FieldFrameCount).(int); ok {
		dto.FrameCount = n
	}
	return dto
}

// Marshal encodes the DTO as JSON.
func (dto *EventDTO) Marshal() (string, error) {
	b, err := json.Marshal(dto)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stringField(e events.Event, key string) string {
	switch v := e.Field(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
