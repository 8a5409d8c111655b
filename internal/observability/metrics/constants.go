package metrics

import "time"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Stream label values.
const (
	StreamVideo = "video"
	StreamAudio = "audio"
)

// ShutdownTimeout bounds the metrics HTTP server shutdown.
const ShutdownTimeout = 5 * time.Second
