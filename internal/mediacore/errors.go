package mediacore

import (
	"fmt"
	"time"

	"github.com/tphakala/replayclip/internal/errors"
)

// ComponentMediaCore is the error component for shared capture types
const ComponentMediaCore = "mediacore"

// Device errors
var (
	ErrDeviceNotFound         = errors.NewStd("capture device not found")
	ErrDeviceBusy             = errors.NewStd("capture device busy")
	ErrDevicePermissionDenied = errors.NewStd("capture device permission denied")
)

// Clip errors
var (
	ErrInsufficientData = errors.NewStd("insufficient buffered data for clip")
	ErrEncodingFailed   = errors.NewStd("clip encoding failed")
	ErrClipBusy         = errors.NewStd("clip extraction already in progress")
	ErrClipIO           = errors.NewStd("clip file i/o failed")
)

var (
	// ErrSyncDrift is a warning, never returned from a capture or clip operation.
	ErrSyncDrift = errors.NewStd("audio/video drift exceeds tolerance")

	ErrInvalidConfig = errors.NewStd("invalid capture configuration")
)

// NewDeviceError wraps kind (one of the ErrDevice* sentinels) and an optional cause.
func NewDeviceError(kind error, component, deviceID string, cause error) error {
	err := fmt.Errorf("%w: %s", kind, deviceID)
	if cause != nil {
		err = fmt.Errorf("%w: %s: %w", kind, deviceID, cause)
	}
	return errors.New(err).
		Component(component).
		Category(errors.CategoryDevice).
		Context("device_id", deviceID).
		Build()
}

// NewClipError wraps kind (one of the clip sentinels) with the failing operation.
func NewClipError(kind error, operation string, cause error) error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	category := errors.CategoryClip
	if kind == ErrEncodingFailed {
		category = errors.CategoryEncoding
	}
	return errors.New(err).
		Component("clipper").
		Category(category).
		Context("operation", operation).
		Build()
}

// NewSyncWarning reports drift beyond tolerance.
func NewSyncWarning(drift, tolerance time.Duration) error {
	return errors.New(fmt.Errorf("%w: drift %s, tolerance %s", ErrSyncDrift, drift, tolerance)).
		Component("avsync").
		Category(errors.CategorySync).
		Priority(errors.PriorityLow).
		Context("drift_ms", drift.Milliseconds()).
		Build()
}

// DeviceErrorKind returns a stable label for a device error, used in metrics and events.
func DeviceErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeviceNotFound):
		return "not_found"
	case errors.Is(err, ErrDeviceBusy):
		return "busy"
	case errors.Is(err, ErrDevicePermissionDenied):
		return "permission_denied"
	default:
		return "other"
	}
}

// ClipErrorKind returns a stable label for a clip error.
func ClipErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrEncodingFailed):
		return "encoding_failed"
	case errors.Is(err, ErrClipBusy):
		return "busy"
	case errors.Is(err, ErrClipIO):
		return "io_failure"
	default:
		return "other"
	}
}
