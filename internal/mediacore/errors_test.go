package mediacore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tphakala/replayclip/internal/errors"
)

func TestDeviceErrorKinds(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("ma_device_init failed")
	tests := []struct {
		kind error
		want string
	}{
		{ErrDeviceNotFound, "not_found"},
		{ErrDeviceBusy, "busy"},
		{ErrDevicePermissionDenied, "permission_denied"},
	}
	for _, tt := range tests {
		err := NewDeviceError(tt.kind, "screen", ":0.1", cause)
		assert.ErrorIs(t, err, tt.kind)
		assert.ErrorIs(t, err, cause)
		assert.True(t, errors.IsCategory(err, errors.CategoryDevice))
		assert.Equal(t, tt.want, DeviceErrorKind(err))
	}
	assert.Equal(t, "other", DeviceErrorKind(cause))
	assert.Empty(t, DeviceErrorKind(nil))
}

func TestClipErrorKinds(t *testing.T) {
	t.Parallel()

	enc := NewClipError(ErrEncodingFailed, "encode", fmt.Errorf("exit status 1"))
	assert.Equal(t, "encoding_failed", ClipErrorKind(enc))
	assert.True(t, errors.IsCategory(enc, errors.CategoryEncoding))

	busy := NewClipError(ErrClipBusy, "extract", nil)
	assert.Equal(t, "busy", ClipErrorKind(busy))
	assert.True(t, errors.IsCategory(busy, errors.CategoryClip))

	assert.Equal(t, "insufficient_data", ClipErrorKind(NewClipError(ErrInsufficientData, "trim", nil)))
	assert.Equal(t, "io_failure", ClipErrorKind(NewClipError(ErrClipIO, "write", nil)))
}

func TestSyncWarning(t *testing.T) {
	t.Parallel()

	err := NewSyncWarning(120*time.Millisecond, 33*time.Millisecond)
	assert.ErrorIs(t, err, ErrSyncDrift)
	assert.True(t, errors.IsCategory(err, errors.CategorySync))
	assert.Contains(t, err.Error(), "120ms")
}
