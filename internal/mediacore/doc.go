// Package mediacore defines the shared vocabulary of the capture pipeline:
// timestamped samples, video frames, audio chunks, the source interfaces and
// the error taxonomy used by the ring buffers, the clip extractor and the
// capture controller.
//
// # Sources
//
// A FrameSource or AudioSource owns exactly one capture goroutine. Its life
// cycle follows Stopped -> Starting -> Running -> Stopping -> Stopped and is
// tracked by StateMachine. Stop blocks until the capture goroutine has
// returned, so no sample is delivered after Stop completes. Samples are tagged
// with the acquisition time, never the time they reach a buffer.
//
// Delivery is through a buffered channel (Samples). When the consumer falls
// behind, the Emitter drops the newest sample and counts it instead of
// blocking the device.
//
// # Errors
//
// Device failures wrap ErrDeviceNotFound, ErrDeviceBusy or
// ErrDevicePermissionDenied. Clip failures wrap ErrInsufficientData,
// ErrEncodingFailed, ErrClipBusy or ErrClipIO. ErrSyncDrift is advisory and
// only ever logged.
package mediacore
