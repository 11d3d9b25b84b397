package mqtt

import "codeberg.org/mutker/wvasim/internal/errors"

const (
	// Connection Errors
	ErrConnect = errors.ErrorCode("mqtt_connect_failed")

	// Publish Errors
	ErrPublish   = errors.ErrorCode("mqtt_publish_failed")
	ErrQueueFull = errors.ErrorCode("mqtt_queue_full")
)
