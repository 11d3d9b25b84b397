package stream

import "codeberg.org/mutker/wvasim/internal/errors"

const (
	// Session Errors
	ErrTransportFailure = errors.ErrorCode("stream_transport_failure")
	ErrPeerClosed       = errors.ErrorCode("stream_peer_closed")
	ErrEncodeFrame      = errors.ErrorCode("stream_encode_frame_failed")

	// Server Errors
	ErrListen = errors.ErrorCode("stream_listen_failed")
	ErrAccept = errors.ErrorCode("stream_accept_failed")
)

// EndReason classifies how a session finished.
type EndReason string

const (
	// EndTransport: the peer went away or a write failed.
	EndTransport EndReason = "transport"
	// EndShutdown: the server is stopping.
	EndShutdown EndReason = "shutdown"
)

// reasonFor maps the error that ended a session to an EndReason.
func reasonFor(err error) EndReason {
	if errors.HasCode(err, ErrTransportFailure) || errors.HasCode(err, ErrPeerClosed) {
		return EndTransport
	}
	return EndShutdown
}
