package stream

import (
	"io"
	"sync"
	"time"

	"codeberg.org/mutker/wvasim/internal/errors"
	"github.com/gorilla/websocket"
)

// FrameSink receives the frames of one session in order.
type FrameSink interface {
	WriteFrame(f Frame) error
}

// LineSink writes frames as CRLF-terminated JSON lines.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) WriteFrame(f Frame) error {
	line, err := f.Encode()
	if err != nil {
		return errors.New().Wrap(ErrEncodeFrame, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// websocketSink sends each frame as one text message, without the line
// terminator.
type websocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (s *websocketSink) WriteFrame(f Frame) error {
	msg, err := f.MarshalJSON()
	if err != nil {
		return errors.New().Wrap(ErrEncodeFrame, err)
	}

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}
