package stream

import "time"

// Transport names.
const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

// SessionInfo identifies one streaming session.
type SessionInfo struct {
	ID        string
	Transport string
	Remote    string
	StartedAt time.Time
}

// Summary describes a finished session.
type Summary struct {
	Cycles  int
	Frames  int
	EndedAt time.Time
	Reason  EndReason
	Err     error
}

// Observer is notified of session lifecycle events. Calls for a single
// session are sequential; calls for different sessions may be concurrent.
type Observer interface {
	SessionStarted(info SessionInfo)
	FrameSent(info SessionInfo, frame Frame)
	CycleCompleted(info SessionInfo, cycle int, state ConnectionState)
	SessionEnded(info SessionInfo, summary Summary)
}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) SessionStarted(info SessionInfo) {
	for _, obs := range o {
		obs.SessionStarted(info)
	}
}

func (o Observers) FrameSent(info SessionInfo, frame Frame) {
	for _, obs := range o {
		obs.FrameSent(info, frame)
	}
}

func (o Observers) CycleCompleted(info SessionInfo, cycle int, state ConnectionState) {
	for _, obs := range o {
		obs.CycleCompleted(info, cycle, state)
	}
}

func (o Observers) SessionEnded(info SessionInfo, summary Summary) {
	for _, obs := range o {
		obs.SessionEnded(info, summary)
	}
}

// observedSink reports every successfully written frame.
type observedSink struct {
	sink     FrameSink
	info     SessionInfo
	observer Observer
	frames   int
}

func (s *observedSink) WriteFrame(f Frame) error {
	if err := s.sink.WriteFrame(f); err != nil {
		return err
	}
	s.frames++
	s.observer.FrameSent(s.info, f)
	return nil
}
