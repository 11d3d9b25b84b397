package journal

import (
	"time"

	"codeberg.org/mutker/wvasim/internal/stream"
)

// Journal records streaming sessions. It is written to only; nothing is
// ever read back into a running session.
type Journal interface {
	stream.Observer
	Close() error
}

// Repository stores journal records.
type Repository interface {
	RecordCycle(rec CycleRecord) error
	RecordSession(rec SessionRecord) error
	Close() error
}

// CycleRecord is one completed cycle of a session, holding the counters
// the next cycle will emit.
type CycleRecord struct {
	SessionID  string
	Cycle      int
	RecordedAt time.Time
	State      stream.ConnectionState
}

// SessionRecord is one finished session.
type SessionRecord struct {
	ID        string
	Transport string
	Remote    string
	StartedAt time.Time
	EndedAt   time.Time
	Cycles    int
	Frames    int
	EndReason string
}
