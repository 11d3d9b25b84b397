package stream

import (
	"context"
	"math/rand/v2"
	"time"

	"codeberg.org/mutker/wvasim/internal/catalog"
	"codeberg.org/mutker/wvasim/internal/errors"
)

const (
	DefaultSampleDelay = 200 * time.Millisecond
	DefaultCycleDelay  = 10 * time.Second
)

// Timing holds the two delays of a cycle: SampleDelay follows each of the
// first three frames, CycleDelay follows the fourth.
type Timing struct {
	SampleDelay time.Duration
	CycleDelay  time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		SampleDelay: DefaultSampleDelay,
		CycleDelay:  DefaultCycleDelay,
	}
}

// Pacer blocks for d, returning early with the context's error when ctx
// ends first.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerPacer waits on a real timer.
type TimerPacer struct{}

func (TimerPacer) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Machine drives the frame cycle of a single session. It is not safe for
// concurrent use; every session owns its own Machine.
type Machine struct {
	state  ConnectionState
	cycles int
	timing Timing
	pacer  Pacer
	rnd    *rand.Rand
	now    func() time.Time
}

func NewMachine(timing Timing, pacer Pacer, rnd *rand.Rand, now func() time.Time) *Machine {
	if pacer == nil {
		pacer = TimerPacer{}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Machine{
		timing: timing,
		pacer:  pacer,
		rnd:    rnd,
		now:    now,
	}
}

func (m *Machine) State() ConnectionState {
	return m.state
}

// Cycles is the number of completed cycles.
func (m *Machine) Cycles() int {
	return m.cycles
}

// RunCycle emits the four frames of the current cycle to sink, pacing them
// with the machine's Timing, then advances the counters. The returned
// error carries ErrTransportFailure when the sink failed; otherwise it is
// the context's error. Counters only advance once the full cycle has been
// emitted and waited out.
func (m *Machine) RunCycle(ctx context.Context, sink FrameSink) error {
	ts := catalog.FormatTimestamp(m.now())

	for i, frame := range m.state.Frames(ts) {
		if err := sink.WriteFrame(frame); err != nil {
			return errors.New().Wrap(ErrTransportFailure, err)
		}

		delay := m.timing.SampleDelay
		if i == len(FieldOrder)-1 {
			delay = m.timing.CycleDelay
		}
		if err := m.pacer.Wait(ctx, delay); err != nil {
			return err
		}
	}

	m.Advance()
	return nil
}

// Frames returns the four frames for the current state stamped with ts.
func (m *Machine) Frames(ts string) [4]Frame {
	return m.state.Frames(ts)
}

// Advance moves the machine to the next cycle without emitting anything.
func (m *Machine) Advance() {
	m.state.Advance(m.rnd)
	m.cycles++
}

// Run emits cycles until the sink fails or ctx is cancelled.
func (m *Machine) Run(ctx context.Context, sink FrameSink) error {
	for {
		if err := m.RunCycle(ctx, sink); err != nil {
			return err
		}
	}
}
