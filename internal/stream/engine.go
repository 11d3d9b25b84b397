package stream

import (
	"context"
	"math/rand/v2"
	"time"

	"codeberg.org/mutker/wvasim/internal/logger"
	"github.com/google/uuid"
)

// Engine runs streaming sessions. It holds no per-session state, so one
// Engine serves every transport and connection concurrently.
type Engine struct {
	timing   Timing
	pacer    Pacer
	observer Observer
	now      func() time.Time
	newRand  func() *rand.Rand
	log      logger.Logger
}

type EngineOption func(*Engine)

// WithObserver sets the observer notified of every session event.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithPacer replaces the real timer used between frames.
func WithPacer(p Pacer) EngineOption {
	return func(e *Engine) {
		e.pacer = p
	}
}

// WithClock replaces the wall clock used for frame timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRandSource sets the constructor for each session's random source.
func WithRandSource(newRand func() *rand.Rand) EngineOption {
	return func(e *Engine) {
		e.newRand = newRand
	}
}

func NewEngine(timing Timing, log logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		timing:   timing,
		pacer:    TimerPacer{},
		observer: Observers(nil),
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		log: log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSession streams cycles to sink until ctx ends or the sink fails.
// Each session starts from zeroed counters.
func (e *Engine) RunSession(ctx context.Context, transport, remote string, sink FrameSink) Summary {
	info := SessionInfo{
		ID:        uuid.NewString(),
		Transport: transport,
		Remote:    remote,
		StartedAt: e.now(),
	}
	log := e.log.With("stream")

	log.Info().
		Str("session", info.ID).
		Str("transport", transport).
		Str("remote", remote).
		Msg("Session started")
	e.observer.SessionStarted(info)

	machine := NewMachine(e.timing, e.pacer, e.newRand(), e.now)
	out := &observedSink{sink: sink, info: info, observer: e.observer}

	var err error
	for {
		if err = machine.RunCycle(ctx, out); err != nil {
			break
		}
		e.observer.CycleCompleted(info, machine.Cycles(), machine.State())
	}

	// A cancelled context decides the reason even when a write failed
	// while the connection was being torn down.
	if ctx.Err() != nil {
		err = context.Cause(ctx)
	}

	summary := Summary{
		Cycles:  machine.Cycles(),
		Frames:  out.frames,
		EndedAt: e.now(),
		Reason:  reasonFor(err),
		Err:     err,
	}
	e.observer.SessionEnded(info, summary)

	ev := log.Info()
	if summary.Reason == EndTransport {
		ev = log.Debug()
	}
	ev.Str("session", info.ID).
		Str("reason", string(summary.Reason)).
		Int("cycles", summary.Cycles).
		Int("frames", summary.Frames).
		AnErr("cause", err).
		Msg("Session ended")

	return summary
}
