package journal

import (
	"time"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"codeberg.org/mutker/wvasim/internal/stream"
)

type service struct {
	repo Repository
	log  logger.Logger
	now  func() time.Time
}

type noopJournal struct{}

// New returns a Journal backed by sqlite, or a no-op Journal when cfg is
// disabled.
func New(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()
	log = log.With("journal")

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Session journal disabled, using no-op journal")
		return noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return NewWithRepository(repo, log), nil
}

// NewWithRepository wraps an existing Repository.
func NewWithRepository(repo Repository, log logger.Logger) Journal {
	return &service{repo: repo, log: log, now: time.Now}
}

func (*service) SessionStarted(stream.SessionInfo) {}

func (*service) FrameSent(stream.SessionInfo, stream.Frame) {}

func (s *service) CycleCompleted(info stream.SessionInfo, cycle int, state stream.ConnectionState) {
	err := s.repo.RecordCycle(CycleRecord{
		SessionID:  info.ID,
		Cycle:      cycle,
		RecordedAt: s.now(),
		State:      state,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session", info.ID).Int("cycle", cycle).Msg("Failed to journal cycle")
	}
}

func (s *service) SessionEnded(info stream.SessionInfo, summary stream.Summary) {
	err := s.repo.RecordSession(SessionRecord{
		ID:        info.ID,
		Transport: info.Transport,
		Remote:    info.Remote,
		StartedAt: info.StartedAt,
		EndedAt:   summary.EndedAt,
		Cycles:    summary.Cycles,
		Frames:    summary.Frames,
		EndReason: string(summary.Reason),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session", info.ID).Msg("Failed to journal session")
	}
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (noopJournal) SessionStarted(stream.SessionInfo) {}
func (noopJournal) FrameSent(stream.SessionInfo, stream.Frame) {}
func (noopJournal) CycleCompleted(stream.SessionInfo, int, stream.ConnectionState) {}
func (noopJournal) SessionEnded(stream.SessionInfo, stream.Summary) {}
func (noopJournal) Close() error { return nil }
