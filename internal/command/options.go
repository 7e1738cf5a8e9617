package command

import (
	"time"

	"go.uber.org/zap"
)

type settings struct {
	now        func() time.Time
	logger     *zap.Logger
	transactor Transactor
}

// Option customises a command service.
type Option func(*settings)

// WithClock sets the source of every timestamp the service writes.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithTransactor makes the balance update and its ledger entry commit together.
func WithTransactor(t Transactor) Option {
	return func(s *settings) { s.transactor = t }
}

func newSettings(opts []Option) settings {
	s := settings{
		now:        func() time.Time { return time.Now().UTC() },
		logger:     zap.NewNop(),
		transactor: directTransactor{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.transactor == nil {
		s.transactor = directTransactor{}
	}
	return s
}
