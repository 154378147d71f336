// Package sweeper periodically cancels card orders whose payment never
// arrived, returning their stock to the catalog, and retries refunds the
// payment provider could not take at cancellation time.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StaleCanceller cancels unpaid card orders created before cutoff and
// settles refunds still owed on cancelled orders.
type StaleCanceller interface {
	CancelStale(ctx context.Context, cutoff time.Time) (int, error)
	SettleRefunds(ctx context.Context) (int, error)
}

type Observer interface {
	ObserveSweep(err error, at time.Time)
}

type Sweeper struct {
	orders   StaleCanceller
	ttl      time.Duration
	schedule string
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithSchedule takes a cron spec such as "@every 5m" or "*/10 * * * *".
func WithSchedule(spec string) Option {
	return func(s *Sweeper) { s.schedule = spec }
}

func WithObserver(observer Observer) Option {
	return func(s *Sweeper) { s.observer = observer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(orders StaleCanceller, ttl time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		orders:   orders,
		ttl:      ttl,
		schedule: "@every 5m",
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep cancels orders older than the TTL once, then retries owed refunds.
// It returns the number of orders cancelled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	n, cancelErr := s.orders.CancelStale(ctx, now.Add(-s.ttl))
	refunded, refundErr := s.orders.SettleRefunds(ctx)
	err := errors.Join(cancelErr, refundErr)
	if s.observer != nil {
		s.observer.ObserveSweep(err, now)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "stale order sweep failed", "error", err, "cancelled", n, "refunded", refunded)
		return n, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "cancelled stale unpaid orders", "cancelled", n, "ttl", s.ttl.String())
	}
	if refunded > 0 {
		s.logger.InfoContext(ctx, "settled owed refunds", "refunded", refunded)
	}
	return n, nil
}

// Run sweeps on the schedule until ctx is cancelled. Overlapping runs are
// skipped rather than queued.
func (s *Sweeper) Run(ctx context.Context) error {
	log := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))
	if _, err := c.AddFunc(s.schedule, func() { _, _ = s.Sweep(ctx) }); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "stale order sweeper started", "schedule", s.schedule, "ttl", s.ttl.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
