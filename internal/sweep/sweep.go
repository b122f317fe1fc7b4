// Package sweep periodically expires overdue matches and pushes running
// championships forward, catching anything a request left half done.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/service"
	"github.com/robfig/cron/v3"
)

type Engine interface {
	Sweep(ctx context.Context, now time.Time) (*service.SweepReport, error)
}

type Config struct {
	Enabled  bool
	CronSpec string // standard 5-field spec or a descriptor like "@every 1m"
}

type Sweeper struct {
	c      *cron.Cron
	engine Engine
	config Config
	now    func() time.Time

	mu sync.Mutex // one sweep at a time
}

func New(cfg Config, engine Engine) (*Sweeper, error) {
	s := &Sweeper{
		c:      cron.New(),
		engine: engine,
		config: cfg,
		now:    time.Now,
	}
	_, err := s.c.AddFunc(cfg.CronSpec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce runs a single sweep. It skips the run if another one is still going.
func (s *Sweeper) RunOnce(ctx context.Context) *service.SweepReport {
	if !s.mu.TryLock() {
		slog.Warn("sweep still running, skipping tick")
		return nil
	}
	defer s.mu.Unlock()

	start := s.now()
	report, err := s.engine.Sweep(ctx, start)
	if err != nil {
		slog.Error("sweep failed", "error", err)
	}
	if report != nil {
		slog.Info("sweep done",
			"expired", report.Expired,
			"advanced", report.Advanced,
			"failed", report.Failed,
			"took", time.Since(start))
	}
	return report
}

func (s *Sweeper) Start() {
	if !s.config.Enabled {
		slog.Info("sweeper disabled")
		return
	}
	slog.Info("starting sweeper", "cron", s.config.CronSpec)
	s.c.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}
