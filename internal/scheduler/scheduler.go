// Package scheduler runs periodic maintenance over the event log.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clarity/internal/clock"
	eventlogdomain "github.com/smallbiznis/clarity/internal/eventlog/domain"
	obsmetrics "github.com/smallbiznis/clarity/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobRelayPending = "relay_pending"

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log      *zap.Logger
	EventSvc eventlogdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config              `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	eventSvc eventlogdomain.Service
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.EventSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		eventSvc: p.EventSvc,
		metrics:  p.Metrics,
	}, nil
}

// runJob bounds fn by timeout. Running out of time is logged and counted but
// not returned; the next tick picks up where this one stopped.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name, batchSize)
	s.logJobStart(ctx, run)

	err := fn(ctx, run)
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	if err == nil {
		s.metrics.RecordJobRun(ctx, name, "ok")
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJobRun(ctx, name, "timeout")
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJobRun(ctx, name, "error")
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, jobRelayPending, s.cfg.BatchSize, 30*time.Second, s.RelayPendingJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RelayPendingJob re-publishes events still pending after RelayAfter. Events
// older than RelayMaxAge are left alone and surface through the event list.
func (s *Scheduler) RelayPendingJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now()
	sent, err := s.eventSvc.RepublishPending(ctx, eventlogdomain.RepublishRequest{
		After:  now.Add(-s.cfg.RelayMaxAge),
		Before: now.Add(-s.cfg.RelayAfter),
		Limit:  s.cfg.BatchSize,
	})
	run.AddProcessed(sent)
	return err
}
