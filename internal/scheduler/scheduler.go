// Package scheduler drives the background jobs: the auto-process pass that
// flushes tenant queues whose policy says ready, and the retention sweep
// that drops stale unprocessed intents. Each job takes a redis lease first
// so only one instance runs it per tick.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/votechain/internal/clock"
	"github.com/smallbiznis/votechain/internal/config"
	"github.com/smallbiznis/votechain/internal/lease"
	settlementdomain "github.com/smallbiznis/votechain/internal/settlement/domain"
	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
	voteintentdomain "github.com/smallbiznis/votechain/internal/voteintent/domain"
	"github.com/smallbiznis/votechain/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	autoProcessLeaseKey = "votechain:jobs:autoprocess"
	sweepLeaseKey       = "votechain:jobs:sweep"
	jobLeaseTTL         = 5 * time.Minute
	jobTimeout          = 10 * time.Minute
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Clock         clock.Clock
	TenantRepo    tenantdomain.Repository
	SettlementSvc settlementdomain.Service
	VoteSvc       voteintentdomain.Service
	Locker        *lease.Locker `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           config.Config
	clock         clock.Clock
	tenantRepo    tenantdomain.Repository
	settlementSvc settlementdomain.Service
	voteSvc       voteintentdomain.Service
	locker        *lease.Locker
	cron          *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.TenantRepo == nil || p.SettlementSvc == nil || p.VoteSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config,
		clock:         p.Clock,
		tenantRepo:    p.TenantRepo,
		settlementSvc: p.SettlementSvc,
		voteSvc:       p.VoteSvc,
		locker:        p.Locker,
		cron:          cron.New(),
	}, nil
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.AutoProcessSchedule, func() {
		s.runJob("autoprocess", autoProcessLeaseKey, s.RunAutoProcess)
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		s.runJob("sweep", sweepLeaseKey, s.RunSweep)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("auto_process_schedule", s.cfg.AutoProcessSchedule),
		zap.String("sweep_schedule", s.cfg.SweepSchedule),
	)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runJob(name, leaseKey string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	token, acquired, err := s.locker.TryAcquire(ctx, leaseKey, jobLeaseTTL)
	if err != nil {
		s.log.Warn("job lease acquire failed", zap.String("job", name), zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.locker.Release(ctx, leaseKey, token); err != nil {
			s.log.Warn("job lease release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	started := s.clock.Now()
	if err := fn(ctx); err != nil {
		s.log.Error("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", s.clock.Now().Sub(started)),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("elapsed", s.clock.Now().Sub(started)),
	)
}

// RunAutoProcess walks every tenant that opted in and asks the settlement
// engine whether its queue should flush. A busy or not-ready tenant is
// skipped, never retried within the tick.
func (s *Scheduler) RunAutoProcess(ctx context.Context) error {
	businessIDs, err := s.tenantRepo.ListAutoProcessEnabled(ctx)
	if err != nil {
		return err
	}

	for _, businessID := range businessIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tenantCtx := tenantctx.WithBusinessID(ctx, businessID)
		result, err := s.settlementSvc.AutoProcess(tenantCtx)
		if err != nil {
			if errors.Is(err, settlementdomain.ErrSettlementBusy) {
				continue
			}
			s.log.Warn("auto-process failed",
				zap.String("business_id", businessID.String()),
				zap.Error(err),
			)
			continue
		}
		if result.Triggered {
			s.log.Info("auto-process flushed batch",
				zap.String("business_id", businessID.String()),
				zap.String("batch_id", result.Result.BatchID),
				zap.Int("processed", result.Result.ProcessedCount),
			)
		}
	}
	return nil
}

// RunSweep deletes unprocessed intents older than the configured retention
// window. Processed rows are the audit trail and are never touched.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	maxAge := time.Duration(s.cfg.SweepMaxAgeHours) * time.Hour
	_, err := s.voteSvc.Sweep(ctx, maxAge)
	return err
}
