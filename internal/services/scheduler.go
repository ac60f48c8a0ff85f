package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"paygate/internal/models/response_models"
	"paygate/pkg/memcache"
	"paygate/pkg/utils"
)

const (
	alertTickKey    = "tick:alerts"
	downsellTickKey = "tick:downsells"
)

// TickRunner runs one pass of a scheduled task on demand.
type TickRunner interface {
	RunAlerts(ctx context.Context, botID *uuid.UUID, holder string) (response_models.BroadcastSummary, error)
	RunDownsells(ctx context.Context, holder string) (response_models.DownsellScanSummary, error)
}

// Scheduler drives the alert broadcaster and the downsell scan on fixed
// intervals. A manual run and a ticker run of the same task never overlap:
// both take the task's lease first.
type Scheduler struct {
	alerts    AlertServiceInterface
	downsells DownsellServiceInterface
	leases    memcache.LeaseStore

	alertEvery    time.Duration
	downsellEvery time.Duration
	leaseTTL      time.Duration

	log    *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(
	alerts AlertServiceInterface,
	downsells DownsellServiceInterface,
	leases memcache.LeaseStore,
	alertEvery, downsellEvery time.Duration,
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		alerts:        alerts,
		downsells:     downsells,
		leases:        leases,
		alertEvery:    alertEvery,
		downsellEvery: downsellEvery,
		leaseTTL:      5 * time.Minute,
		log:           log.Named("scheduler"),
	}
}

func (s *Scheduler) Start() {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.loop(ctx, "alerts", s.alertEvery, func(ctx context.Context) {
		if _, err := s.RunAlerts(ctx, nil, "ticker"); err != nil {
			s.log.Warn("alert tick", zap.Error(err))
		}
	})
	s.loop(ctx, "downsells", s.downsellEvery, func(ctx context.Context) {
		if _, err := s.RunDownsells(ctx, "ticker"); err != nil {
			s.log.Warn("downsell tick", zap.Error(err))
		}
	})
	s.log.Info("scheduler started",
		zap.Duration("alert_interval", s.alertEvery),
		zap.Duration("downsell_interval", s.downsellEvery))
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				run(ctx)
			case <-ctx.Done():
				s.log.Debug("tick loop stopped", zap.String("task", name))
				return
			}
		}
	}()
}

// RunAlerts runs one broadcaster pass on behalf of holder.
func (s *Scheduler) RunAlerts(ctx context.Context, botID *uuid.UUID, holder string) (response_models.BroadcastSummary, error) {
	holder = holder + ":" + uuid.NewString()
	if !s.leases.Acquire(alertTickKey, holder, s.leaseTTL) {
		return response_models.BroadcastSummary{}, utils.ErrTickInProgress
	}
	defer s.leases.Release(alertTickKey, holder)

	return s.alerts.Broadcast(ctx, botID)
}

// RunDownsells runs one downsell scheduling scan on behalf of holder.
func (s *Scheduler) RunDownsells(ctx context.Context, holder string) (response_models.DownsellScanSummary, error) {
	holder = holder + ":" + uuid.NewString()
	if !s.leases.Acquire(downsellTickKey, holder, s.leaseTTL) {
		return response_models.DownsellScanSummary{}, utils.ErrTickInProgress
	}
	defer s.leases.Release(downsellTickKey, holder)

	return s.downsells.ScheduleDue(ctx)
}
