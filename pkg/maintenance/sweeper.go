// Package maintenance runs the periodic stale-account sweep. Provisioning is
// gateway-first, so a store failure after gateway success leaves PENDING
// external accounts behind; the sweep surfaces them for operators instead of
// silently compensating.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/meshfoundry/idhub/pkg/observability"
	"github.com/meshfoundry/idhub/pkg/store"
)

// Sweeper periodically reports PENDING external accounts older than the
// configured threshold
type Sweeper struct {
	store     store.Store
	metrics   *observability.Metrics
	log       *logrus.Logger
	threshold time.Duration
	cron      *cron.Cron
}

// NewSweeper creates a new Sweeper
func NewSweeper(st store.Store, metrics *observability.Metrics, threshold time.Duration, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.New()
	}
	return &Sweeper{
		store:     st,
		metrics:   metrics,
		threshold: threshold,
		log:       log,
	}
}

// Start schedules the sweep with a cron expression ("@hourly", "0 * * * *")
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.WithError(err).Error("stale account sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"schedule":  schedule,
		"threshold": s.threshold.String(),
	}).Info("stale account sweeper started")
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep lists the stale accounts once and returns how many were found
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.store.ListStaleExternalAccounts(ctx, s.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale external accounts: %w", err)
	}

	for _, account := range stale {
		s.log.WithFields(logrus.Fields{
			"service_account_id": account.ServiceAccountID.String(),
			"name":               account.Name,
			"pending_since":      account.CreatedAt.Format(time.RFC3339),
		}).Warn("external account still pending past threshold")
	}

	if s.metrics != nil {
		s.metrics.StaleExternalAccounts.Set(float64(len(stale)))
	}
	if len(stale) == 0 {
		s.log.Debug("no stale external accounts")
	}
	return len(stale), nil
}
