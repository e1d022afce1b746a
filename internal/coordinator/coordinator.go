// Package coordinator owns the set of tracked portfolios and their
// refresh loops.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/investing"
	"investing_monitor/internal/models"
	"investing_monitor/internal/repository"
	"investing_monitor/internal/scheduler"
)

// Fetcher retrieves the current snapshot for one portfolio.
type Fetcher interface {
	Fetch(ctx context.Context, portfolioID int64) (*models.PortfolioSnapshot, error)
}

// Coordinator manages one scheduler per tracked portfolio and persists
// every outcome: snapshots on success, error state and notifications on
// failure, fetch history always.
type Coordinator struct {
	fetcher    Fetcher
	portfolios *repository.PortfolioRepository
	snapshots  *repository.SnapshotRepository
	notifs     *repository.NotificationRepository
	history    *repository.FetchHistoryRepository
	loc        *time.Location

	mu      sync.Mutex
	entries map[int64]*entry
	ctx     context.Context
	started bool
}

type entry struct {
	cfg   *models.PortfolioConfig
	sched *scheduler.Scheduler
}

// PortfolioStatus combines a portfolio's configuration with its live
// scheduler state and latest snapshot, for the status API.
type PortfolioStatus struct {
	Config   models.PortfolioConfig    `json:"config"`
	Schedule models.ScheduleState      `json:"schedule"`
	Snapshot *models.PortfolioSnapshot `json:"snapshot,omitempty"`
}

// Reading is one portfolio's metric set keyed by its identifier-safe name,
// the shape consumed by home-automation integrations.
type Reading struct {
	Name     string                   `json:"name"`
	Snapshot models.PortfolioSnapshot `json:"snapshot"`
}

// New creates a coordinator.
func New(fetcher Fetcher, portfolios *repository.PortfolioRepository,
	snapshots *repository.SnapshotRepository, notifs *repository.NotificationRepository,
	history *repository.FetchHistoryRepository, loc *time.Location) *Coordinator {
	return &Coordinator{
		fetcher:    fetcher,
		portfolios: portfolios,
		snapshots:  snapshots,
		notifs:     notifs,
		history:    history,
		loc:        loc,
		entries:    make(map[int64]*entry),
	}
}

// Start loads the tracked portfolios from storage and launches their
// refresh loops.
func (c *Coordinator) Start(ctx context.Context) error {
	configs, err := c.portfolios.GetAll()
	if err != nil {
		return fmt.Errorf("loading portfolios: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
	c.started = true

	for _, cfg := range configs {
		c.launch(cfg)
	}
	log.Printf("[Coordinator] Started with %d portfolio(s)", len(configs))
	return nil
}

// Stop shuts down every refresh loop and waits for in-flight fetches.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.started = false
	c.mu.Unlock()

	for _, e := range entries {
		e.sched.Stop()
	}
	log.Printf("[Coordinator] Stopped")
}

// AddPortfolio starts tracking a portfolio. The schedule is validated and
// the display name is reduced to an identifier-safe form. Adding an
// already-tracked portfolio is a conflict.
func (c *Coordinator) AddPortfolio(ctx context.Context, id int64, displayName string, opts models.ScheduleOptions) (*models.PortfolioConfig, error) {
	if err := opts.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if displayName == "" {
		return nil, apperrors.Validation("display name is required")
	}

	cfg := &models.PortfolioConfig{
		PortfolioID:    id,
		DisplayName:    displayName,
		NormalizedName: investing.NormalizePortfolioName(displayName),
		Schedule:       opts,
	}

	created, err := c.portfolios.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("storing portfolio: %w", err)
	}
	if !created {
		return nil, apperrors.Conflict(fmt.Sprintf("portfolio %d is already tracked", id))
	}

	stored, err := c.portfolios.GetByID(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.started {
		c.launch(stored)
	}
	c.mu.Unlock()

	log.Printf("[Coordinator] Tracking portfolio %d (%s)", id, stored.NormalizedName)
	return stored, nil
}

// RemovePortfolio stops tracking a portfolio and deletes its stored state.
func (c *Coordinator) RemovePortfolio(id int64) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	if ok {
		e.sched.Stop()
	}

	deleted, err := c.portfolios.Delete(id)
	if err != nil {
		return err
	}
	if !deleted && !ok {
		return apperrors.NotFound(fmt.Sprintf("portfolio %d is not tracked", id))
	}
	log.Printf("[Coordinator] Removed portfolio %d", id)
	return nil
}

// ManualRefresh fetches a portfolio immediately and returns the result.
// Coalesces with any in-flight fetch for the same portfolio. A successful
// manual refresh resumes a portfolio that auto-paused on an earlier error.
func (c *Coordinator) ManualRefresh(ctx context.Context, id int64) (*models.PortfolioSnapshot, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("portfolio %d is not tracked", id))
	}
	return e.sched.Refresh(ctx)
}

// GetSnapshot returns the latest successful snapshot for a portfolio. A
// tracked portfolio with no successful fetch yet returns nil.
func (c *Coordinator) GetSnapshot(id int64) (*models.PortfolioSnapshot, error) {
	c.mu.Lock()
	_, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("portfolio %d is not tracked", id))
	}
	return c.snapshots.GetByPortfolioID(id)
}

// Portfolios returns the status of every tracked portfolio.
func (c *Coordinator) Portfolios() ([]*PortfolioStatus, error) {
	configs, err := c.portfolios.GetAll()
	if err != nil {
		return nil, err
	}

	statuses := make([]*PortfolioStatus, 0, len(configs))
	for _, cfg := range configs {
		status := &PortfolioStatus{Config: *cfg}

		c.mu.Lock()
		e, ok := c.entries[cfg.PortfolioID]
		c.mu.Unlock()
		if ok {
			status.Schedule = e.sched.Snapshot()
		}

		snap, err := c.snapshots.GetByPortfolioID(cfg.PortfolioID)
		if err != nil {
			return nil, err
		}
		status.Snapshot = snap
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Readings returns the latest metric set of every portfolio that has one,
// keyed by normalized name.
func (c *Coordinator) Readings() ([]*Reading, error) {
	configs, err := c.portfolios.GetAll()
	if err != nil {
		return nil, err
	}

	readings := make([]*Reading, 0, len(configs))
	for _, cfg := range configs {
		snap, err := c.snapshots.GetByPortfolioID(cfg.PortfolioID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			continue
		}
		readings = append(readings, &Reading{Name: cfg.NormalizedName, Snapshot: *snap})
	}
	return readings, nil
}

// FetchHistory returns the most recent fetch attempts for a portfolio.
func (c *Coordinator) FetchHistory(id int64, limit int) ([]*models.FetchRecord, error) {
	c.mu.Lock()
	_, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("portfolio %d is not tracked", id))
	}
	return c.history.Recent(id, limit)
}

// launch creates and starts the refresh loop for one portfolio.
// Caller holds c.mu.
func (c *Coordinator) launch(cfg *models.PortfolioConfig) {
	id := cfg.PortfolioID
	sched := scheduler.New(cfg.NormalizedName, cfg.Schedule, c.loc, c.fetchFunc(id)).
		OnSuccess(func(snap *models.PortfolioSnapshot) { c.onSuccess(id, snap) }).
		OnError(func(err error) { c.onError(id, err) })
	if cfg.Paused {
		sched.Pause()
	}
	sched.Start(c.ctx)
	c.entries[id] = &entry{cfg: cfg, sched: sched}
}

// fetchFunc wraps the fetcher with fetch history bookkeeping.
func (c *Coordinator) fetchFunc(id int64) scheduler.FetchFunc {
	return func(ctx context.Context, trigger string) (*models.PortfolioSnapshot, error) {
		histID, histErr := c.history.Start(id, trigger)
		if histErr != nil {
			log.Printf("[Coordinator] Could not record fetch start for %d: %v", id, histErr)
		}

		snap, err := c.fetcher.Fetch(ctx, id)

		if histErr == nil {
			if err != nil {
				if ferr := c.history.Fail(histID, err.Error()); ferr != nil {
					log.Printf("[Coordinator] Could not record fetch failure for %d: %v", id, ferr)
				}
			} else {
				if cerr := c.history.Complete(histID); cerr != nil {
					log.Printf("[Coordinator] Could not record fetch completion for %d: %v", id, cerr)
				}
			}
		}
		return snap, err
	}
}

// onSuccess persists a fresh snapshot and clears remembered errors.
func (c *Coordinator) onSuccess(id int64, snap *models.PortfolioSnapshot) {
	if err := c.snapshots.Upsert(snap); err != nil {
		log.Printf("[Coordinator] Could not store snapshot for %d: %v", id, err)
		return
	}
	if err := c.portfolios.RecordSuccess(id, snap.FetchedAt); err != nil {
		log.Printf("[Coordinator] Could not record success for %d: %v", id, err)
	}
	for _, kind := range []string{apperrors.KindPortfolioNotFound, apperrors.KindInvalidCredentials} {
		if err := c.notifs.DismissByPortfolio(id, kind); err != nil {
			log.Printf("[Coordinator] Could not clear notifications for %d: %v", id, err)
		}
	}
	if err := c.portfolios.SetPaused(id, false); err != nil {
		log.Printf("[Coordinator] Could not unpause %d: %v", id, err)
	}
}

// onError records the failure. Hard failures additionally raise a
// notification, at most one open per portfolio and kind, and a vanished
// portfolio stops scheduled polling until reconfigured.
func (c *Coordinator) onError(id int64, err error) {
	kind := apperrors.Kind(err)
	if rerr := c.portfolios.RecordError(id, time.Now(), kind, err.Error()); rerr != nil {
		log.Printf("[Coordinator] Could not record error for %d: %v", id, rerr)
	}

	switch kind {
	case apperrors.KindInvalidCredentials, apperrors.KindPortfolioNotFound:
		open, herr := c.notifs.HasOpen(id, kind)
		if herr != nil {
			log.Printf("[Coordinator] Could not check notifications for %d: %v", id, herr)
			return
		}
		if !open {
			if _, cerr := c.notifs.Create(id, kind, err.Error()); cerr != nil {
				log.Printf("[Coordinator] Could not create notification for %d: %v", id, cerr)
			}
		}
	}

	if kind == apperrors.KindPortfolioNotFound {
		if perr := c.portfolios.SetPaused(id, true); perr != nil {
			log.Printf("[Coordinator] Could not pause %d: %v", id, perr)
		}
	}
}
