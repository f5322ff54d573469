package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/offline"
	"spartan-crm/internal/twenty"
	"spartan-crm/prometheus"
)

const defaultRemoteTimeout = 20 * time.Second

// Remote is the part of the remote CRM client the engine needs
type Remote interface {
	ListLeads(ctx context.Context, filter *twenty.LeadFilter) ([]domain.Lead, error)
	UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
}

// LeadError is one failed lead in a push pass
type LeadError struct {
	LeadID string `json:"leadId"`
	Error  string `json:"error"`
}

// Result summarises a push pass. Deferred counts leads edited locally while
// their push was in flight; they stay pending for the next pass.
type Result struct {
	Success  bool        `json:"success"`
	Synced   int         `json:"synced"`
	Deferred int         `json:"deferred"`
	Failed   int         `json:"failed"`
	Errors   []LeadError `json:"errors"`
}

var errChangedDuringPush = errors.New("lead changed during push")

// Options tunes an Engine. Zero values pick defaults.
type Options struct {
	RemoteTimeout time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Engine reconciles the offline store with the remote CRM
type Engine struct {
	store   offline.Store
	remote  Remote
	conn    Connectivity
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger

	group singleflight.Group

	mu       sync.RWMutex
	last     Result
	lastAt   time.Time
	lastPull time.Time
}

func NewEngine(store offline.Store, remote Remote, conn Connectivity, opts Options) *Engine {
	e := &Engine{
		store:   store,
		remote:  remote,
		conn:    conn,
		timeout: opts.RemoteTimeout,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = defaultRemoteTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.L()
	}
	return e
}

// SyncLeads pushes every pending or errored lead to the remote CRM, one at a
// time. A caller arriving while a pass is running gets that pass's result.
func (e *Engine) SyncLeads(ctx context.Context) Result {
	v, _, _ := e.group.Do("push", func() (any, error) {
		return e.push(ctx), nil
	})
	return v.(Result)
}

func (e *Engine) push(ctx context.Context) Result {
	if !e.conn.Online() {
		e.logger.Info("Offline, skipping sync pass")
		return Result{Success: false, Errors: []LeadError{}}
	}

	start := e.now()
	leads, err := e.store.ListBySyncStatus(ctx, domain.SyncPending, domain.SyncError)
	if err != nil {
		e.logger.Error("Failed to list leads awaiting sync", zap.Error(err))
		prometheus.RecordSyncPass("push", false)
		res := Result{Success: false, Errors: []LeadError{{Error: err.Error()}}}
		e.remember(res, start)
		return res
	}
	prometheus.PendingLeadsGauge.Set(float64(len(leads)))

	res := Result{Errors: []LeadError{}}
	for _, l := range leads {
		if ctx.Err() != nil {
			e.logger.Warn("Sync pass cancelled", zap.Int("remaining", len(leads)-res.Synced-res.Deferred-res.Failed))
			break
		}

		remote, outcome, err := e.pushOne(ctx, l)
		if err == nil {
			err = e.markSynced(ctx, l, remote)
		}
		if errors.Is(err, errChangedDuringPush) {
			res.Deferred++
			prometheus.RecordSyncLead("deferred")
			continue
		}
		if err != nil {
			e.markFailed(ctx, l, err)
			res.Failed++
			res.Errors = append(res.Errors, LeadError{LeadID: l.ID, Error: err.Error()})
			prometheus.RecordSyncLead("failed")
			continue
		}
		res.Synced++
		prometheus.RecordSyncLead(outcome)
	}
	res.Success = res.Failed == 0 && ctx.Err() == nil

	e.logger.Info("Sync pass finished",
		zap.Int("synced", res.Synced),
		zap.Int("deferred", res.Deferred),
		zap.Int("failed", res.Failed),
		zap.Duration("took", e.now().Sub(start)))
	prometheus.RecordSyncPass("push", res.Success)
	e.remember(res, start)
	return res
}

// pushOne updates the remote record, creating it when the remote has never seen it
func (e *Engine) pushOne(ctx context.Context, l domain.Lead) (*domain.Lead, string, error) {
	updateCtx, cancel := context.WithTimeout(ctx, e.timeout)
	updated, err := e.remote.UpdateLead(updateCtx, l)
	cancel()
	if err == nil {
		return updated, "updated", nil
	}
	if !errors.Is(err, twenty.ErrNotFound) {
		return nil, "", err
	}

	e.logger.Debug("Lead unknown remotely, creating", zap.String("lead_id", l.ID))
	createCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	created, err := e.remote.CreateLead(createCtx, l)
	if err != nil {
		return nil, "", err
	}
	return created, "created", nil
}

func (e *Engine) markSynced(ctx context.Context, l domain.Lead, remote *domain.Lead) error {
	next, err := Transition(ctx, l.SyncStatus, EventPushOK)
	if err != nil {
		return err
	}

	current, err := e.store.Get(ctx, l.ID)
	if err != nil {
		return fmt.Errorf("reload lead: %w", err)
	}
	// an edit that landed while the push was in flight stays pending
	changed := current.UpdatedAt.After(l.UpdatedAt)

	now := e.now()
	if remote != nil && remote.ID != "" && remote.ID != l.ID {
		// rekey even when changed, or the next pass would create a duplicate
		rekeyed := *current
		rekeyed.ID = remote.ID
		if !changed {
			rekeyed.SyncStatus = next
			rekeyed.LastSyncedAt = &now
			rekeyed.SyncError = ""
		}
		if err := e.store.Put(ctx, rekeyed); err != nil {
			return fmt.Errorf("store remote id: %w", err)
		}
		if err := e.store.Delete(ctx, l.ID); err != nil && !errors.Is(err, offline.ErrNotFound) {
			e.logger.Warn("Failed to drop local id after create", zap.String("lead_id", l.ID), zap.Error(err))
		}
		e.logger.Info("Lead created remotely", zap.String("local_id", l.ID), zap.String("remote_id", remote.ID))
		if changed {
			return errChangedDuringPush
		}
		return nil
	}
	if changed {
		e.logger.Debug("Lead changed during push, keeping it pending", zap.String("lead_id", l.ID))
		return errChangedDuringPush
	}

	cleared := ""
	_, err = e.store.Update(ctx, l.ID, domain.LeadPatch{SyncStatus: &next, LastSyncedAt: &now, SyncError: &cleared})
	return err
}

func (e *Engine) markFailed(ctx context.Context, l domain.Lead, cause error) {
	next, err := Transition(ctx, l.SyncStatus, EventPushFail)
	if err != nil {
		e.logger.Error("Invalid sync transition", zap.String("lead_id", l.ID), zap.Error(err))
		return
	}
	msg := cause.Error()
	if _, err := e.store.Update(ctx, l.ID, domain.LeadPatch{SyncStatus: &next, SyncError: &msg}); err != nil {
		e.logger.Error("Failed to record sync error", zap.String("lead_id", l.ID), zap.Error(err))
	}
	e.logger.Warn("Lead sync failed", zap.String("lead_id", l.ID), zap.Error(cause))
}

// PullLeads copies every remote lead into the offline store as synced.
// The remote copy replaces any local version, including unpushed edits.
func (e *Engine) PullLeads(ctx context.Context) (int, error) {
	if !e.conn.Online() {
		e.logger.Info("Offline, skipping pull")
		return 0, nil
	}

	listCtx, cancel := context.WithTimeout(ctx, e.timeout)
	leads, err := e.remote.ListLeads(listCtx, nil)
	cancel()
	if err != nil {
		e.logger.Error("Failed to list remote leads", zap.Error(err))
		prometheus.RecordSyncPass("pull", false)
		return 0, err
	}

	now := e.now()
	var errs []error
	pulled := 0
	for _, l := range leads {
		l.SyncStatus, err = Transition(ctx, domain.SyncSynced, EventPull)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.LastSyncedAt = &now
		l.SyncError = ""
		if err := e.store.Put(ctx, l); err != nil {
			errs = append(errs, fmt.Errorf("lead %s: %w", l.ID, err))
			continue
		}
		pulled++
		prometheus.RecordSyncLead("pulled")
	}

	e.mu.Lock()
	e.lastPull = now
	e.mu.Unlock()

	err = errors.Join(errs...)
	prometheus.RecordSyncPass("pull", err == nil)
	e.logger.Info("Pulled remote leads", zap.Int("pulled", pulled), zap.Int("remote", len(leads)))
	return pulled, err
}

func (e *Engine) remember(res Result, at time.Time) {
	e.mu.Lock()
	e.last = res
	e.lastAt = at
	e.mu.Unlock()
}

// Status is a snapshot for the local status endpoint
type Status struct {
	Online     bool       `json:"online"`
	LastPush   *time.Time `json:"lastPush,omitempty"`
	LastResult *Result    `json:"lastResult,omitempty"`
	LastPull   *time.Time `json:"lastPull,omitempty"`
}

// Status reports connectivity and the most recent pass results
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{Online: e.conn.Online()}
	if !e.lastAt.IsZero() {
		at, res := e.lastAt, e.last
		st.LastPush = &at
		st.LastResult = &res
	}
	if !e.lastPull.IsZero() {
		at := e.lastPull
		st.LastPull = &at
	}
	return st
}
