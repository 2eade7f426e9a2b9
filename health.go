package livemetro

import (
	"context"
	"sync"
	"time"
)

const recentErrorLimit = 10

// HealthTracker records per-tier outcomes for the observability snapshot.
// IsOnline reflects the most recent terminal outcome across all keys: a
// success from a non-cache tier means online, anything else offline.
type HealthTracker struct {
	prober  func(ctx context.Context) error
	pending func() int

	mu         sync.Mutex
	isOnline   bool
	lastSyncAt time.Time
	errs       []SyncError
}

// NewHealthTracker creates a tracker. prober is used by ForceSync to
// probe the primary source directly; pending reports the write-back
// backlog. Either may be nil.
func NewHealthTracker(prober func(ctx context.Context) error, pending func() int) *HealthTracker {
	return &HealthTracker{
		prober:  prober,
		pending: pending,
	}
}

// RecordOutcome records the terminal outcome of one coordinated fetch.
func (t *HealthTracker) RecordOutcome(tier string, ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ok {
		t.isOnline = tier != TierCache
		t.lastSyncAt = time.Now()
		return
	}

	t.isOnline = false
	t.push(tier, err)
}

// RecordTaskError records a failed write-back task. It feeds the recent
// error log only; a dropped write-back says nothing about connectivity.
func (t *HealthTracker) RecordTaskError(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.push(name, err)
}

// Status returns a snapshot of the current state.
func (t *HealthTracker) Status() SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	errs := make([]SyncError, len(t.errs))
	copy(errs, t.errs)

	status := SyncStatus{
		LastSyncAt:   t.lastSyncAt,
		IsOnline:     t.isOnline,
		RecentErrors: errs,
	}

	if t.pending != nil {
		status.PendingTasks = t.pending()
	}

	return status
}

// ForceSync probes the primary source's health endpoint, independent of
// any key-specific fetch, and records the outcome. Returns whether the
// probe succeeded.
func (t *HealthTracker) ForceSync(ctx context.Context) bool {
	if t.prober == nil {
		return false
	}

	err := t.prober(ctx)
	t.RecordOutcome(TierLive, err == nil, err)

	return err == nil
}

// caller holds t.mu
func (t *HealthTracker) push(tier string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	t.errs = append(t.errs, SyncError{Tier: tier, Message: msg, At: time.Now()})
	if len(t.errs) > recentErrorLimit {
		t.errs = t.errs[len(t.errs)-recentErrorLimit:]
	}
}
