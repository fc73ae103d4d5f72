package tracker

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
)

// Patch is a partial update applied to a tracked entry. Nil fields are left
// untouched.
type Patch struct {
	Order        *common.Order
	Status       *common.OrderStatus
	Indexing     *common.IndexingState
	EvmTxHash    *string
	ErrorMessage *string
}

// Tracker is the in-session registry of orders this client is acting on. It
// is the single source of truth for "what is this client currently attempting
// on this order": exactly one entry exists per order id, and coordinators
// read it before writing to avoid double submission.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*common.LockedOrderEntry
	sweeps  map[string]*time.Timer

	sweepDelay time.Duration
	logger     *log.Logger
}

func New(logger *log.Logger) *Tracker {
	return &Tracker{
		entries:    make(map[string]*common.LockedOrderEntry),
		sweeps:     make(map[string]*time.Timer),
		sweepDelay: common.ClosedSweepDelay,
		logger:     logger,
	}
}

// SetSweepDelay overrides how long closed entries linger. Used by tests.
func (t *Tracker) SetSweepDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepDelay = d
}

// Upsert creates or merges the entry for orderID. Status changes must follow
// the lifecycle: pending -> locking -> locked -> closing -> closed, with
// error reachable from locking or closing and retryable only back into the
// phase that produced it. An illegal transition leaves the entry untouched
// and returns an error.
func (t *Tracker) Upsert(orderID string, patch Patch) (common.LockedOrderEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	entry, exists := t.entries[orderID]
	if !exists {
		// A new entry takes whatever status the patch carries; transition
		// rules only apply between states of an existing entry.
		entry = &common.LockedOrderEntry{
			OrderID:   orderID,
			Status:    common.StatusPending,
			Indexing:  common.IndexingNotStarted,
			CreatedAt: now,
		}
	}

	if exists && patch.Status != nil && *patch.Status != entry.Status {
		order := entry.Order
		if patch.Order != nil {
			order = *patch.Order
		}
		if !canTransition(entry.Status, *patch.Status, order.Locked()) {
			return common.LockedOrderEntry{}, fmt.Errorf("illegal status transition %s -> %s for order %s", entry.Status, *patch.Status, orderID)
		}
	}

	if patch.Order != nil {
		entry.Order = *patch.Order
	}
	if patch.Status != nil {
		entry.Status = *patch.Status
	}
	if patch.Indexing != nil {
		entry.Indexing = *patch.Indexing
	}
	if patch.EvmTxHash != nil {
		entry.EvmTxHash = *patch.EvmTxHash
	}
	if patch.ErrorMessage != nil {
		entry.ErrorMessage = *patch.ErrorMessage
	}
	entry.UpdatedAt = now

	t.entries[orderID] = entry

	if entry.Status == common.StatusClosed {
		t.scheduleSweepLocked(orderID)
	}

	return *entry, nil
}

// Get returns a copy of the entry for orderID.
func (t *Tracker) Get(orderID string) (common.LockedOrderEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[orderID]
	if !ok {
		return common.LockedOrderEntry{}, false
	}
	return *entry, true
}

// ByStatus lists entries in the given status, oldest first.
func (t *Tracker) ByStatus(status common.OrderStatus) []common.LockedOrderEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]common.LockedOrderEntry, 0)
	for _, entry := range t.entries {
		if entry.Status == status {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// All lists every tracked entry, oldest first.
func (t *Tracker) All() []common.LockedOrderEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]common.LockedOrderEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *Tracker) Pending() []common.LockedOrderEntry { return t.ByStatus(common.StatusPending) }
func (t *Tracker) Locking() []common.LockedOrderEntry { return t.ByStatus(common.StatusLocking) }
func (t *Tracker) Locked() []common.LockedOrderEntry  { return t.ByStatus(common.StatusLocked) }
func (t *Tracker) Closing() []common.LockedOrderEntry { return t.ByStatus(common.StatusClosing) }
func (t *Tracker) Errored() []common.LockedOrderEntry { return t.ByStatus(common.StatusError) }

// Remove drops the entry for orderID. Used by the closed-entry sweep and by
// users dismissing error entries.
func (t *Tracker) Remove(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(orderID)
}

// Len reports how many entries are tracked.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Close stops all pending sweep timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for orderID, timer := range t.sweeps {
		timer.Stop()
		delete(t.sweeps, orderID)
	}
}

func (t *Tracker) removeLocked(orderID string) {
	if timer, ok := t.sweeps[orderID]; ok {
		timer.Stop()
		delete(t.sweeps, orderID)
	}
	delete(t.entries, orderID)
}

// scheduleSweepLocked removes a closed entry after the sweep delay, leaving
// the UI time to show the success state. Caller holds t.mu.
func (t *Tracker) scheduleSweepLocked(orderID string) {
	if _, ok := t.sweeps[orderID]; ok {
		return
	}

	t.sweeps[orderID] = time.AfterFunc(t.sweepDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		t.removeLocked(orderID)
		t.logger.Printf("swept closed order %s", orderID)
	})
}

func canTransition(from, to common.OrderStatus, locked bool) bool {
	switch from {
	case common.StatusPending:
		return to == common.StatusLocking
	case common.StatusLocking:
		return to == common.StatusLocked || to == common.StatusError
	case common.StatusLocked:
		return to == common.StatusClosing
	case common.StatusClosing:
		return to == common.StatusClosed || to == common.StatusError
	case common.StatusError:
		// Which phase an error entry may re-enter is decided by the order:
		// the close phase requires a committee-locked order, the lock phase
		// runs before one exists.
		if locked {
			return to == common.StatusClosing
		}
		return to == common.StatusLocking
	default:
		return false
	}
}
