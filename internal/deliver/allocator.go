// Package deliver owns the per-subscriber delivery queue: allocating
// summaries into delivery rows, sending within the daily budget, and the
// sent/read/interested state machine.
package deliver

import (
	"context"
	"log/slog"
	"time"

	"github.com/elonfeng/paperdigest/internal/match"
	"github.com/elonfeng/paperdigest/internal/store"
)

// Allocator computes which summaries a subscriber should receive and
// creates the corresponding unsent delivery rows. Allocation is purely
// additive: re-running it never touches existing rows.
type Allocator struct {
	store store.Store
	log   *slog.Logger
}

// NewAllocator creates an Allocator.
func NewAllocator(s store.Store, log *slog.Logger) *Allocator {
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{store: s, log: log}
}

// Allocate queues summaries for the subscriber whose item matches any of
// the subscriber's active profiles and was published within the
// subscriber's history window. Returns the summary ids newly queued,
// ordered by item published_at descending.
func (a *Allocator) Allocate(ctx context.Context, sub *store.Subscriber) ([]int64, error) {
	profiles, err := a.store.ListActiveProfiles(ctx)
	if err != nil {
		return nil, err
	}
	subscribed := match.FilterByNames(profiles, sub.Profiles)
	if len(subscribed) == 0 {
		return nil, nil
	}

	since := time.Now().UTC().AddDate(0, 0, -sub.HistoryDays)
	candidates, err := a.store.ListUnallocatedSummaries(ctx, sub.ID, since)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var queued []int64
	for i := range candidates {
		if !match.AnyProfile(&candidates[i].Item, subscribed) {
			continue
		}
		created, err := a.store.InsertDelivery(ctx, sub.ID, candidates[i].Summary.ID, now)
		if err != nil {
			return queued, err
		}
		if created {
			queued = append(queued, candidates[i].Summary.ID)
		}
	}

	if len(queued) > 0 {
		a.log.Info("allocated deliveries", "subscriber", sub.Identity, "queued", len(queued))
	}
	return queued, nil
}
