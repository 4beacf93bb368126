package deliver

import (
	"context"
	"time"

	"github.com/elonfeng/paperdigest/internal/store"
)

// States is the delivery state machine: Pending → Sent → {Read, Interested}.
// All transitions are monotonic and idempotent; the transport retry path
// depends on MarkSent being a no-op for an already-sent delivery.
type States struct {
	store store.Store
}

// NewStates creates the state machine over the given store.
func NewStates(s store.Store) *States {
	return &States{store: s}
}

// MarkSent transitions a pending delivery to sent. Calling it again leaves
// sent_at unchanged.
func (st *States) MarkSent(ctx context.Context, deliveryID int64) error {
	return st.store.MarkSent(ctx, deliveryID, time.Now().UTC())
}

// MarkRead flags a sent delivery as read. Returns store.ErrNotSent for a
// delivery still pending.
func (st *States) MarkRead(ctx context.Context, deliveryID int64) error {
	return st.store.MarkRead(ctx, deliveryID, time.Now().UTC())
}

// MarkInterested flags a sent delivery as interesting. Same contract as
// MarkRead.
func (st *States) MarkInterested(ctx context.Context, deliveryID int64) error {
	return st.store.MarkInterested(ctx, deliveryID)
}
