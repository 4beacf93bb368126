package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/pkg/transport"
)

// Sender pushes pending deliveries through the transport, respecting the
// subscriber's daily budget cumulatively across runs in the same UTC day.
type Sender struct {
	store     store.Store
	states    *States
	transport transport.Transport
	log       *slog.Logger
}

// SendResult aggregates one send pass for one subscriber.
type SendResult struct {
	Sent   int
	Failed int
}

// NewSender creates a Sender.
func NewSender(s store.Store, states *States, tr transport.Transport, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{store: s, states: states, transport: tr, log: log}
}

// SendPending sends the subscriber's pending deliveries, most recently
// published first, capped at dailyLimit minus what was already sent today.
// A transport failure is logged and the delivery stays pending for the next
// cycle; it never aborts the pass.
func (s *Sender) SendPending(ctx context.Context, sub *store.Subscriber) (SendResult, error) {
	var res SendResult

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	sentToday, err := s.store.CountSentSince(ctx, sub.ID, dayStart)
	if err != nil {
		return res, err
	}
	budget := sub.DailyLimit - sentToday
	if budget <= 0 {
		return res, nil
	}

	pending, err := s.store.ListPendingDeliveries(ctx, sub.ID, budget)
	if err != nil {
		return res, err
	}

	for i := range pending {
		pd := &pending[i]
		msg := FormatMessage(pd)
		if err := s.transport.Send(ctx, sub.Identity, msg); err != nil {
			s.log.Warn("transport send failed, delivery stays pending",
				"subscriber", sub.Identity, "delivery", pd.Delivery.ID, "err", err)
			res.Failed++
			continue
		}
		if err := s.states.MarkSent(ctx, pd.Delivery.ID); err != nil {
			return res, err
		}
		res.Sent++
	}

	if res.Sent > 0 || res.Failed > 0 {
		s.log.Info("send pass finished",
			"subscriber", sub.Identity, "sent", res.Sent, "failed", res.Failed)
	}
	return res, nil
}

// FormatMessage renders one pending delivery as a transport message with
// read/interested actions.
func FormatMessage(pd *store.PendingDelivery) *transport.Message {
	header := "📚 *Daily paper briefing*\n\n"
	venue := ""
	if pd.Item.Venue != "" {
		venue = fmt.Sprintf("\n_%s_", pd.Item.Venue)
	}
	return &transport.Message{
		Text:   header + pd.Summary.Content + venue,
		AbsURL: pd.Item.AbsURL,
		PDFURL: pd.Item.PDFURL,
		Actions: []transport.Action{
			{Label: "✅ Read", Callback: fmt.Sprintf("read:%d", pd.Delivery.ID)},
			{Label: "⭐ Interested", Callback: fmt.Sprintf("interested:%d", pd.Delivery.ID)},
		},
	}
}
