package notify

import (
	"context"

	"pigeon-bidding/internal/models"
	"pigeon-bidding/utils"
)

// Notifier is the outbound sink for domain events. Publish must not block on
// delivery; transport is the sink's concern.
type Notifier interface {
	Publish(ctx context.Context, events ...models.Event)
}

// Discard drops every event
type Discard struct{}

func (Discard) Publish(context.Context, ...models.Event) {}

// LogNotifier writes each event as a structured log line
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, events ...models.Event) {
	for _, e := range events {
		fields := map[string]any{
			"event":      string(e.Type),
			"auction_id": e.AuctionID,
		}
		if e.BidderID != "" {
			fields["bidder_id"] = e.BidderID
		}
		if e.Amount != 0 {
			fields["amount"] = e.Amount
		}
		if !e.NewEndTime.IsZero() {
			fields["previous_end_time"] = e.PreviousEndTime
			fields["new_end_time"] = e.NewEndTime
		}
		utils.Info("domain event", fields)
	}
}

// Multi fans events out to several sinks in order
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, events ...models.Event) {
	for _, n := range m {
		n.Publish(ctx, events...)
	}
}
