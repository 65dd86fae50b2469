package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"boxshop-api/internal/messaging"
	"boxshop-api/internal/model"
)

// ClearBatch is how many order-log messages one clear pass removes.
const ClearBatch = 100

// Notifier publishes accepted purchases to the admin order log.
// Delivery is best effort: a failure never affects the purchase.
type Notifier interface {
	PurchaseAccepted(ctx context.Context, ev model.PurchaseEvent) error
	ClearOrders(ctx context.Context) (int, error)
}

// FormatOrder renders the admin order-log line for a purchase.
func FormatOrder(ev model.PurchaseEvent) string {
	return fmt.Sprintf("📦 %s bought %dx %s box.", ev.Actor, ev.Quantity, ev.Category)
}

// ChannelNotifier posts order-log lines to a messaging channel.
type ChannelNotifier struct {
	channel messaging.Channel
}

// NewChannelNotifier creates a notifier posting to channel.
func NewChannelNotifier(channel messaging.Channel) *ChannelNotifier {
	return &ChannelNotifier{channel: channel}
}

// PurchaseAccepted posts the order line.
func (n *ChannelNotifier) PurchaseAccepted(ctx context.Context, ev model.PurchaseEvent) error {
	_, err := n.channel.Create(ctx, FormatOrder(ev))
	return err
}

// ClearOrders deletes up to ClearBatch recent messages. Individual delete
// failures are logged and skipped.
func (n *ChannelNotifier) ClearOrders(ctx context.Context) (int, error) {
	ids, err := n.channel.ListRecent(ctx, ClearBatch)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := n.channel.Delete(ctx, id); err != nil {
			log.Printf("[OrderLog] Failed to delete message %s: %v", id, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Multi fans out to several notifiers.
type Multi []Notifier

// PurchaseAccepted notifies every sink and joins their errors.
func (m Multi) PurchaseAccepted(ctx context.Context, ev model.PurchaseEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.PurchaseAccepted(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearOrders clears every sink and returns the total removed.
func (m Multi) ClearOrders(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, n := range m {
		cleared, err := n.ClearOrders(ctx)
		total += cleared
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) PurchaseAccepted(context.Context, model.PurchaseEvent) error { return nil }
func (Nop) ClearOrders(context.Context) (int, error)                    { return 0, nil }
