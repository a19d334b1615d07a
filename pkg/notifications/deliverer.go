package notifications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// Deliverer pushes a stored notification to the user through some channel.
type Deliverer interface {
	Deliver(ctx context.Context, notif Notification) error
}

// MultiDeliverer fans a notification out to several channels. A failing
// channel does not stop the others.
type MultiDeliverer struct {
	deliverers []Deliverer
	logger     *slog.Logger
}

// NewMultiDeliverer creates a deliverer over the given channels.
func NewMultiDeliverer(logger *slog.Logger, deliverers ...Deliverer) *MultiDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiDeliverer{deliverers: deliverers, logger: logger}
}

// Deliver sends through every channel and returns the joined failures.
func (m *MultiDeliverer) Deliver(ctx context.Context, notif Notification) error {
	var errs []error
	for i, d := range m.deliverers {
		if err := d.Deliver(ctx, notif); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "notification channel failed",
				slog.String("notification_id", notif.ID),
				logger.UserID(notif.UserID),
				slog.Int("channel", i),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOpDeliverer discards notifications.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(context.Context, Notification) error { return nil }
