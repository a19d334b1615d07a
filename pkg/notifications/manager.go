package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

// Manager stores notifications and then delivers them. It satisfies the
// billing service's Emitter and NoticeLog contracts.
type Manager struct {
	storage   Storage
	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock overrides the time source for created and read timestamps.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager. A nil deliverer stores without delivering.
func NewManager(storage Storage, deliverer Deliverer, opts ...ManagerOption) *Manager {
	if deliverer == nil {
		deliverer = NoOpDeliverer{}
	}
	m := &Manager{
		storage:   storage,
		deliverer: deliverer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send stores notif and then attempts delivery. A delivery failure is logged;
// the stored record still counts for deduplication.
func (m *Manager) Send(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = m.now().UTC()
	}

	if err := m.storage.Create(ctx, notif); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if err := m.deliverer.Deliver(ctx, notif); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but not delivered",
			slog.String("notification_id", notif.ID),
			slog.String("kind", notif.Kind),
			logger.UserID(notif.UserID),
			logger.Error(err),
		)
	}
	return nil
}

// Emit sends a notice of kind to a user.
func (m *Manager) Emit(ctx context.Context, userID, kind, title, message, link string) error {
	return m.Send(ctx, Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Link:    link,
	})
}

// SentSince reports whether the user got a notice of kind at or after since.
func (m *Manager) SentSince(ctx context.Context, userID, kind string, since time.Time) (bool, error) {
	return m.storage.ExistsSince(ctx, userID, kind, since)
}

func (m *Manager) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	return m.storage.List(ctx, userID, opts)
}

func (m *Manager) MarkRead(ctx context.Context, userID string, notifIDs ...string) error {
	return m.storage.MarkRead(ctx, userID, m.now().UTC(), notifIDs...)
}

func (m *Manager) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.storage.CountUnread(ctx, userID)
}
