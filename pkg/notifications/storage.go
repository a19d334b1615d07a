package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidNotification  = errors.New("invalid notification")
)

// Storage handles notification persistence and retrieval.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, notif Notification) error

	// List returns a user's notifications, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)

	// MarkRead marks notifications as read. Unknown ids are ignored.
	MarkRead(ctx context.Context, userID string, at time.Time, notifIDs ...string) error

	// CountUnread returns the unread count for a user.
	CountUnread(ctx context.Context, userID string) (int, error)

	// ExistsSince reports whether a notification of kind was stored for the
	// user at or after since.
	ExistsSince(ctx context.Context, userID, kind string, since time.Time) (bool, error)
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Limit      int // 0 = no limit
	Offset     int
	OnlyUnread bool
	Kinds      []string
	Since      *time.Time
}

func validate(n Notification) error {
	switch {
	case n.ID == "":
		return errors.Join(ErrInvalidNotification, errors.New("id is required"))
	case n.UserID == "":
		return errors.Join(ErrInvalidNotification, errors.New("user id is required"))
	case n.Kind == "":
		return errors.Join(ErrInvalidNotification, errors.New("kind is required"))
	}
	return nil
}
