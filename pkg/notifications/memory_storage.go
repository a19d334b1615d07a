package notifications

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps notifications in memory. For development and tests.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[string][]Notification // userID -> notifications, oldest first
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{notifications: make(map[string][]Notification)}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Create(_ context.Context, notif Notification) error {
	if err := validate(notif); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[notif.UserID] = append(s.notifications[notif.UserID], notif)
	return nil
}

func (s *MemoryStorage) List(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.notifications[userID]
	out := make([]Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		n := stored[i]
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, n.Kind) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, n)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Notification{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID string, at time.Time, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.notifications[userID]
	for i := range stored {
		if !stored[i].Read && slices.Contains(notifIDs, stored[i].ID) {
			stored[i].MarkAsRead(at)
		}
	}
	return nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) ExistsSince(_ context.Context, userID, kind string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[userID] {
		if n.Kind == kind && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
