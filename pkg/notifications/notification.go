package notifications

import "time"

// Notification is a user-facing notice. Kind identifies what happened, e.g.
// "subscription.activate", and is what deduplication keys on.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// MarkAsRead marks the notification as read at t.
func (n *Notification) MarkAsRead(t time.Time) {
	n.Read = true
	n.ReadAt = &t
}
