package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/email"
)

// Recipient is where a user's email goes.
type Recipient struct {
	Email string
	Name  string
}

// Directory resolves a user id to an email recipient.
type Directory interface {
	Recipient(ctx context.Context, userID string) (Recipient, error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context, userID string) (Recipient, error)

func (f DirectoryFunc) Recipient(ctx context.Context, userID string) (Recipient, error) {
	return f(ctx, userID)
}

// EmailDeliverer sends each notification as an email.
type EmailDeliverer struct {
	sender    email.EmailSender
	directory Directory
	appName   string
	baseURL   string
}

// NewEmailDeliverer creates an EmailDeliverer. Relative notification links are
// resolved against baseURL.
func NewEmailDeliverer(sender email.EmailSender, directory Directory, appName, baseURL string) *EmailDeliverer {
	return &EmailDeliverer{
		sender:    sender,
		directory: directory,
		appName:   appName,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, n Notification) error {
	to, err := d.directory.Recipient(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if to.Email == "" {
		return fmt.Errorf("resolve recipient: user %s has no email address", n.UserID)
	}

	body, err := email.RenderNotice(email.Notice{
		AppName: d.appName,
		Name:    to.Name,
		Title:   n.Title,
		Message: n.Message,
		LinkURL: d.link(n.Link),
	})
	if err != nil {
		return err
	}

	return d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to.Email,
		Subject:  n.Title,
		BodyHTML: body,
		Tag:      n.Kind,
		Metadata: map[string]string{"notification_id": n.ID, "user_id": n.UserID},
	})
}

func (d *EmailDeliverer) link(link string) string {
	if link == "" || strings.Contains(link, "://") || d.baseURL == "" {
		return link
	}
	return d.baseURL + "/" + strings.TrimLeft(link, "/")
}
