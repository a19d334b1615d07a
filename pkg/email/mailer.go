package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string            `json:"send_to" validate:"required,email"`
	Subject  string            `json:"subject" validate:"required"`
	BodyHTML string            `json:"body_html" validate:"required"`
	Tag      string            `json:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate trims the params and checks them. Failures wrap ErrInvalidParams
// and name the offending field.
func (p *SendEmailParams) Validate() error {
	p.SendTo = strings.TrimSpace(p.SendTo)
	p.Subject = strings.TrimSpace(p.Subject)
	p.BodyHTML = strings.TrimSpace(p.BodyHTML)

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidParams, describe(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "email" {
		return fe.Field() + " must be a valid email address"
	}
	return fe.Field() + " is required"
}

// NewSender returns a Postmark client when cfg carries tokens and a DevSender
// writing to cfg.DevDir otherwise.
func NewSender(cfg Config) (EmailSender, error) {
	if cfg.UsePostmark() {
		return NewPostmarkClient(cfg)
	}
	if cfg.DevDir == "" {
		return nil, fmt.Errorf("%w: EMAIL_DEV_DIR is required without Postmark tokens", ErrInvalidConfig)
	}
	return NewDevSender(cfg.DevDir), nil
}
