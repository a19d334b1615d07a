// Package email sends transactional email through Postmark, or writes it to
// disk during development.
//
// NewSender picks the implementation from Config: both Postmark tokens select
// the Postmark client, otherwise messages land in EMAIL_DEV_DIR as an .html
// body next to a .json envelope.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Subscription activated",
//		BodyHTML: html,
//		Tag:      "subscription.activate",
//	})
//
// RenderNotice produces the HTML for billing notices.
//
// Parameter and configuration failures wrap ErrInvalidParams and
// ErrInvalidConfig; delivery failures wrap ErrFailedToSendEmail.
package email
