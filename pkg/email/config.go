package email

// Config holds email service configuration.
// Without Postmark tokens NewSender falls back to writing messages to DevDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkBaseURL      string `env:"POSTMARK_BASE_URL"`
	MessageStream        string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
	SenderEmail          string `env:"SENDER_EMAIL,required" validate:"required,email"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required" validate:"required,email"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// UsePostmark reports whether both Postmark tokens are set.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
