package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Subscription activated",
		BodyHTML: "<p>Welcome</p>",
		Tag:      "subscription.activate",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
		errMsg string
	}{
		{name: "valid", mutate: func(*email.SendEmailParams) {}},
		{name: "valid without tag", mutate: func(p *email.SendEmailParams) { p.Tag = "" }},
		{name: "empty recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "" }, errMsg: "SendTo is required"},
		{name: "whitespace recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "   " }, errMsg: "SendTo is required"},
		{name: "malformed recipient", mutate: func(p *email.SendEmailParams) { p.SendTo = "user@" }, errMsg: "SendTo must be a valid email address"},
		{name: "empty subject", mutate: func(p *email.SendEmailParams) { p.Subject = " " }, errMsg: "Subject is required"},
		{name: "empty body", mutate: func(p *email.SendEmailParams) { p.BodyHTML = "" }, errMsg: "BodyHTML is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validParams()
			tt.mutate(&p)

			err := p.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDevSender_WritesBodyAndEnvelope(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewDevSender(dir)

	p := validParams()
	p.Metadata = map[string]string{"user_id": "u1"}
	require.NoError(t, sender.SendEmail(context.Background(), p))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var envelopePath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			envelopePath = filepath.Join(dir, e.Name())
		}
		assert.Contains(t, e.Name(), "subscription.activate")
	}
	require.NotEmpty(t, envelopePath)

	raw, err := os.ReadFile(envelopePath)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "user@example.com", env["send_to"])
	assert.Equal(t, map[string]any{"user_id": "u1"}, env["metadata"])

	body, err := os.ReadFile(filepath.Join(dir, env["body_file"].(string)))
	require.NoError(t, err)
	assert.Equal(t, "<p>Welcome</p>", string(body))
}

func TestDevSender_RejectsInvalidParams(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{SendTo: "nope"})
	require.ErrorIs(t, err, email.ErrInvalidParams)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	t.Run("dev sender without tokens", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewSender(email.Config{SenderEmail: "billing@example.com", SupportEmail: "help@example.com", DevDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, s)
	})

	t.Run("postmark with tokens", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewSender(email.Config{
			PostmarkServerToken: "server", PostmarkAccountToken: "account",
			SenderEmail: "billing@example.com", SupportEmail: "help@example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, s)
		_, isDev := s.(*email.DevSender)
		assert.False(t, isDev)
	})

	t.Run("no destination", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewSender(email.Config{SenderEmail: "billing@example.com", SupportEmail: "help@example.com"})
		require.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}

func TestRenderNotice(t *testing.T) {
	t.Parallel()

	html, err := email.RenderNotice(email.Notice{
		AppName: "Acme",
		Name:    "Ada <admin>",
		Title:   "Subscription cancelled",
		Message: "Your Pro subscription has been cancelled.",
		LinkURL: "https://app.example.com/settings/billing",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Subscription cancelled")
	assert.Contains(t, html, "Ada &lt;admin&gt;")
	assert.Contains(t, html, `href="https://app.example.com/settings/billing"`)
	assert.Contains(t, html, "Manage billing")
}
