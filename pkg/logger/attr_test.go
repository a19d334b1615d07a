package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{"user id", logger.UserID("u1"), "user_id", "u1"},
		{"request id", logger.RequestID("abc"), "request_id", "abc"},
		{"subscription id", logger.SubscriptionID("s1"), "subscription_id", "s1"},
		{"gateway ref", logger.GatewayRef("sub_123"), "gateway_ref", "sub_123"},
		{"payment ref", logger.PaymentRef("pay_123"), "payment_ref", "pay_123"},
		{"status", logger.Status("active"), "status", "active"},
		{"provider", logger.Provider("razorpay"), "provider", "razorpay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}
}

func TestEmptyRefsAreDropped(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.GatewayRef("").Equal(slog.Attr{}))
	assert.True(t, logger.PaymentRef("").Equal(slog.Attr{}))
	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
}

func TestTransition(t *testing.T) {
	t.Parallel()

	attr := logger.Transition("active", "cancelling")
	require.Equal(t, "transition", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "active", g[0].Value.String())
	assert.Equal(t, "cancelling", g[1].Value.String())
}
