package billing

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/clientip"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/logger"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

const maxWebhookBytes = 256 << 10

// delivery is a webhook request kept raw; signatures cover the exact bytes.
type delivery struct {
	body   []byte
	header http.Header
}

func readDelivery(r *http.Request, v any) error {
	d, ok := v.(*delivery)
	if !ok {
		return fmt.Errorf("webhook binder: unexpected target %T", v)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err != nil {
		return handler.ErrBadRequest.Wrap(err, "Could not read request body")
	}
	if len(body) > maxWebhookBytes {
		return errPayloadTooLarge.Wrap(nil, "Webhook payload too large")
	}
	d.body = body
	d.header = r.Header
	return nil
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// webhook converges local state with a gateway event. Failures that a
// redelivery could fix answer non-2xx so the gateway retries.
func (m *Module) webhook(provider string, parser gateway.WebhookParser) func(handler.Context, delivery) handler.Response {
	return func(ctx handler.Context, d delivery) handler.Response {
		ev, err := parser.ParseWebhook(d.body, d.header)
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidWebhookSignature) {
				m.log.WarnContext(ctx, "webhook signature rejected",
					logger.Event("possible_webhook_forgery"),
					logger.Provider(provider),
					slog.String("client_ip", clientip.FromContext(ctx)),
				)
			}
			m.deliveries.WithLabelValues(provider, "rejected").Inc()
			return m.fail(ctx, err)
		}

		log := m.log.With(
			logger.Provider(provider),
			logger.Event(ev.Type),
			logger.GatewayRef(ev.SubscriptionRef),
			logger.PaymentRef(ev.PaymentRef),
		)

		outcome := "applied"
		switch ev.Kind {
		case gateway.EventCharged:
			var res subscription.VerifyResult
			res, err = m.svc.ApplyGatewayCharge(ctx, subscription.GatewayCharge{
				SubscriptionRef: ev.SubscriptionRef,
				PaymentRef:      ev.PaymentRef,
				OrderRef:        ev.OrderRef,
				PeriodEnd:       ev.PeriodEnd,
			})
			if err == nil && !res.Applied {
				outcome = "duplicate"
			}
		case gateway.EventCancelled:
			_, err = m.svc.ApplyRemoteCancellation(ctx, ev.SubscriptionRef)
		default:
			outcome = "ignored"
		}

		switch {
		case err == nil:
		case acknowledgeable(err):
			log.WarnContext(ctx, "webhook acknowledged without effect", logger.Error(err))
			outcome = "unmatched"
		default:
			m.deliveries.WithLabelValues(provider, "failed").Inc()
			return m.fail(ctx, err)
		}

		m.deliveries.WithLabelValues(provider, outcome).Inc()
		log.DebugContext(ctx, "webhook processed", logger.Status(outcome))
		return handler.JSON(webhookResponse{Received: true, Outcome: outcome})
	}
}
