package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

var (
	ErrCircuitOpen             = errors.New("gateway circuit breaker is open")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrMalformedWebhook        = errors.New("malformed webhook payload")
	ErrMissingPlanMapping      = errors.New("no gateway plan configured")
)

// APIError is a non-2xx answer from a gateway.
type APIError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: gateway returned %d: %s", e.Op, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("%s: gateway returned %d %s: %s", e.Op, e.StatusCode, e.Code, e.Description)
}

// classify wraps err in the subscription gateway error its status maps to.
// Transport failures, 429 and 5xx are transient; 404 means the remote object is gone;
// every other 4xx is a rejection.
func classify(status int, err error) error {
	switch {
	case status == 0, status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return errors.Join(subscription.ErrGatewayUnavailable, err)
	case status == http.StatusNotFound:
		return errors.Join(subscription.ErrRemoteSubscriptionGone, err)
	default:
		return errors.Join(subscription.ErrGatewayRejected, err)
	}
}

func transient(err error) bool {
	return errors.Is(err, subscription.ErrGatewayUnavailable)
}
