package billing

import (
	"errors"
	"net/http"

	"github.com/Kiranbanna12/setup-first-sub002/handler"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/gateway"
	"github.com/Kiranbanna12/setup-first-sub002/pkg/subscription"
)

var (
	errInvalidSignature  = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_signature"}
	errInvalidPayment    = handler.HTTPError{Code: http.StatusBadRequest, Key: "invalid_payment"}
	errMalformedWebhook  = handler.HTTPError{Code: http.StatusBadRequest, Key: "malformed_webhook"}
	errPayloadTooLarge   = handler.HTTPError{Code: http.StatusRequestEntityTooLarge, Key: "payload_too_large"}
	errPlanNotFound      = handler.HTTPError{Code: http.StatusNotFound, Key: "plan_not_found"}
	errSubNotFound       = handler.HTTPError{Code: http.StatusNotFound, Key: "subscription_not_found"}
	errIllegalTransition = handler.HTTPError{Code: http.StatusConflict, Key: "illegal_transition"}
	errTrialUsed         = handler.HTTPError{Code: http.StatusConflict, Key: "trial_already_used"}
	errTrialUnavailable  = handler.HTTPError{Code: http.StatusConflict, Key: "trial_not_available"}
	errAlreadySubscribed = handler.HTTPError{Code: http.StatusConflict, Key: "subscription_exists"}
	errStaleState        = handler.HTTPError{Code: http.StatusConflict, Key: "concurrent_update"}
	errRemoteGone        = handler.HTTPError{Code: http.StatusConflict, Key: "remote_subscription_gone"}
	errGatewayRejected   = handler.HTTPError{Code: http.StatusBadGateway, Key: "gateway_rejected"}
	errGatewayDown       = handler.HTTPError{Code: http.StatusServiceUnavailable, Key: "gateway_unavailable"}
)

// httpError maps a service failure onto the response the client sees.
// Errors it does not recognise pass through and render as an opaque 500.
func httpError(err error) error {
	var herr handler.HTTPError
	if errors.As(err, &herr) {
		return err
	}

	switch {
	case errors.Is(err, subscription.ErrInvalidSignature), errors.Is(err, gateway.ErrInvalidWebhookSignature):
		return errInvalidSignature.Wrap(err, "Signature verification failed")
	case errors.Is(err, subscription.ErrInvalidPayment):
		return errInvalidPayment.Wrap(err, "Payment confirmation is incomplete")
	case errors.Is(err, gateway.ErrMalformedWebhook):
		return errMalformedWebhook.Wrap(err, "Webhook payload could not be read")

	case errors.Is(err, subscription.ErrGatewayUnavailable):
		return errGatewayDown.Wrap(err, "Payment gateway is unavailable, try again")
	case errors.Is(err, subscription.ErrGatewayRejected):
		return errGatewayRejected.Wrap(err, "Payment gateway rejected the request")
	case errors.Is(err, subscription.ErrRemoteSubscriptionGone):
		return errRemoteGone.Wrap(err, "Subscription no longer exists at the payment gateway")

	case errors.Is(err, subscription.ErrPlanNotFound):
		return errPlanNotFound.Wrap(err, "Plan not found")
	case errors.Is(err, subscription.ErrSubscriptionNotFound), errors.Is(err, subscription.ErrAccountNotFound):
		return errSubNotFound.Wrap(err, "Subscription not found")

	case errors.Is(err, subscription.ErrTrialAlreadyUsed):
		return errTrialUsed.Wrap(err, "Trial already used for this account")
	case errors.Is(err, subscription.ErrTrialNotAvailable):
		return errTrialUnavailable.Wrap(err, "This plan has no trial")
	case errors.Is(err, subscription.ErrSubscriptionAlreadyExists):
		return errAlreadySubscribed.Wrap(err, "An active subscription already exists")
	case errors.Is(err, subscription.ErrIllegalTransition):
		return errIllegalTransition.Wrap(err, "Subscription is not in a state that allows this action")
	case errors.Is(err, subscription.ErrStaleState):
		return errStaleState.Wrap(err, "Subscription changed concurrently, try again")
	}
	return err
}

// acknowledgeable reports whether a webhook failure cannot be fixed by
// redelivery. Such deliveries are logged and answered 200.
func acknowledgeable(err error) bool {
	return errors.Is(err, subscription.ErrSubscriptionNotFound) ||
		errors.Is(err, subscription.ErrIllegalTransition) ||
		errors.Is(err, subscription.ErrPlanNotFound)
}
