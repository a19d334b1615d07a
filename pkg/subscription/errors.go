package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrTrialAlreadyUsed  = errors.New("trial already used for this account")
	ErrTrialNotAvailable = errors.New("subscription trial not available for this plan")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("a live subscription already exists for this account")
	ErrAccountNotFound           = errors.New("account not found")
	ErrIllegalTransition         = errors.New("not a legal transition from the current state")
	ErrStaleState                = errors.New("subscription changed since it was read")

	ErrInvalidSignature = errors.New("payment signature verification failed")
	ErrInvalidPayment   = errors.New("invalid payment confirmation")

	// Gateway errors. Adapters wrap their failures in one of these.
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrGatewayRejected        = errors.New("payment gateway rejected the request")
	ErrRemoteSubscriptionGone = errors.New("remote subscription does not exist or is already cancelled")
)

// IsRetryable reports whether err is a transient failure the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

func isGone(err error) bool {
	return errors.Is(err, ErrRemoteSubscriptionGone)
}
