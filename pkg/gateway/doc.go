// Package gateway implements subscription.Gateway for Razorpay and Stripe and
// turns their webhook deliveries into Events the billing service can apply.
//
// Razorpay is called over its REST API with a retrying HTTP client: transport
// errors, 429 and 5xx responses get one retry with jittered backoff before the
// call fails with subscription.ErrGatewayUnavailable. Stripe goes through
// stripe-go with the same retry budget. Both adapters sit behind a circuit
// breaker that trips on repeated transient failures.
//
// Error classification:
//
//	network error, 429, 5xx, open circuit -> subscription.ErrGatewayUnavailable
//	404, already cancelled/completed       -> subscription.ErrRemoteSubscriptionGone
//	other 4xx                              -> subscription.ErrGatewayRejected
//
// Webhooks are authenticated before anything is decoded. A delivery for an
// event type the service does not act on parses to EventIgnored.
package gateway
