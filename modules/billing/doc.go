// Package billing exposes the subscription service over HTTP.
//
// User routes authenticate with a JWT whose subject is the user id and whose
// email and name claims identify the customer to the payment gateway:
//
//	POST /subscriptions                  start a checkout
//	POST /subscriptions/verify-payment   apply a signed payment confirmation
//	POST /subscriptions/{id}/cancel      cancel now or at the end of the cycle
//	POST /subscriptions/{id}/resume      undo a scheduled cancellation
//	GET  /entitlement                    current tier and end date
//
// With WithVerifyLimit, verify-payment and resume share a per-user token
// bucket and answer 429 once it is empty.
//
// POST /internal/reconcile runs one sweep and accepts only the internal
// service token. Each gateway registered with WithWebhook gets
// POST /webhooks/{provider}; deliveries are verified against the raw body.
//
// Successful responses are plain JSON objects. Failures use the handler error
// envelope with a stable code, for example:
//
//	{"error":{"code":"invalid_signature","message":"Signature verification failed"}}
package billing
