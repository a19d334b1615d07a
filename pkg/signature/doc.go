// Package signature verifies that a payment reported by a client was really
// produced by the payment gateway.
//
// Gateways sign checkout results with HMAC-SHA256 over two identifiers joined
// by "|": "order_ref|payment_ref" for one-off orders and
// "payment_ref|subscription_ref" for recurring subscriptions. Proof.Payload
// picks the form from the identifiers present and Verifier.VerifyPayment
// compares the signature in constant time.
//
//	v := signature.MustNewVerifier(cfg.SignatureSecret)
//	if err := v.VerifyPayment(signature.Proof{
//		OrderRef:   req.OrderRef,
//		PaymentRef: req.PaymentRef,
//		Signature:  req.Signature,
//	}); err != nil {
//		// reject: no transition, no ledger entry
//	}
//
// VerifyBody covers webhook deliveries signed over the raw request body.
package signature
