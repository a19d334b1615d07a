package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Separator joins the two identifiers of a payment payload.
const Separator = "|"

// Shape identifies which identifiers a payment proof binds together.
type Shape string

const (
	// ShapeOrder is a one-off payment against an order: "order_ref|payment_ref".
	ShapeOrder Shape = "order"
	// ShapeSubscription is a payment against a recurring subscription: "payment_ref|subscription_ref".
	ShapeSubscription Shape = "subscription"
)

// Proof is the client-reported evidence of a payment, as returned by the
// gateway's checkout to the browser.
type Proof struct {
	OrderRef        string
	PaymentRef      string
	SubscriptionRef string
	Signature       string
}

// Shape picks the payload form from the identifiers present.
// An order ref wins when both an order and a subscription ref are supplied.
func (p Proof) Shape() (Shape, error) {
	if strings.TrimSpace(p.PaymentRef) == "" {
		return "", fmt.Errorf("%w: payment ref is required", ErrMissingIdentifier)
	}
	switch {
	case p.OrderRef != "":
		return ShapeOrder, nil
	case p.SubscriptionRef != "":
		return ShapeSubscription, nil
	default:
		return "", fmt.Errorf("%w: order ref or subscription ref is required", ErrMissingIdentifier)
	}
}

// Payload returns the exact string the gateway signed for this proof.
func (p Proof) Payload() (string, error) {
	shape, err := p.Shape()
	if err != nil {
		return "", err
	}
	if shape == ShapeOrder {
		return OrderPayload(p.OrderRef, p.PaymentRef), nil
	}
	return SubscriptionPayload(p.PaymentRef, p.SubscriptionRef), nil
}

// OrderPayload builds the signed payload of an order-based payment.
func OrderPayload(orderRef, paymentRef string) string {
	return orderRef + Separator + paymentRef
}

// SubscriptionPayload builds the signed payload of a subscription-based payment.
func SubscriptionPayload(paymentRef, subscriptionRef string) string {
	return paymentRef + Separator + subscriptionRef
}

// Sign computes the hex HMAC-SHA256 of payload under secret.
func Sign(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of payload under secret.
// The comparison is constant-time over the full hex string; an empty secret
// or signature never verifies.
func Verify(payload, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyBody checks a webhook delivery signed as HMAC-SHA256 over the raw request body.
func VerifyBody(body []byte, signature, secret string) bool {
	if len(body) == 0 {
		return false
	}
	return Verify(string(body), signature, secret)
}

// Verifier binds the server secret so callers never handle it directly.
type Verifier struct {
	secret string
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	return &Verifier{secret: secret}, nil
}

// MustNewVerifier is like NewVerifier but panics on an empty secret.
func MustNewVerifier(secret string) *Verifier {
	v, err := NewVerifier(secret)
	if err != nil {
		panic(err)
	}
	return v
}

// VerifyPayment checks a client-reported payment proof.
// Returns ErrMissingIdentifier when the proof has no usable shape and
// ErrSignatureMismatch when the signature does not match.
func (v *Verifier) VerifyPayment(p Proof) error {
	payload, err := p.Payload()
	if err != nil {
		return err
	}
	if !Verify(payload, p.Signature, v.secret) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignPayment produces the signature the gateway would attach to p.
// Used by tests and local tooling that simulate a checkout.
func (v *Verifier) SignPayment(p Proof) (string, error) {
	payload, err := p.Payload()
	if err != nil {
		return "", err
	}
	return Sign(payload, v.secret), nil
}
