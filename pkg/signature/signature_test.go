package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kiranbanna12/setup-first-sub002/pkg/signature"
)

func hmacHex(t *testing.T, payload, secret string) string {
	t.Helper()
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// mutate flips one character at position i to a different character.
func mutate(s string, i int) string {
	b := []byte(s)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}

func TestVerify_OrderPayload(t *testing.T) {
	t.Parallel()

	triples := []struct {
		orderRef   string
		paymentRef string
		secret     string
	}{
		{"order_DBJOWzybf0sJbb", "pay_DGW4mXKxxHSVyT", "s3cr3t"},
		{"order_1", "pay_1", "k"},
		{"order_IluGWxBm9U8zJ8", "pay_IH4NVgf4Dreq1l", "EnLs21M47BllR3X8PSFtjtbd"},
	}

	for _, tc := range triples {
		payload := signature.OrderPayload(tc.orderRef, tc.paymentRef)
		assert.Equal(t, tc.orderRef+"|"+tc.paymentRef, payload)

		sig := hmacHex(t, payload, tc.secret)
		assert.True(t, signature.Verify(payload, sig, tc.secret))
		assert.Equal(t, sig, signature.Sign(payload, tc.secret))

		for i := range sig {
			assert.False(t, signature.Verify(payload, mutate(sig, i), tc.secret), "signature mutation at %d", i)
		}
		for i := range tc.orderRef {
			p := signature.OrderPayload(mutate(tc.orderRef, i), tc.paymentRef)
			assert.False(t, signature.Verify(p, sig, tc.secret), "order ref mutation at %d", i)
		}
		for i := range tc.paymentRef {
			p := signature.OrderPayload(tc.orderRef, mutate(tc.paymentRef, i))
			assert.False(t, signature.Verify(p, sig, tc.secret), "payment ref mutation at %d", i)
		}
		for i := range tc.secret {
			assert.False(t, signature.Verify(payload, sig, mutate(tc.secret, i)), "secret mutation at %d", i)
		}
	}
}

func TestVerify_RejectsPartialSignatures(t *testing.T) {
	t.Parallel()

	payload := signature.OrderPayload("order_1", "pay_1")
	sig := signature.Sign(payload, "secret")

	assert.False(t, signature.Verify(payload, sig[:len(sig)-1], "secret"))
	assert.False(t, signature.Verify(payload, sig[:8], "secret"))
	assert.False(t, signature.Verify(payload, sig+"0", "secret"))
	assert.False(t, signature.Verify(payload, "", "secret"))
	assert.False(t, signature.Verify(payload, sig, ""))
}

func TestProof_Shape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proof   signature.Proof
		shape   signature.Shape
		payload string
		wantErr error
	}{
		{
			name:    "order based",
			proof:   signature.Proof{OrderRef: "order_1", PaymentRef: "pay_1"},
			shape:   signature.ShapeOrder,
			payload: "order_1|pay_1",
		},
		{
			name:    "subscription based",
			proof:   signature.Proof{PaymentRef: "pay_1", SubscriptionRef: "sub_1"},
			shape:   signature.ShapeSubscription,
			payload: "pay_1|sub_1",
		},
		{
			name:    "order wins when both present",
			proof:   signature.Proof{OrderRef: "order_1", PaymentRef: "pay_1", SubscriptionRef: "sub_1"},
			shape:   signature.ShapeOrder,
			payload: "order_1|pay_1",
		},
		{
			name:    "missing payment ref",
			proof:   signature.Proof{OrderRef: "order_1"},
			wantErr: signature.ErrMissingIdentifier,
		},
		{
			name:    "no second identifier",
			proof:   signature.Proof{PaymentRef: "pay_1"},
			wantErr: signature.ErrMissingIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			shape, err := tt.proof.Shape()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, err = tt.proof.Payload()
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.shape, shape)

			payload, err := tt.proof.Payload()
			require.NoError(t, err)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestVerifier_VerifyPayment(t *testing.T) {
	t.Parallel()

	v := signature.MustNewVerifier("key_secret")

	proof := signature.Proof{PaymentRef: "pay_29QQoUBi66xm2f", SubscriptionRef: "sub_00000000000001"}
	sig, err := v.SignPayment(proof)
	require.NoError(t, err)
	proof.Signature = sig

	require.NoError(t, v.VerifyPayment(proof))

	tampered := proof
	tampered.SubscriptionRef = "sub_00000000000002"
	require.ErrorIs(t, v.VerifyPayment(tampered), signature.ErrSignatureMismatch)

	// Same identifiers signed in order form must not pass as the subscription form.
	swapped := signature.Proof{PaymentRef: proof.PaymentRef, SubscriptionRef: proof.SubscriptionRef,
		Signature: signature.Sign(signature.OrderPayload(proof.SubscriptionRef, proof.PaymentRef), "key_secret")}
	require.ErrorIs(t, v.VerifyPayment(swapped), signature.ErrSignatureMismatch)

	require.ErrorIs(t, v.VerifyPayment(signature.Proof{Signature: sig}), signature.ErrMissingIdentifier)
}

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	_, err := signature.NewVerifier("")
	require.ErrorIs(t, err, signature.ErrInvalidConfiguration)
	assert.Panics(t, func() { signature.MustNewVerifier("") })
}

func TestVerifyBody(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"subscription.charged"}`)
	sig := hmacHex(t, string(body), "whsec")

	assert.True(t, signature.VerifyBody(body, sig, "whsec"))
	assert.False(t, signature.VerifyBody(body, sig, "other"))
	assert.False(t, signature.VerifyBody(nil, sig, "whsec"))
	assert.False(t, signature.VerifyBody(append(body, ' '), sig, "whsec"))
}
