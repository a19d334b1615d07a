package gateway

import "time"

// RazorpayConfig configures the Razorpay adapter.
type RazorpayConfig struct {
	KeyID          string        `env:"RAZORPAY_KEY_ID" validate:"required"`
	KeySecret      string        `env:"RAZORPAY_KEY_SECRET" validate:"required"`
	WebhookSecret  string        `env:"RAZORPAY_WEBHOOK_SECRET"`
	BaseURL        string        `env:"RAZORPAY_BASE_URL" envDefault:"https://api.razorpay.com/v1" validate:"required,url"`
	Timeout        time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	TotalCount     int           `env:"RAZORPAY_TOTAL_COUNT" envDefault:"120" validate:"gt=0"` // billing cycles per subscription
	RetryMax       int           `env:"RAZORPAY_RETRY_MAX" envDefault:"1" validate:"gte=0,lte=1"`
	NotifyCustomer bool          `env:"RAZORPAY_CUSTOMER_NOTIFY" envDefault:"true"`
}

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey         string        `env:"STRIPE_SECRET_KEY" validate:"required"`
	WebhookSecret     string        `env:"STRIPE_WEBHOOK_SECRET"`
	BaseURL           string        `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com" validate:"required,url"`
	Timeout           time.Duration `env:"STRIPE_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	MaxNetworkRetries int64         `env:"STRIPE_MAX_NETWORK_RETRIES" envDefault:"1" validate:"gte=0,lte=1"`
}

// BreakerConfig configures the circuit breaker shared by both adapters.
type BreakerConfig struct {
	FailureThreshold int           `env:"GATEWAY_BREAKER_FAILURES" envDefault:"5" validate:"gt=0"`
	SuccessThreshold int           `env:"GATEWAY_BREAKER_SUCCESSES" envDefault:"1" validate:"gt=0"`
	RecoveryTimeout  time.Duration `env:"GATEWAY_BREAKER_RECOVERY" envDefault:"30s" validate:"gt=0"`
}

// NewBreakerFromConfig builds a Breaker from cfg.
func NewBreakerFromConfig(cfg BreakerConfig) *Breaker {
	return NewBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.RecoveryTimeout)
}
