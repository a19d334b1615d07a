package main

import (
	"time"
)

// appConfig holds the settings that belong to the binary rather than to a
// package.
type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production prod stage"`
	Name string `env:"APP_NAME" envDefault:"billingd" validate:"required"`
	URL  string `env:"APP_URL" envDefault:"http://localhost:8080" validate:"required,url"`

	GatewayProvider string `env:"GATEWAY_PROVIDER" envDefault:"razorpay" validate:"oneof=razorpay stripe"`
	// PaymentSecret verifies the payment signatures clients relay from checkout.
	PaymentSecret string `env:"PAYMENT_SIGNATURE_SECRET,required" validate:"required"`
	ServiceToken  string `env:"INTERNAL_SERVICE_TOKEN" validate:"omitempty,min=16"`
	CatalogPath   string `env:"PLAN_CATALOG_PATH" envDefault:"plans.yaml" validate:"required"`

	SweepLock    string        `env:"BILLING_SWEEP_LOCK" envDefault:"none" validate:"oneof=none redis postgres"`
	SweepLockTTL time.Duration `env:"BILLING_SWEEP_LOCK_TTL" envDefault:"2m" validate:"gt=0"`

	// TrustedIPHeaders lists proxy headers believed for the client address.
	// Empty means the peer address only.
	TrustedIPHeaders []string `env:"TRUSTED_IP_HEADERS" envSeparator:"," envDefault:"X-Forwarded-For,X-Real-IP"`
	// VerifyBurst caps payment verification attempts per user; 0 disables it.
	VerifyBurst    int           `env:"VERIFY_RATE_LIMIT_BURST" envDefault:"10" validate:"gte=0"`
	VerifyInterval time.Duration `env:"VERIFY_RATE_LIMIT_INTERVAL" envDefault:"1m" validate:"gt=0"`
}
