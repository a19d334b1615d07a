package jwt

import "time"

// Config holds the HMAC secret shared with the identity service that issues
// user tokens.
type Config struct {
	Secret string        `env:"AUTH_JWT_SECRET,required" validate:"required,min=32"`
	Issuer string        `env:"AUTH_JWT_ISSUER" envDefault:"billingd"`
	Leeway time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"30s" validate:"gte=0"`
}
