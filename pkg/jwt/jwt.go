package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the claims of a user token. Subject is the user id; email and
// name identify the customer to the payment gateway.
type Claims struct {
	gojwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Service issues and verifies HS256 tokens.
type Service struct {
	key    []byte
	issuer string
	parser *gojwt.Parser
	now    func() time.Time
}

// New creates a Service from cfg.
func New(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSigningKey
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}

	return &Service{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		parser: gojwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// NewFromString creates a Service with the given secret and no issuer check.
func NewFromString(secret string) (*Service, error) {
	return New(Config{Secret: secret})
}

// Generate signs a token for userID valid for ttl.
func (s *Service) Generate(userID string, ttl time.Duration) (string, error) {
	return s.Issue(Claims{RegisteredClaims: gojwt.RegisteredClaims{Subject: userID}}, ttl)
}

// Issue signs claims valid for ttl, filling issuer and timestamps. The
// billing service only verifies tokens; Issue serves tooling and tests.
func (s *Service) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	now := s.now()
	claims.Issuer = s.issuer
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return token, nil
}

// Parse verifies tokenString and returns its claims.
func (s *Service) Parse(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return nil, errors.Join(ErrInvalidSignature, err)
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return &claims, nil
}
