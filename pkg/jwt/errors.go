package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrMissingSubject    = errors.New("jwt: token carries no subject")
	ErrInvalidSignature  = errors.New("jwt: invalid signature")
	ErrMissingToken      = errors.New("jwt: missing bearer token")
)
