package signature

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid signature configuration")
	ErrMissingIdentifier    = errors.New("payment proof is missing an identifier")
	ErrSignatureMismatch    = errors.New("payment signature mismatch")
)
