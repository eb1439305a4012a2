package auth

import "errors"

var (
	ErrNoToken         = errors.New("no token provided")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingSubject  = errors.New("token has no subject")
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrSessionLookup   = errors.New("session lookup failed")
	ErrSessionWrite    = errors.New("session write failed")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLookup   = errors.New("account lookup failed")
)
