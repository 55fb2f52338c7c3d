// Package common defines shared constants and sentinel errors used across
// the store, provider and service layers. Callers should use errors.Is and
// errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors.
	ErrUserNotFound         = errors.New("user not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrProviderNotSupported = errors.New("provider not supported")

	// Provider errors.
	ErrOAuthExchange       = errors.New("oauth exchange failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUpstream            = errors.New("upstream error")

	// Service-level errors.
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// UpstreamError carries a failure reported by an external storage service.
// Status and Message are passed through opaquely; Status is 0 when the
// failure happened before a response was received.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream HTTP %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: upstream: %s", e.Provider, e.Message)
}

// Unwrap exposes both ErrUpstream and the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// Kind values are stable identifiers reported to API clients.
const (
	KindUnknownProvider      = "UnknownProvider"
	KindAccountNotFound      = "AccountNotFound"
	KindProviderNotSupported = "ProviderNotSupported"
	KindOAuthExchange        = "OAuthExchangeError"
	KindProviderUnavailable  = "ProviderUnavailable"
	KindUpstream             = "UpstreamError"
	KindUserNotFound         = "UserNotFound"
	KindAlreadyExists        = "AlreadyExists"
	KindValidation           = "ValidationError"
	KindUnauthorized         = "Unauthorized"
	KindInternal             = "InternalError"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrUnknownProvider, KindUnknownProvider},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrProviderNotSupported, KindProviderNotSupported},
	{ErrOAuthExchange, KindOAuthExchange},
	{ErrProviderUnavailable, KindProviderUnavailable},
	{ErrUpstream, KindUpstream},
	{ErrUserNotFound, KindUserNotFound},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrValidation, KindValidation},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
	{ErrTokenExpired, KindUnauthorized},
}

// Kind maps err to its stable kind. Unrecognized errors are internal.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
