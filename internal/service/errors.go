// Package service holds the business rules of the storefront: the token
// lifecycle, the auth session manager, the checkout orchestrator and the
// catalog, order and admin services.  Every failure leaves this package as
// a *Error whose Kind the HTTP layer maps to a status code.
package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/payment"
	"github.com/iliyamo/trading-storefront/internal/repository"
)

// Kind classifies an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindForbidden
	KindEmailNotVerified
	KindNotFound
	KindConflict
	KindRateLimit
	KindGatewayTimeout
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindEmailNotVerified:
		return "email_not_verified"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	case KindGatewayTimeout:
		return "gateway_timeout"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by services.  Message is safe to show
// to clients; cause is only logged.  Details carries per-field validation
// messages and Email is set on KindEmailNotVerified.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Email   string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the kind of err, KindInternal for foreign errors and 0
// for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func validationError(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func notFound(msg string) *Error { return newError(KindNotFound, msg) }

// external translates a store or processor failure.  Deadline hits become
// GatewayTimeout; anything else is logged and reported as a generic
// internal error carrying msg.
func external(log *zap.Logger, err error, msg string, fields ...zap.Field) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, repository.ErrTimeout) || errors.Is(err, payment.ErrTimeout) {
		log.Warn("upstream timeout", append(fields, zap.String("op", msg), zap.Error(err))...)
		return &Error{Kind: KindGatewayTimeout, Message: "Upstream service timed out", cause: err}
	}
	log.Error(msg, append(fields, zap.Error(err))...)
	return &Error{Kind: KindInternal, Message: msg, cause: err}
}
