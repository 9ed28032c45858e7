package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures from the wallet provider, the node and the
// minting backend so callers can decide whether a retry makes sense.
type Kind int

const (
	// KindInternal is the zero value for errors that escaped classification.
	KindInternal Kind = iota
	// KindUserRejected: the user declined the request in their wallet. Terminal.
	KindUserRejected
	// KindProviderBusy: another request is already pending in the wallet.
	// Terminal for this call; the user must resolve the pending request first.
	KindProviderBusy
	// KindNoSession: no connected session, or the connection was lost.
	KindNoSession
	// KindInvalidInput: address/amount validation failed before any external call.
	KindInvalidInput
	// KindNodeRejected: the node refused the transaction at broadcast. Terminal.
	KindNodeRejected
	// KindConfirmationTimeout: the confirmation round budget ran out. The
	// transaction may still confirm later; the outcome is unknown, not failed.
	KindConfirmationTimeout
	// KindBackendError: non-2xx or malformed response from the minting service.
	KindBackendError
	// KindStorageUnavailable: local persistence failed. Non-fatal, logged only.
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindProviderBusy:
		return "provider_busy"
	case KindNoSession:
		return "no_session"
	case KindInvalidInput:
		return "invalid_input"
	case KindNodeRejected:
		return "node_rejected"
	case KindConfirmationTimeout:
		return "confirmation_timeout"
	case KindBackendError:
		return "backend_error"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}

// Error carries a Kind alongside the message so handlers can map failures to
// HTTP responses and the UI can distinguish "try again" from "don't".
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with a static message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the classified message without the kind prefix, falling
// back to the full error text for unclassified errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// StatusCode maps a classification to an HTTP status for the REST surface.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUserRejected:
		return http.StatusForbidden
	case KindNoSession:
		return http.StatusUnauthorized
	case KindProviderBusy:
		return http.StatusConflict
	case KindNodeRejected, KindBackendError:
		return http.StatusBadGateway
	case KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
