// Package apperr defines the error taxonomy shared by services and
// handlers. Every error leaving a service is one of five kinds; the
// kind decides the HTTP status and whether a retry can ever help.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds — use with errors.Is()
var (
	// ErrValidation: bad caller input, recoverable by correcting it.
	ErrValidation = errors.New("validation failed")

	// ErrAuthorization: actor's shop does not own the target row.
	// Never retried automatically.
	ErrAuthorization = errors.New("authorization failed")

	// ErrNotFound: referenced invoice, sale, item or product is missing.
	ErrNotFound = errors.New("not found")

	// ErrConflict: request contradicts current ledger state (over-return,
	// stale concurrency token, insufficient stock). Caller must re-fetch
	// and retry with corrected input.
	ErrConflict = errors.New("conflict with current state")

	// ErrStore: transient failure of the underlying store. The only kind
	// eligible for automatic retry, and only for invoice numbering.
	ErrStore = errors.New("store failure")
)

// Error carries the kind, a stable reason code for the UI, and a
// user-displayable message.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Reason codes surfaced to the UI boundary.
const (
	CodeEmptyReason       = "empty_reason"
	CodeInvalidQuantity   = "invalid_quantity"
	CodeNegativeAmount    = "negative_amount"
	CodeNoItemsSelected   = "no_items_selected"
	CodeShopMismatch      = "shop_mismatch"
	CodeNotFound          = "not_found"
	CodeOverReturn        = "over_return"
	CodeStaleModification = "stale_modification"
	CodeInsufficientStock = "insufficient_stock"
	CodeStoreError        = "store_error"
)

func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Authorization(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrAuthorization, Code: CodeShopMismatch, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id interface{}) *Error {
	return &Error{Kind: ErrNotFound, Code: CodeNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Store(err error) *Error {
	return &Error{Kind: ErrStore, Code: CodeStoreError, Message: "store operation failed", Err: err}
}

// Code extracts the reason code, falling back to the kind for errors
// that were wrapped along the way.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// IsRetryable reports whether retrying the operation might succeed.
// Only transient store failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStore)
}
