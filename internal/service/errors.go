package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for the transport layer
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unexpected"
	}
}

// Error codes
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeEmptyCart            = "EMPTY_CART"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeOrderTotalTooLow     = "ORDER_TOTAL_TOO_LOW"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeAlreadyApproved      = "ALREADY_APPROVED"
	CodeCannotRejectApproved = "CANNOT_REJECT_APPROVED"
	CodeShopOrdersNotFound   = "SHOP_ORDERS_NOT_FOUND"
	CodeRequestInFlight      = "REQUEST_IN_FLIGHT"
	CodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	CodeDuplicateProduct     = "DUPLICATE_PRODUCT"
	CodeDuplicateEmail       = "DUPLICATE_EMAIL"
	CodeDuplicateShopName    = "DUPLICATE_SHOP_NAME"
	CodePasswordMismatch     = "PASSWORD_MISMATCH"
	CodeInvalidRole          = "INVALID_ROLE"
	CodeAdminSignupDisabled  = "ADMIN_SIGNUP_DISABLED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeAmbiguousIdentifier  = "AMBIGUOUS_IDENTIFIER"
	CodeIncorrectPassword    = "INCORRECT_PASSWORD"
	CodeOTPNotRequested      = "OTP_NOT_REQUESTED"
	CodeOTPExpired           = "OTP_EXPIRED"
	CodeInvalidOTP           = "INVALID_OTP"
	CodeNoCustomers          = "NO_CUSTOMERS"
	CodeInternal             = "INTERNAL"
)

// Error is the typed failure returned by every service operation
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func validationError(code, message string) *Error {
	return newError(KindValidation, code, message)
}

// unexpected wraps a storage or infrastructure failure
func unexpected(message string, err error) *Error {
	return &Error{Kind: KindUnexpected, Code: CodeInternal, Message: message, Err: err}
}

// AsError extracts a service error. Anything else is reported as unexpected.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return unexpected("Server error", err)
}

// errorCode is the stable code of err, or empty for nil
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// IsKind reports whether err is a service error of the given kind
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
