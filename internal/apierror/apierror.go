// Package apierror provides the engine error kinds and the standardized error
// envelopes returned to the terminal shell. All errors returned to clients go
// through this package so persistence details never leak into responses.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail   string `json:"detail"`
	Category string `json:"category,omitempty"`
	Code     string `json:"code,omitempty"`
	// Key is the permission key an escalation must satisfy.
	Key string `json:"key,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}

// ── Engine error kinds ────────────────────────────────────────────────────────

type Category string

const (
	CategoryBinding        Category = "binding"
	CategoryProductLookup  Category = "product_lookup"
	CategoryAuthorization  Category = "authorization"
	CategoryValidation     Category = "validation"
	CategorySale           Category = "sale"
	CategorySession        Category = "session"
	CategoryPersistence    Category = "persistence"
	CategoryNotImplemented Category = "not_implemented"
)

type Code string

const (
	// binding
	CodeHostUnregistered     Code = "HostUnregistered"
	CodeWarehouseMissing     Code = "WarehouseMissing"
	CodeFinancialLinkMissing Code = "FinancialLinkMissing"
	CodeNoActivePriceTable   Code = "NoActivePriceTable"

	// product lookup
	CodeNotFound          Code = "NotFound"
	CodeNoPrice           Code = "NoPrice"
	CodeInvalidMultiplier Code = "InvalidMultiplier"
	CodeInvalidRecallID   Code = "InvalidRecallId"

	// authorization
	CodeDenied             Code = "Denied"
	CodeInvalidCredentials Code = "InvalidCredentials"
	CodeEscalationAborted  Code = "EscalationAborted"

	// validation
	CodeDiscountExceedsCeiling  Code = "DiscountExceedsCeiling"
	CodeDiscountExceedsSubtotal Code = "DiscountExceedsSubtotal"
	CodeEmptyMovementReason     Code = "EmptyMovementReason"
	CodeMissingPosFields        Code = "MissingPosFields"
	CodeTenderLessThanZero      Code = "TenderLessThanZero"
	CodeInvalidInput            Code = "InvalidInput"
	CodeOutstandingBalance      Code = "OutstandingBalance"
	CodeEmptyCart               Code = "EmptyCart"

	// sale
	CodeSaleNotFound        Code = "NotFound"
	CodeSaleAlreadyCanceled Code = "AlreadyCanceled"
	CodeSaleNotInSession    Code = "NotInSession"
	CodeSaleAlreadyFiscal   Code = "AlreadyFiscal"
	CodeSaleNotNonFiscal    Code = "NotNonFiscal"
	CodeNonFiscalDisabled   Code = "NonFiscalDisabled"

	// session
	CodeSessionAlreadyOpen Code = "AlreadyOpen"
	CodeSessionNotOpen     Code = "NotOpen"

	// persistence
	CodeTransactionFailed Code = "TransactionFailed"

	// not implemented
	CodeTEF Code = "TEF"
)

// Error is an engine error: a (category, code) pair plus an optional
// permission key and cause. Two errors match under errors.Is when category and
// code are equal.
type Error struct {
	Category Category
	Code     Code
	Key      string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s.%s", e.Category, e.Code)
	if e.Key != "" {
		msg += "[" + e.Key + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Category == e.Category && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrHostUnregistered     = &Error{Category: CategoryBinding, Code: CodeHostUnregistered}
	ErrWarehouseMissing     = &Error{Category: CategoryBinding, Code: CodeWarehouseMissing}
	ErrFinancialLinkMissing = &Error{Category: CategoryBinding, Code: CodeFinancialLinkMissing}
	ErrNoActivePriceTable   = &Error{Category: CategoryBinding, Code: CodeNoActivePriceTable}

	ErrProductNotFound   = &Error{Category: CategoryProductLookup, Code: CodeNotFound}
	ErrNoPrice           = &Error{Category: CategoryProductLookup, Code: CodeNoPrice}
	ErrInvalidMultiplier = &Error{Category: CategoryProductLookup, Code: CodeInvalidMultiplier}
	ErrInvalidRecallID   = &Error{Category: CategoryProductLookup, Code: CodeInvalidRecallID}

	ErrDenied             = &Error{Category: CategoryAuthorization, Code: CodeDenied}
	ErrInvalidCredentials = &Error{Category: CategoryAuthorization, Code: CodeInvalidCredentials}
	ErrEscalationAborted  = &Error{Category: CategoryAuthorization, Code: CodeEscalationAborted}

	ErrDiscountExceedsCeiling  = &Error{Category: CategoryValidation, Code: CodeDiscountExceedsCeiling}
	ErrDiscountExceedsSubtotal = &Error{Category: CategoryValidation, Code: CodeDiscountExceedsSubtotal}
	ErrEmptyMovementReason     = &Error{Category: CategoryValidation, Code: CodeEmptyMovementReason}
	ErrMissingPosFields        = &Error{Category: CategoryValidation, Code: CodeMissingPosFields}
	ErrTenderLessThanZero      = &Error{Category: CategoryValidation, Code: CodeTenderLessThanZero}
	ErrInvalidInput            = &Error{Category: CategoryValidation, Code: CodeInvalidInput}
	ErrOutstandingBalance      = &Error{Category: CategoryValidation, Code: CodeOutstandingBalance}
	ErrEmptyCart               = &Error{Category: CategoryValidation, Code: CodeEmptyCart}

	ErrSaleNotFound        = &Error{Category: CategorySale, Code: CodeSaleNotFound}
	ErrSaleAlreadyCanceled = &Error{Category: CategorySale, Code: CodeSaleAlreadyCanceled}
	ErrSaleNotInSession    = &Error{Category: CategorySale, Code: CodeSaleNotInSession}
	ErrSaleAlreadyFiscal   = &Error{Category: CategorySale, Code: CodeSaleAlreadyFiscal}
	ErrSaleNotNonFiscal    = &Error{Category: CategorySale, Code: CodeSaleNotNonFiscal}
	ErrNonFiscalDisabled   = &Error{Category: CategorySale, Code: CodeNonFiscalDisabled}

	ErrSessionAlreadyOpen = &Error{Category: CategorySession, Code: CodeSessionAlreadyOpen}
	ErrSessionNotOpen     = &Error{Category: CategorySession, Code: CodeSessionNotOpen}

	ErrTransactionFailed = &Error{Category: CategoryPersistence, Code: CodeTransactionFailed}
	ErrNotImplemented    = &Error{Category: CategoryNotImplemented, Code: CodeTEF}
)

// ── Constructors ──────────────────────────────────────────────────────────────

func Binding(code Code, msg string) *Error {
	return &Error{Category: CategoryBinding, Code: code, Message: msg}
}

func Lookup(code Code, token string) *Error {
	return &Error{Category: CategoryProductLookup, Code: code, Message: token}
}

// Denied reports that key is neither self-granted nor escalated.
func Denied(key string) *Error {
	return &Error{Category: CategoryAuthorization, Code: CodeDenied, Key: key}
}

func InvalidCredentials(key string) *Error {
	return &Error{Category: CategoryAuthorization, Code: CodeInvalidCredentials, Key: key}
}

func EscalationAborted(key string) *Error {
	return &Error{Category: CategoryAuthorization, Code: CodeEscalationAborted, Key: key}
}

func Invalid(code Code, msg string) *Error {
	return &Error{Category: CategoryValidation, Code: code, Message: msg}
}

func Sale(code Code, msg string) *Error {
	return &Error{Category: CategorySale, Code: code, Message: msg}
}

func Session(code Code, msg string) *Error {
	return &Error{Category: CategorySession, Code: code, Message: msg}
}

// TransactionFailed wraps any non-engine error raised inside a transaction.
func TransactionFailed(cause error) *Error {
	return &Error{Category: CategoryPersistence, Code: CodeTransactionFailed, Cause: cause}
}

// NotImplementedTEF is returned for integrated card entry.
func NotImplementedTEF() *Error {
	return &Error{Category: CategoryNotImplemented, Code: CodeTEF, Message: "integrated card payment is not available"}
}

// As extracts the engine error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps an error to the status the shell transport answers with.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryBinding:
		return http.StatusServiceUnavailable
	case CategoryProductLookup:
		if e.Code == CodeNotFound || e.Code == CodeNoPrice {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case CategoryAuthorization:
		if e.Code == CodeInvalidCredentials {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case CategoryValidation:
		return http.StatusUnprocessableEntity
	case CategorySale, CategorySession:
		if e.Code == CodeSaleNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case CategoryNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the response envelope. Persistence causes are never exposed.
func FromError(err error) *APIError {
	e, ok := As(err)
	if !ok {
		return New("internal server error")
	}
	detail := e.Error()
	if e.Category == CategoryPersistence {
		detail = "transaction failed, retry the operation"
	}
	return &APIError{Detail: detail, Category: string(e.Category), Code: string(e.Code), Key: e.Key}
}
