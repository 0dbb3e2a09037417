package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----
// Caller's fault; never cause state changes.

func ErrInvalidAmount(reason string) *AppError {
	return New("VAL_001", fmt.Sprintf("Invalid amount: %s", reason), http.StatusBadRequest)
}

func ErrInvalidPinFormat() *AppError {
	return New("VAL_002", "PIN must be exactly 4 digits", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("VAL_003", "Cannot transfer to your own wallet", http.StatusBadRequest)
}

// Validation returns a generic VAL_000 error for malformed request bodies.
func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}

// ---- Authorization (AUTH) ----

func ErrInvalidPin() *AppError {
	return New("AUTH_001", "Invalid PIN", http.StatusUnauthorized)
}

func ErrMissingPrincipal() *AppError {
	return New("AUTH_002", "Missing or malformed account principal", http.StatusUnauthorized)
}

// ---- Ledger Business Logic (LED) ----

// ErrInsufficientFunds is the only error that commits state: the engine
// records a FAILED transaction on the sender before returning it.
func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Accounts (ACC) ----

func ErrEmailExists() *AppError {
	return New("ACC_001", "Email already registered", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps a storage or transport fault. The unit of work that
// produced it has been rolled back entirely; callers may retry.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
