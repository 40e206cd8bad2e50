package errutil

import (
	"fmt"
	"net/url"
	"strings"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) URL() string {
	values := url.Values{}

	values.Set("error_code", string(e.Code))
	values.Set("error_message", e.Message)

	for _, d := range e.Details {
		values.Set("details["+strings.TrimSpace(d.Field)+"]", d.Message)
	}

	return values.Encode()
}

func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.messageWithErr(),
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func NotFound(msg string, options ...Option) error {
	return New(StatusNotFound, msg, options...)
}

func Conflict(msg string, options ...Option) error {
	return New(StatusConflict, msg, options...)
}

func BadRequest(msg string, options ...Option) error {
	return New(StatusBadRequest, msg, options...)
}

func Internal(msg string, options ...Option) error {
	return New(StatusInternal, msg, options...)
}

func Unauthorized(msg string, options ...Option) error {
	return New(StatusUnauthorized, msg, options...)
}

// Ledger-integrity and protocol errors. All of these abort the enclosing
// invocation; none of them may leave partial state behind.

func NotRegistered(msg string, options ...Option) error {
	return New(StatusNotRegistered, msg, options...)
}

func AlreadyRegistered(msg string, options ...Option) error {
	return New(StatusAlreadyRegistered, msg, options...)
}

func BalanceOverflow(msg string, options ...Option) error {
	return New(StatusBalanceOverflow, msg, options...)
}

func SupplyOverflow(msg string, options ...Option) error {
	return New(StatusSupplyOverflow, msg, options...)
}

func InsufficientBalance(msg string, options ...Option) error {
	return New(StatusInsufficientBalance, msg, options...)
}

func InsufficientDeposit(msg string, options ...Option) error {
	return New(StatusInsufficientDeposit, msg, options...)
}

func InsufficientBudget(msg string, options ...Option) error {
	return New(StatusInsufficientBudget, msg, options...)
}

func NothingToCollect(msg string, options ...Option) error {
	return New(StatusNothingToCollect, msg, options...)
}
