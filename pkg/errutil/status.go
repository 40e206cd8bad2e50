package errutil

import "net/http"

// CoreStatus is a transport-agnostic error code carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest   CoreStatus = "BAD_REQUEST"
	StatusNotFound     CoreStatus = "NOT_FOUND"
	StatusConflict     CoreStatus = "CONFLICT"
	StatusUnauthorized CoreStatus = "UNAUTHORIZED"
	StatusInternal     CoreStatus = "INTERNAL"
	StatusUnknown      CoreStatus = "UNKNOWN"

	StatusNotRegistered       CoreStatus = "NOT_REGISTERED"
	StatusAlreadyRegistered   CoreStatus = "ALREADY_REGISTERED"
	StatusBalanceOverflow     CoreStatus = "BALANCE_OVERFLOW"
	StatusSupplyOverflow      CoreStatus = "SUPPLY_OVERFLOW"
	StatusInsufficientBalance CoreStatus = "INSUFFICIENT_BALANCE"
	StatusInsufficientDeposit CoreStatus = "INSUFFICIENT_DEPOSIT"
	StatusInsufficientBudget  CoreStatus = "INSUFFICIENT_BUDGET"
	StatusNothingToCollect    CoreStatus = "NOTHING_TO_COLLECT"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code
// equivalent so the gin error middleware can render it.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusNothingToCollect:
		return http.StatusBadRequest
	case StatusNotFound, StatusNotRegistered:
		return http.StatusNotFound
	case StatusConflict, StatusAlreadyRegistered:
		return http.StatusConflict
	case StatusUnauthorized:
		return http.StatusForbidden
	case StatusInsufficientDeposit:
		return http.StatusPaymentRequired
	case StatusInsufficientBudget:
		return http.StatusTooManyRequests
	case StatusBalanceOverflow, StatusSupplyOverflow, StatusInsufficientBalance:
		return http.StatusUnprocessableEntity
	case StatusInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
