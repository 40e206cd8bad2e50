package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseError_AsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Internal("source unreachable", WithErr(cause))

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, StatusInternal, be.Code)
	require.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("collect: %w", err)
	require.True(t, errors.As(wrapped, &be))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:             http.StatusBadRequest,
		StatusNothingToCollect:       http.StatusBadRequest,
		StatusNotRegistered:          http.StatusNotFound,
		StatusAlreadyRegistered:      http.StatusConflict,
		StatusUnauthorized:           http.StatusForbidden,
		StatusInsufficientDeposit:    http.StatusPaymentRequired,
		StatusInsufficientBudget:     http.StatusTooManyRequests,
		StatusInsufficientBalance:    http.StatusUnprocessableEntity,
		StatusBalanceOverflow:        http.StatusUnprocessableEntity,
		StatusInternal:               http.StatusInternalServerError,
		CoreStatus("SOMETHING_ELSE"): http.StatusInternalServerError,
	}

	for status, want := range cases {
		require.Equal(t, want, status.HTTPStatus(), string(status))
	}
}
