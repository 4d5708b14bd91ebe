package types

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundWorkflow, http.StatusNotFound},
		{ErrCodeConflictAlreadyRan, http.StatusConflict},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query companies", inner)

	if got := appErr.Error(); got != "internal_database_error: failed to query companies" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(appErr, inner) {
		t.Error("errors.Is did not find the wrapped error")
	}
	if appErr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d", appErr.HTTPStatus())
	}
}

func TestAppError_ErrorsAs(t *testing.T) {
	err := error(NewAppError(ErrCodeAuthTokenInvalid, "bad token", nil))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As failed")
	}
	if appErr.Code != ErrCodeAuthTokenInvalid {
		t.Errorf("Code = %s", appErr.Code)
	}
}
