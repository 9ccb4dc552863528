package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidFeatures,
		Message: "features must be finite numbers",
	}

	expected := "validation_invalid_features: features must be finite numbers"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := NewAppError(ErrCodeInternalDB, "failed to list alerts", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error through Unwrap")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeAuthTokenExpired, "token has expired", nil)
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	if !errors.As(wrappedErr, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeAuthTokenExpired {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeAuthTokenExpired)
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeUpstreamClassifier,
		"classifier unavailable",
		nil,
		map[string]any{"status": 503},
	)

	enhanced := original.WithDetails(map[string]any{"detail": "model not loaded", "status": 500})

	if _, ok := original.Details["detail"]; ok {
		t.Error("WithDetails should not mutate the original error")
	}
	if enhanced.Details["detail"] != "model not loaded" {
		t.Errorf("detail = %v, want %q", enhanced.Details["detail"], "model not loaded")
	}
	if enhanced.Details["status"] != 500 {
		t.Errorf("WithDetails should overwrite existing key: status = %v", enhanced.Details["status"])
	}
	if enhanced.Code != original.Code || enhanced.Message != original.Message {
		t.Error("Code and Message should carry over")
	}
}

func TestAppErrorWithDetailsNilOriginal(t *testing.T) {
	enhanced := NewAppError(ErrCodeNotFoundAlert, "not found", nil).WithDetails(map[string]any{"id": "a1"})
	if enhanced.Details["id"] != "a1" {
		t.Errorf("id = %v, want a1", enhanced.Details["id"])
	}
}

func TestErrorCodeHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidFeatures, http.StatusBadRequest},
		{ErrCodeValidationInvalidImage, http.StatusBadRequest},
		{ErrCodeValidationInvalidFrame, http.StatusBadRequest},
		{ErrCodeValidationPayloadTooLarge, http.StatusRequestEntityTooLarge},

		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeAuthTokenExpired, http.StatusUnauthorized},

		{ErrCodePermissionUserMismatch, http.StatusForbidden},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeNotFoundAlert, http.StatusNotFound},

		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},

		{ErrCodeUpstreamClassifier, http.StatusBadGateway},
		{ErrCodeUpstreamPoseEstimator, http.StatusBadGateway},
		{ErrCodeUpstreamAlertStore, http.StatusBadGateway},
		{ErrCodeUpstreamFrameSource, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodeUpstreamInvalidPayload, http.StatusBadGateway},

		{ErrorCode("totally_unknown_error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("ErrorCode(%q).HTTPStatus() = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

func TestAppErrorFmtStringer(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundAlert, "alert not found", nil)
	result := fmt.Sprintf("got error: %v", appErr)
	expected := "got error: not_found_alert: alert not found"
	if result != expected {
		t.Errorf("fmt.Sprintf(\"%%v\") = %q, want %q", result, expected)
	}
}
