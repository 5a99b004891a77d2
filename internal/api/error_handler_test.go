package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/core/domain"
)

func renderError(t *testing.T, err error) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var logs bytes.Buffer
	e := echo.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.New(&logs))

	req := httptest.NewRequest(http.MethodGet, "/api/queries/q-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	e.HTTPErrorHandler(err, c)
	return rec, logs.String()
}

func TestHTTPErrorHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{domain.ErrQueryNotFound, http.StatusNotFound, "query not found"},
		{fmt.Errorf("wrapped: %w", domain.ErrForbidden), http.StatusForbidden, "access denied"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{echo.NewHTTPError(http.StatusTooManyRequests, "too many requests"), http.StatusTooManyRequests, "too many requests"},
		{echo.ErrNotFound, http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		rec, logs := renderError(t, tt.err)
		if rec.Code != tt.code {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["message"] != tt.msg {
			t.Fatalf("%v: expected message %q, got %q", tt.err, tt.msg, body["message"])
		}
		if logs != "" {
			t.Fatalf("client errors should not be logged, got %s", logs)
		}
	}
}

func TestHTTPErrorHandler_Unexpected(t *testing.T) {
	rec, logs := renderError(t, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
	if !strings.Contains(logs, "connection refused") {
		t.Fatalf("expected the cause to be logged, got %q", logs)
	}
}
