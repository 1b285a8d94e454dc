package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWriteAPIError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &ValidationError{Field: "category", Reason: "unknown"}, http.StatusBadRequest, "validation_failed"},
		{"auth", &AuthError{Reason: "invalid credentials"}, http.StatusUnauthorized, "unauthorized"},
		{"persistence", &PersistenceError{Op: "insert", Err: fmt.Errorf("down")}, http.StatusBadGateway, "persistence_failed"},
		{"not found", errReportNotFound, http.StatusNotFound, "report_not_found"},
		{"api error passthrough", &apiError{Status: http.StatusConflict, Code: "conflict", Message: "busy"}, http.StatusConflict, "conflict"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeAPIError(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if body := w.Body.String(); !strings.Contains(body, tc.wantCode) {
				t.Fatalf("body %q does not contain code %q", body, tc.wantCode)
			}
		})
	}
}

func TestWriteAPIError_WrappedPersistenceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeAPIError(c, fmt.Errorf("submit: %w", &PersistenceError{Op: "upload", Err: fmt.Errorf("disk full")}))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if !strings.Contains(w.Body.String(), "Error submitting report. Try again.") {
		t.Fatalf("body %q missing user-facing message", w.Body.String())
	}
}
