package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationError reports invalid local input. It is recoverable and
// never fatal; handlers surface it as a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError reports a failed sign-in or a missing/invalid session.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// PersistenceError wraps a failure during upload, document write, or
// query. The submit operation is treated as fully failed when one of
// its steps returns this.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

var errReportNotFound = errors.New("report not found")

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": validationErr.Error()})
		return
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": authErr.Error()})
		return
	}

	var persistenceErr *PersistenceError
	if errors.As(err, &persistenceErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "persistence_failed", "message": "Error submitting report. Try again."})
		return
	}

	if errors.Is(err, errReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report_not_found", "message": "Report not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
