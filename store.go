package main

import (
	"context"
	"strings"
)

// Coordinates is a raw device position. Present on a report only when
// geolocation succeeded.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Report is the unit of persisted work. Reports are append-only from
// the citizen's perspective; the only mutation is the Pending to
// Resolved status transition performed by an admin.
type Report struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	UserName       string       `json:"userName"`
	ImageURL       string       `json:"imageUrl"`
	Category       string       `json:"category"`
	LocationString string       `json:"locationString"`
	Coords         *Coordinates `json:"coords,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Status         string       `json:"status"`
	Timestamp      int64        `json:"timestamp"`
}

type ImageUpload struct {
	Name     string
	MimeType string
	Bytes    []byte
}

// ReportInput is the validated material a submission is built from.
type ReportInput struct {
	Image          ImageUpload
	Category       string
	LocationString string
	Coords         *Coordinates
	Notes          string
	UserID         string
	UserName       string
}

// ReportStore persists and retrieves reports. The backend is chosen
// once at process start; there is no runtime switching.
type ReportStore interface {
	// Submit assigns an id and timestamp, persists the report, and
	// returns it. No partial write is visible to callers on failure.
	Submit(ctx context.Context, input ReportInput) (Report, error)
	// ListAll returns every report ordered by timestamp descending.
	ListAll(ctx context.Context) ([]Report, error)
	// MarkResolved transitions a pending report to Resolved.
	MarkResolved(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

func isValidCategory(category string) bool {
	for _, c := range wasteCategories {
		if c == category {
			return true
		}
	}
	return false
}

func validateReportInput(input ReportInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return &ValidationError{Field: "userId", Reason: "submitting identity is required"}
	}
	if strings.TrimSpace(input.Category) == "" {
		return &ValidationError{Field: "category", Reason: "category is required"}
	}
	if !isValidCategory(input.Category) {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if len(input.Image.Bytes) == 0 {
		return &ValidationError{Field: "image", Reason: "image is required"}
	}
	if strings.TrimSpace(input.LocationString) == "" {
		return &ValidationError{Field: "locationString", Reason: "location description is required"}
	}
	return nil
}
