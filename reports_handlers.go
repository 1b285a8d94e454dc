package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type draftStateResponse struct {
	HasImage       bool            `json:"hasImage"`
	Classification *Classification `json:"classification,omitempty"`
	LocationString string          `json:"locationString"`
	Coords         *Coordinates    `json:"coords,omitempty"`
	CanSubmit      bool            `json:"canSubmit"`
}

func draftStateFromSnapshot(snap ReportDraft) draftStateResponse {
	return draftStateResponse{
		HasImage:       snap.Image != nil,
		Classification: snap.Classification,
		LocationString: snap.LocationDisplay(),
		Coords:         snap.Coords,
		CanSubmit:      snap.CanSubmit(),
	}
}

func (a *App) draftStateHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}
	c.JSON(http.StatusOK, draftStateFromSnapshot(a.drafts.Snapshot(identity.ID)))
}

// draftImageHandler accepts an image upload, attaches it to the draft
// and runs the classifier over it in one round trip.
func (a *App) draftImageHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		writeAPIError(c, &ValidationError{Field: "image", Reason: "image file required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		writeAPIError(c, &ValidationError{Field: "image", Reason: "image exceeds the upload size limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		a.log.Error("failed to open uploaded image", "user_id", identity.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		a.log.Error("failed to read uploaded image", "user_id", identity.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to read upload"})
		return
	}
	if int64(len(data)) > maxUploadBytes {
		writeAPIError(c, &ValidationError{Field: "image", Reason: "image exceeds the upload size limit"})
		return
	}

	upload := ImageUpload{
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Bytes:    data,
	}
	if err := a.drafts.SetImage(identity.ID, upload); err != nil {
		writeAPIError(c, err)
		return
	}

	classification, err := a.classifier.Classify(c.Request.Context(), upload)
	if err != nil {
		a.log.Error("classification failed", "user_id", identity.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to analyze image"})
		return
	}
	a.drafts.SetClassification(identity.ID, classification)

	c.JSON(http.StatusOK, draftStateFromSnapshot(a.drafts.Snapshot(identity.ID)))
}

// draftCategoryHandler lets the citizen override the classifier's
// category with one of the known waste categories.
func (a *App) draftCategoryHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	var payload struct {
		Category string `json:"category"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeAPIError(c, &ValidationError{Field: "category", Reason: "invalid request payload"})
		return
	}
	if !isValidCategory(payload.Category) {
		writeAPIError(c, &ValidationError{Field: "category", Reason: "unknown waste category"})
		return
	}

	a.drafts.SetClassification(identity.ID, Classification{Label: payload.Category, Manual: true})
	c.JSON(http.StatusOK, draftStateFromSnapshot(a.drafts.Snapshot(identity.ID)))
}

// draftLocationHandler resolves the citizen's coordinates into a place
// string, or records the degraded message when geolocation failed on
// the client.
func (a *App) draftLocationHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	var payload struct {
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
		Denied      bool     `json:"denied"`
		Unsupported bool     `json:"unsupported"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeAPIError(c, &ValidationError{Field: "location", Reason: "invalid request payload"})
		return
	}

	switch {
	case payload.Denied:
		a.drafts.SetLocation(identity.ID, locationDeniedMessage, nil)
	case payload.Unsupported:
		a.drafts.SetLocation(identity.ID, locationUnsupportedMessage, nil)
	default:
		if payload.Lat == nil || payload.Lng == nil {
			writeAPIError(c, &ValidationError{Field: "location", Reason: "coordinates required"})
			return
		}
		lat, lng := *payload.Lat, *payload.Lng
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			writeAPIError(c, &ValidationError{Field: "location", Reason: "coordinates out of range"})
			return
		}

		ctx, cancel := withGeocodeTimeout(c)
		place, err := a.geocoder.ReverseGeocode(ctx, lat, lng)
		cancel()
		if err != nil || strings.TrimSpace(place) == "" {
			if err != nil {
				a.log.Error("reverse geocoding failed", "user_id", identity.ID, "err", err)
			}
			place = a.cfg.MockPlaceName
		}
		a.drafts.SetLocation(identity.ID, place, &Coordinates{Lat: lat, Lng: lng})
	}

	c.JSON(http.StatusOK, draftStateFromSnapshot(a.drafts.Snapshot(identity.ID)))
}

func (a *App) draftResetHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}
	a.drafts.Reset(identity.ID)
	c.JSON(http.StatusOK, draftStateFromSnapshot(a.drafts.Snapshot(identity.ID)))
}

// submitReportHandler persists the current draft as a report. A second
// submit for the same user while the first is still in flight gets a
// 409 instead of creating a duplicate.
func (a *App) submitReportHandler(c *gin.Context) {
	identity, err := getIdentity(c)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	if !a.checkRateLimit("submit:"+c.ClientIP(), submitRateLimit, submitRateLimitWindow, time.Now()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "Too many reports. Try again later."})
		return
	}

	if !a.beginSubmit(identity.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "submit_in_progress", "message": "A submission is already in progress"})
		return
	}
	defer a.endSubmit(identity.ID)

	var payload struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(c, &ValidationError{Field: "notes", Reason: "invalid request payload"})
		return
	}

	snap := a.drafts.Snapshot(identity.ID)
	if !snap.CanSubmit() {
		writeAPIError(c, &ValidationError{Field: "draft", Reason: "photo and classification required before submitting"})
		return
	}

	input := ReportInput{
		UserID:         identity.ID,
		UserName:       identity.DisplayName,
		Image:          *snap.Image,
		Category:       snap.Classification.Label,
		LocationString: snap.LocationDisplay(),
		Coords:         snap.Coords,
		Notes:          strings.TrimSpace(payload.Notes),
	}

	report, err := a.store.Submit(c.Request.Context(), input)
	if err != nil {
		a.log.Error("report submission failed", "user_id", identity.ID, "err", err)
		writeAPIError(c, err)
		return
	}

	a.drafts.Reset(identity.ID)
	a.log.Info("report submitted", "user_id", identity.ID, "report_id", report.ID, "category", report.Category)
	c.JSON(http.StatusCreated, report)
}

func withGeocodeTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), geocodeTimeout)
}
