package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftEndpoints_RequireSession(t *testing.T) {
	_, router := newTestApp(t)

	for _, target := range []string{"/api/v1/draft", "/api/v1/reports"} {
		w := httptest.NewRecorder()
		method := http.MethodGet
		if target == "/api/v1/reports" {
			method = http.MethodPost
		}
		req := httptest.NewRequest(method, target, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestDraftImageHandler_AttachesAndClassifies(t *testing.T) {
	app, router := newTestApp(t)

	w := uploadDraftImage(t, app, router, pngBytes, "image/png")
	assert.Equal(t, http.StatusOK, w.Code)

	var state draftStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.True(t, state.HasImage)
	if assert.NotNil(t, state.Classification) {
		assert.True(t, isValidCategory(state.Classification.Label))
		assert.False(t, state.Classification.Manual)
	}
	assert.True(t, state.CanSubmit)
}

func TestDraftImageHandler_RejectsNonImage(t *testing.T) {
	app, router := newTestApp(t)

	w := uploadDraftImage(t, app, router, []byte("plain text"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")

	// Nothing was attached.
	stateReq := userRequest(t, app, http.MethodGet, "/api/v1/draft", nil)
	stateW := httptest.NewRecorder()
	router.ServeHTTP(stateW, stateReq)
	var state draftStateResponse
	if err := json.Unmarshal(stateW.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.False(t, state.HasImage)
	assert.False(t, state.CanSubmit)
}

func TestDraftCategoryHandler_Override(t *testing.T) {
	app, router := newTestApp(t)

	uploadDraftImage(t, app, router, pngBytes, "image/png")

	body := bytes.NewBufferString(`{"category":"E-waste"}`)
	req := userRequest(t, app, http.MethodPut, "/api/v1/draft/category", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var state draftStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if assert.NotNil(t, state.Classification) {
		assert.Equal(t, "E-waste", state.Classification.Label)
		assert.True(t, state.Classification.Manual)
	}
}

func TestDraftCategoryHandler_RejectsUnknownCategory(t *testing.T) {
	app, router := newTestApp(t)

	body := bytes.NewBufferString(`{"category":"Nuclear"}`)
	req := userRequest(t, app, http.MethodPut, "/api/v1/draft/category", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestDraftLocationHandler_ResolvesCoordinates(t *testing.T) {
	app, router := newTestApp(t)

	body := bytes.NewBufferString(`{"lat":9.93,"lng":78.12}`)
	req := userRequest(t, app, http.MethodPut, "/api/v1/draft/location", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var state draftStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.Equal(t, defaultMockPlaceName, state.LocationString)
	if assert.NotNil(t, state.Coords) {
		assert.Equal(t, 9.93, state.Coords.Lat)
	}
}

func TestDraftLocationHandler_DeniedAndUnsupported(t *testing.T) {
	app, router := newTestApp(t)

	cases := []struct {
		payload string
		want    string
	}{
		{`{"denied":true}`, locationDeniedMessage},
		{`{"unsupported":true}`, locationUnsupportedMessage},
	}
	for _, tc := range cases {
		req := userRequest(t, app, http.MethodPut, "/api/v1/draft/location", strings.NewReader(tc.payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var state draftStateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		assert.Equal(t, tc.want, state.LocationString)
		assert.Nil(t, state.Coords)
	}
}

func TestDraftLocationHandler_RejectsOutOfRange(t *testing.T) {
	app, router := newTestApp(t)

	req := userRequest(t, app, http.MethodPut, "/api/v1/draft/location", strings.NewReader(`{"lat":95.0,"lng":78.12}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitReportHandler_FullFlow(t *testing.T) {
	app, router := newTestApp(t)

	uploadDraftImage(t, app, router, pngBytes, "image/png")

	locReq := userRequest(t, app, http.MethodPut, "/api/v1/draft/location", strings.NewReader(`{"lat":9.93,"lng":78.12}`))
	locReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), locReq)

	req := userRequest(t, app, http.MethodPost, "/api/v1/reports", strings.NewReader(`{"notes":"overflowing bin"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var report Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, statusPending, report.Status)
	assert.Equal(t, defaultMockPlaceName, report.LocationString)
	assert.Equal(t, "overflowing bin", report.Notes)
	assert.True(t, isValidCategory(report.Category))

	// Submission resets the draft.
	stateReq := userRequest(t, app, http.MethodGet, "/api/v1/draft", nil)
	stateW := httptest.NewRecorder()
	router.ServeHTTP(stateW, stateReq)
	var state draftStateResponse
	if err := json.Unmarshal(stateW.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.False(t, state.HasImage)
	assert.False(t, state.CanSubmit)
}

func TestSubmitReportHandler_EmptyBodyAllowed(t *testing.T) {
	app, router := newTestApp(t)

	uploadDraftImage(t, app, router, jpegBytes, "image/jpeg")

	req := userRequest(t, app, http.MethodPost, "/api/v1/reports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var report Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Draft without a location resolves to the unsupported message.
	assert.Equal(t, locationUnsupportedMessage, report.LocationString)
	assert.Empty(t, report.Notes)
}

func TestSubmitReportHandler_GateBlocksIncompleteDraft(t *testing.T) {
	app, router := newTestApp(t)

	req := userRequest(t, app, http.MethodPost, "/api/v1/reports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestSubmitReportHandler_ConflictWhileInFlight(t *testing.T) {
	app, router := newTestApp(t)

	uploadDraftImage(t, app, router, pngBytes, "image/png")

	identity := app.identityForEmail("citizen@example.com")
	if !app.beginSubmit(identity.ID) {
		t.Fatal("beginSubmit should succeed")
	}
	defer app.endSubmit(identity.ID)

	req := userRequest(t, app, http.MethodPost, "/api/v1/reports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "submit_in_progress")
}

func TestSubmitReportHandler_RateLimited(t *testing.T) {
	app, router := newTestApp(t)

	uploadDraftImage(t, app, router, pngBytes, "image/png")

	var last *httptest.ResponseRecorder
	for i := 0; i <= submitRateLimit; i++ {
		// Re-arm the draft; each successful submit resets it.
		uploadDraftImage(t, app, router, pngBytes, "image/png")
		req := userRequest(t, app, http.MethodPost, "/api/v1/reports", nil)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}
