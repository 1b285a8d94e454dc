package main

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/karuppusamybecse-eng/CleanMaduraiAi/mailer"
)

const testAdminPassword = "correct-horse-battery"

// Smallest byte prefixes that pass magic-byte image sniffing.
var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

func newTestApp(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}

	cfg := &Config{
		Addr:              ":0",
		Env:               "test",
		DataRoot:          t.TempDir(),
		PublicBaseURL:     "http://localhost:8080",
		AppSigningSecret:  "test-signing-secret-0123456789",
		MockPlaceName:     defaultMockPlaceName,
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: string(hash),
	}

	store, err := newLocalReportStore(cfg.DataRoot)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &App{
		cfg:             cfg,
		log:             logger,
		store:           store,
		mailer:          mailer.New(mailer.NewLogProvider(logger), "noreply@cleanmadurai.local"),
		geocoder:        &staticGeocoder{place: cfg.MockPlaceName},
		classifier:      newStubClassifier(0),
		drafts:          newDraftTable(),
		magicLinks:      newMagicLinkTable(),
		submitsInFlight: make(map[string]bool),
		rateBuckets:     make(map[string]rateBucket),
	}

	return app, app.buildRouter("")
}

func userRequest(t *testing.T, app *App, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	identity := app.identityForEmail("citizen@example.com")
	token, err := app.createUserSessionToken(identity)
	if err != nil {
		t.Fatalf("create user session token: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: userCookieName, Value: token})
	return req
}

func adminRequest(t *testing.T, app *App, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	token, err := app.createAdminSessionToken(AdminSession{Email: app.cfg.AdminEmail, Role: adminRole})
	if err != nil {
		t.Fatalf("create admin session token: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: adminCookieName, Value: token})
	return req
}

func multipartImage(t *testing.T, fieldName, fileName, mimeType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write multipart part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, writer.FormDataContentType()
}

func uploadDraftImage(t *testing.T, app *App, router *gin.Engine, data []byte, mimeType string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartImage(t, "image", "photo.png", mimeType, data)
	req := userRequest(t, app, http.MethodPost, "/api/v1/draft/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}
