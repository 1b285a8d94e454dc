package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the citizen identity attached to a user session.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// AdminSession identifies a logged-in administrator.
type AdminSession struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// identityForEmail derives a stable citizen identity from an email
// address. The same email always maps to the same id, so reports
// submitted across sessions stay attributable to one citizen.
func (a *App) identityForEmail(email string) Identity {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", email, a.cfg.AppSigningSecret)))
	id := "u-" + hex.EncodeToString(h[:])[:16]

	displayName := email
	if at := strings.Index(email, "@"); at > 0 {
		displayName = email[:at]
	}

	return Identity{
		ID:          id,
		DisplayName: displayName,
		AvatarURL:   buildAvatarURL(displayName),
	}
}

// buildAvatarURL points at a generated initials avatar for identities
// without a profile picture.
func buildAvatarURL(displayName string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=10B981&color=fff", url.QueryEscape(displayName))
}

func (a *App) createUserSessionToken(identity Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":          identity.ID,
		"display_name": identity.DisplayName,
		"avatar_url":   identity.AvatarURL,
		"iat":          time.Now().Unix(),
		"exp":          time.Now().Add(userSessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyUserSessionToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid user session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	id, _ := claims["sub"].(string)
	displayName, _ := claims["display_name"].(string)
	avatarURL, _ := claims["avatar_url"].(string)
	if id == "" || displayName == "" {
		return nil, fmt.Errorf("invalid user session payload")
	}
	return &Identity{ID: id, DisplayName: displayName, AvatarURL: avatarURL}, nil
}

func (a *App) createAdminSessionToken(session AdminSession) (string, error) {
	claims := jwt.MapClaims{
		"email": session.Email,
		"role":  session.Role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(adminSessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyAdminSessionToken(tokenString string) (*AdminSession, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if email == "" || role != adminRole {
		return nil, fmt.Errorf("invalid session payload")
	}
	return &AdminSession{Email: email, Role: role}, nil
}

func createMagicLinkToken() string {
	return uuid.NewString()
}

func hashMagicLinkToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// magicLinkRecord is a pending login token. Tokens are stored hashed
// and consumed on first use.
type magicLinkRecord struct {
	email     string
	expiresAt time.Time
}

type magicLinkTable struct {
	mu     sync.Mutex
	tokens map[string]magicLinkRecord
}

func newMagicLinkTable() *magicLinkTable {
	return &magicLinkTable{tokens: make(map[string]magicLinkRecord)}
}

func (t *magicLinkTable) Issue(tokenHash, email string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[tokenHash] = magicLinkRecord{email: email, expiresAt: expiresAt}
}

// Consume returns the email for a valid token hash and deletes the
// record, so a token verifies at most once.
func (t *magicLinkTable) Consume(tokenHash string, now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.tokens[tokenHash]
	if !ok {
		return "", false
	}
	delete(t.tokens, tokenHash)
	if now.After(record.expiresAt) {
		return "", false
	}
	return record.email, true
}

func (t *magicLinkTable) Prune(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for hash, record := range t.tokens {
		if now.After(record.expiresAt) {
			delete(t.tokens, hash)
		}
	}
}

type rateBucket struct {
	start time.Time
	count int
}

func (a *App) checkRateLimit(key string, maxRequests int, window time.Duration, now time.Time) bool {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()

	bucket, ok := a.rateBuckets[key]
	if !ok || now.Sub(bucket.start) >= window {
		a.rateBuckets[key] = rateBucket{start: now, count: 1}
		return true
	}
	bucket.count++
	a.rateBuckets[key] = bucket
	return bucket.count <= maxRequests
}

func (a *App) startRateLimiterCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.pruneRateLimiterState(now)
			}
		}
	}()
}

func (a *App) pruneRateLimiterState(now time.Time) {
	a.rateLimiterMu.Lock()
	for key, bucket := range a.rateBuckets {
		if now.Sub(bucket.start) >= submitRateLimitWindow {
			delete(a.rateBuckets, key)
		}
	}
	a.rateLimiterMu.Unlock()

	a.magicLinks.Prune(now)
}

// beginSubmit marks a submission in flight for the user. It returns
// false while a previous submission for the same user has not finished.
func (a *App) beginSubmit(userID string) bool {
	a.submitMu.Lock()
	defer a.submitMu.Unlock()
	if a.submitsInFlight[userID] {
		return false
	}
	a.submitsInFlight[userID] = true
	return true
}

func (a *App) endSubmit(userID string) {
	a.submitMu.Lock()
	defer a.submitMu.Unlock()
	delete(a.submitsInFlight, userID)
}

func (a *App) requireUserSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(userCookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "User session required"})
			c.Abort()
			return
		}
		identity, err := a.verifyUserSessionToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "User session required"})
			c.Abort()
			return
		}
		c.Set("identity", *identity)
		c.Next()
	}
}

func getIdentity(c *gin.Context) (Identity, error) {
	value, ok := c.Get("identity")
	if !ok {
		return Identity{}, fmt.Errorf("missing user session")
	}
	identity, ok := value.(Identity)
	if !ok {
		return Identity{}, fmt.Errorf("invalid user session")
	}
	return identity, nil
}

func (a *App) requireAdminSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Admin session required"})
			c.Abort()
			return
		}
		session, err := a.verifyAdminSessionToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Admin session required"})
			c.Abort()
			return
		}
		c.Set("adminSession", *session)
		c.Next()
	}
}
