package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karuppusamybecse-eng/CleanMaduraiAi/mailer"
)

func (a *App) requestMagicLinkHandler(c *gin.Context) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "Invalid request payload"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "Valid email required"})
		return
	}

	if !a.checkRateLimit("magiclink:"+c.ClientIP(), magicLinkRateLimit, submitRateLimitWindow, time.Now()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "Too many login requests. Try again later."})
		return
	}

	token := createMagicLinkToken()
	a.magicLinks.Issue(hashMagicLinkToken(token), email, time.Now().UTC().Add(magicLinkTokenExpiry))

	magicLinkURL := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", a.cfg.PublicBaseURL, token)

	msg := mailer.Message{
		To:      []string{email},
		Subject: "Your CleanMadurai AI login link",
		HTML:    fmt.Sprintf(`<p>Click the link below to log in to CleanMadurai AI:</p><p><a href="%s">Log in</a></p><p>This link expires in 15 minutes.</p>`, magicLinkURL),
		Text:    fmt.Sprintf("Click this link to log in: %s\n\nThis link expires in 15 minutes.", magicLinkURL),
	}

	result, err := a.mailer.Send(c.Request.Context(), msg)
	if err != nil {
		a.log.Error("failed to send magic link email", "email", email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to send email"})
		return
	}

	a.log.Info("magic link sent", "email", email, "provider", a.mailer.ProviderName(), "message_id", result.ProviderMessageID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) verifyMagicLinkHandler(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token", "message": "Token required"})
		return
	}

	email, ok := a.magicLinks.Consume(hashMagicLinkToken(token), time.Now().UTC())
	if !ok {
		writeAPIError(c, &AuthError{Reason: "invalid or expired token"})
		return
	}

	identity := a.identityForEmail(email)

	sessionToken, err := a.createUserSessionToken(identity)
	if err != nil {
		a.log.Error("failed to create user session token", "user_id", identity.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to create session"})
		return
	}

	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(userCookieName, sessionToken, int(userSessionDuration.Seconds()), "/", "", secure, true)

	a.log.Info("user logged in", "user_id", identity.ID)
	c.JSON(http.StatusOK, identity)
}

func (a *App) userSessionHandler(c *gin.Context) {
	token, err := c.Cookie(userCookieName)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	identity, err := a.verifyUserSessionToken(token)
	if err != nil {
		writeAPIError(c, &AuthError{Reason: "user session required"})
		return
	}

	c.JSON(http.StatusOK, identity)
}

func (a *App) userLogoutHandler(c *gin.Context) {
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(userCookieName, "", -1, "/", "", secure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
