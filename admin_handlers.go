package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const adminRole = "admin"

func (a *App) adminLoginHandler(c *gin.Context) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "Invalid request payload"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Password == "" {
		writeAPIError(c, &AuthError{Reason: "email and password required"})
		return
	}

	if !a.checkRateLimit("adminlogin:"+c.ClientIP(), adminLoginRateLimit, submitRateLimitWindow, time.Now()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "Too many login attempts. Try again later."})
		return
	}

	if !strings.EqualFold(email, a.cfg.AdminEmail) {
		writeAPIError(c, &AuthError{Reason: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(payload.Password)); err != nil {
		writeAPIError(c, &AuthError{Reason: "invalid credentials"})
		return
	}

	session := AdminSession{Email: email, Role: adminRole}
	token, err := a.createAdminSessionToken(session)
	if err != nil {
		a.log.Error("failed to create admin session token", "email", email, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to create session"})
		return
	}

	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(adminCookieName, token, int(adminSessionDuration.Seconds()), "/", "", secure, true)

	a.log.Info("admin logged in", "email", email)
	c.JSON(http.StatusOK, session)
}

func (a *App) adminLogoutHandler(c *gin.Context) {
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(adminCookieName, "", -1, "/", "", secure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *App) adminReportsHandler(c *gin.Context) {
	reports, err := a.store.ListAll(c.Request.Context())
	if err != nil {
		a.log.Error("failed to list reports", "err", err)
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAdminDashboard(reports, time.Now()))
}

func (a *App) adminResolveHandler(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		writeAPIError(c, &ValidationError{Field: "id", Reason: "report id required"})
		return
	}

	if err := a.store.MarkResolved(c.Request.Context(), id); err != nil {
		a.log.Error("failed to resolve report", "report_id", id, "err", err)
		writeAPIError(c, err)
		return
	}

	a.log.Info("report resolved", "report_id", id)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": statusResolved})
}

func (a *App) adminExportHandler(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "pdf" {
		writeAPIError(c, &ValidationError{Field: "format", Reason: "format must be csv or pdf"})
		return
	}

	reports, err := a.store.ListAll(c.Request.Context())
	if err != nil {
		a.log.Error("failed to list reports for export", "err", err)
		writeAPIError(c, err)
		return
	}

	now := time.Now()
	baseName := fmt.Sprintf("waste-reports-%s", now.UTC().Format("2006-01-02"))

	switch format {
	case "pdf":
		data, err := buildReportsPDF(reports, now)
		if err != nil {
			a.log.Error("failed to build pdf export", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to build export"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, baseName))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		data, err := buildReportsCSV(reports)
		if err != nil {
			a.log.Error("failed to build csv export", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to build export"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, baseName))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(data))
	}
}
