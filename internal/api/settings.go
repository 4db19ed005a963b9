package api

import (
	"errors"
	"net/http"

	"questboard/internal/model"
	"questboard/internal/service"
	"questboard/pkg/auth"
	"questboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type settingsRoutes struct {
	ss service.SettingsServiceI
}

func NewSettingsRoutes(handler *gin.RouterGroup, ss service.SettingsServiceI, a *auth.SessionAuth) {
	r := &settingsRoutes{ss: ss}

	h := handler.Group("/settings")
	h.Use(a.SessionMiddleware())
	{
		h.PATCH("/profile", r.UpdateProfile)
		h.PATCH("/password", r.UpdatePassword)
		h.PATCH("/notifications", r.UpdateNotifications)
		h.PATCH("/privacy", r.UpdatePrivacy)
		h.POST("/wallet", r.ConnectWallet)
	}
}

type UpdateProfileRequest struct {
	Bio      string `json:"bio"`
	Twitter  string `json:"twitter"`
	Github   string `json:"github"`
	Telegram string `json:"telegram"`
}

func (r *settingsRoutes) UpdateProfile(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.ss.UpdateProfile(c.Request.Context(), session.UserID, service.ProfileUpdate{
		Bio:      req.Bio,
		Twitter:  req.Twitter,
		Github:   req.Github,
		Telegram: req.Telegram,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error("failed to update profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (r *settingsRoutes) UpdatePassword(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.ss.UpdatePassword(c.Request.Context(), session.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "current password is incorrect"})
		case errors.Is(err, service.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			log.Error("failed to update password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type UpdateNotificationsRequest struct {
	NewQuests         bool `json:"new_quests"`
	NewBounties       bool `json:"new_bounties"`
	EventReminders    bool `json:"event_reminders"`
	WeeklyDigest      bool `json:"weekly_digest"`
	SubmissionUpdates bool `json:"submission_updates"`
}

func (r *settingsRoutes) UpdateNotifications(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req UpdateNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.ss.UpdateNotifications(c.Request.Context(), session.UserID, model.NotificationPrefs{
		NewQuests:         req.NewQuests,
		NewBounties:       req.NewBounties,
		EventReminders:    req.EventReminders,
		WeeklyDigest:      req.WeeklyDigest,
		SubmissionUpdates: req.SubmissionUpdates,
	})
	if err != nil {
		log.Error("failed to update notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type UpdatePrivacyRequest struct {
	ShowOnLeaderboard bool `json:"show_on_leaderboard"`
	PublicProfile     bool `json:"public_profile"`
}

func (r *settingsRoutes) UpdatePrivacy(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req UpdatePrivacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.ss.UpdatePrivacy(c.Request.Context(), session.UserID, model.PrivacyPrefs{
		ShowOnLeaderboard: req.ShowOnLeaderboard,
		PublicProfile:     req.PublicProfile,
	})
	if err != nil {
		log.Error("failed to update privacy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update privacy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type ConnectWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (r *settingsRoutes) ConnectWallet(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req ConnectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := r.ss.ConnectWallet(c.Request.Context(), session.UserID, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		case errors.Is(err, service.ErrWalletLocked):
			c.JSON(http.StatusConflict, gin.H{"error": "wallet address is already set"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			log.Error("failed to connect wallet", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect wallet"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}
