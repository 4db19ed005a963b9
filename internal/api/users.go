package api

import (
	"errors"
	"net/http"
	"strconv"

	"questboard/internal/model"
	"questboard/internal/service"
	"questboard/pkg/auth"
	"questboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type userRoutes struct {
	us service.UserServiceI
	a  *auth.SessionAuth
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.SessionAuth) {
	r := &userRoutes{us: us, a: a}

	h := handler.Group("/auth")
	{
		h.POST("/register", r.Register)
		h.POST("/login", r.Login)
		h.POST("/logout", r.Logout)
	}

	u := handler.Group("/users")
	u.Use(a.SessionMiddleware())
	{
		u.POST("/verify", r.VerifyEmail)
		u.GET("/me", r.GetMe)
		u.GET("/me/activity", r.GetActivity)
		u.GET("/me/referrals", r.GetReferrals)
		u.GET("/leaderboard", r.GetLeaderboard)
	}
}

type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

func (r *userRoutes) Register(c *gin.Context) {
	log := logger.Logger()

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := r.us.Register(c.Request.Context(), service.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken),
			errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("failed to register user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}

	r.setSessionCookie(c, user)

	c.JSON(http.StatusCreated, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"referral_code": user.ReferralCode,
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (r *userRoutes) Login(c *gin.Context) {
	log := logger.Logger()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := r.us.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		log.Error("failed to log in user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	r.setSessionCookie(c, user)

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"is_admin": user.IsAdmin,
	})
}

func (r *userRoutes) Logout(c *gin.Context) {
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (r *userRoutes) VerifyEmail(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user, err := r.us.VerifyEmail(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error("failed to verify email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"is_verified": user.IsVerified,
	})
}

func (r *userRoutes) GetMe(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user, err := r.us.GetUser(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"is_admin":       user.IsAdmin,
		"is_verified":    user.IsVerified,
		"xp":             user.XP,
		"usdc_balance":   user.USDCBalance,
		"wallet_address": user.WalletAddress,
		"bio":            user.Bio,
		"twitter":        user.Twitter,
		"github":         user.Github,
		"telegram":       user.Telegram,
		"referral_code":  user.ReferralCode,
		"referral_stats": gin.H{
			"total_referrals":   user.ReferralStats.TotalReferrals,
			"active_referrals":  user.ReferralStats.ActiveReferrals,
			"pending_referrals": user.ReferralStats.PendingReferrals,
			"total_earned":      user.ReferralStats.TotalEarned,
		},
		"created_at": user.CreatedAt,
	})
}

func (r *userRoutes) GetActivity(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	activity, err := r.us.GetRecentActivity(c.Request.Context(), session.UserID)
	if err != nil {
		log.Error("failed to get activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get activity"})
		return
	}

	out := make([]gin.H, len(activity))
	for i, a := range activity {
		out[i] = gin.H{
			"action":    a.Action,
			"timestamp": a.Timestamp,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	users, err := r.us.GetGlobalLeaderboard(c.Request.Context(), limit)
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	out := make([]gin.H, len(users))
	for i, u := range users {
		out[i] = gin.H{
			"rank":            i + 1,
			"username":        u.Username,
			"xp":              u.XP,
			"total_referrals": u.TotalReferrals,
		}
	}

	c.JSON(http.StatusOK, out)
}

type userReferral struct {
	Username   string `json:"username"`
	IsVerified bool   `json:"is_verified"`
	XP         int    `json:"xp"`
}

func (r *userRoutes) GetReferrals(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	referrals, err := r.us.GetReferrals(c.Request.Context(), session.UserID)
	if err != nil {
		log.Error("failed to get referrals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referrals"})
		return
	}

	out := make([]userReferral, len(referrals))
	for i, ref := range referrals {
		out[i] = userReferral{
			Username:   ref.Username,
			IsVerified: ref.IsVerified,
			XP:         ref.XP,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *userRoutes) setSessionCookie(c *gin.Context, user *model.User) {
	token, err := r.a.IssueToken(user.ID, user.IsAdmin)
	if err != nil {
		logger.Logger().Error("failed to issue session token", zap.Error(err))
		return
	}
	c.SetCookie(auth.SessionCookieName, token, r.a.CookieTTLSeconds(), "/", "", false, true)
}
