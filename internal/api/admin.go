package api

import (
	"errors"
	"net/http"
	"time"

	"questboard/internal/middleware"
	"questboard/internal/model"
	"questboard/internal/service"
	"questboard/pkg/auth"
	"questboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type adminRoutes struct {
	qs service.QuestServiceI
	ws service.WithdrawalServiceI
}

func NewAdminRoutes(handler *gin.RouterGroup, qs service.QuestServiceI, ws service.WithdrawalServiceI, a *auth.SessionAuth, authz *middleware.Authorization) {
	r := &adminRoutes{qs: qs, ws: ws}

	h := handler.Group("/admin")
	h.Use(a.SessionMiddleware())
	h.Use(authz.AdminOnly())
	{
		h.POST("/quests", r.CreateQuest)
		h.POST("/quests/:quest_id/tasks", r.AddTask)
		h.DELETE("/quests/:quest_id/tasks/:task_id", r.RemoveTask)

		h.GET("/withdrawals", r.ListPendingWithdrawals)
		h.POST("/withdrawals/:transaction_id/approve", r.ApproveWithdrawal)
		h.POST("/withdrawals/:transaction_id/reject", r.RejectWithdrawal)
	}
}

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	TaskType    string `json:"task_type" binding:"required"`
	XPReward    int    `json:"xp_reward"`
	IsDaily     bool   `json:"is_daily"`

	ButtonText *string `json:"button_text"`
	ButtonLink *string `json:"button_link"`
	InputLabel *string `json:"input_label"`
	InputName  *string `json:"input_name"`

	RequirementURL      string `json:"requirement_url"`
	RequirementPlatform string `json:"requirement_platform"`
	RequirementAction   string `json:"requirement_action"`
}

type CreateQuestRequest struct {
	Title            string   `json:"title" binding:"required"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	QuestType        string   `json:"quest_type" binding:"required"`
	Tags             []string `json:"tags"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	BaseXPReward int     `json:"base_xp_reward"`
	USDCReward   string  `json:"usdc_reward"`
	BadgeReward  *string `json:"badge_reward"`

	IsActive        bool `json:"is_active"`
	MaxParticipants *int `json:"max_participants"`

	ReferralEnabled       bool `json:"referral_enabled"`
	XPPerReferralJoin     int  `json:"xp_per_referral_join"`
	XPPerReferralComplete int  `json:"xp_per_referral_complete"`

	CompetitionEnabled bool `json:"competition_enabled"`
	TopWinnersCount    int  `json:"top_winners_count"`
	WinnerBonusXP      int  `json:"winner_bonus_xp"`

	Tasks []CreateTaskRequest `json:"tasks"`
}

func (r *adminRoutes) CreateQuest(c *gin.Context) {
	log := logger.Logger()

	var req CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	usdcReward := decimal.Zero
	if req.USDCReward != "" {
		parsed, err := decimal.NewFromString(req.USDCReward)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid usdc_reward"})
			return
		}
		usdcReward = parsed
	}

	quest := &model.Quest{
		Title:            req.Title,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Category:         req.Category,
		Difficulty:       req.Difficulty,
		QuestType:        model.QuestType(req.QuestType),
		Tags:             req.Tags,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		BaseXPReward:     req.BaseXPReward,
		USDCReward:       usdcReward,
		BadgeReward:      req.BadgeReward,
		IsActive:         req.IsActive,
		MaxParticipants:  req.MaxParticipants,
		ReferralConfig: model.ReferralConfig{
			Enabled:               req.ReferralEnabled,
			XPPerReferralJoin:     req.XPPerReferralJoin,
			XPPerReferralComplete: req.XPPerReferralComplete,
		},
		CompetitionConfig: model.CompetitionConfig{
			Enabled:         req.CompetitionEnabled,
			TopWinnersCount: req.TopWinnersCount,
			WinnerBonusXP:   req.WinnerBonusXP,
		},
	}

	for _, t := range req.Tasks {
		task := taskFromRequest(t)
		if t.IsDaily {
			quest.DailyTasks = append(quest.DailyTasks, task)
		} else {
			quest.Tasks = append(quest.Tasks, task)
		}
	}

	created, err := r.qs.CreateQuest(c.Request.Context(), quest)
	if err != nil {
		log.Error("failed to create quest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create quest"})
		return
	}

	c.JSON(http.StatusCreated, questDetail(created))
}

func (r *adminRoutes) AddTask(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task := taskFromRequest(req)
	created, err := r.qs.AddTask(c.Request.Context(), questID, &task)
	if err != nil {
		if errors.Is(err, service.ErrQuestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		log.Error("failed to add task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add task"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        created.ID,
		"title":     created.Title,
		"order":     created.Order,
		"task_type": created.TaskType,
		"xp_reward": created.XPReward,
	})
}

func (r *adminRoutes) RemoveTask(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
		return
	}

	err = r.qs.RemoveTask(c.Request.Context(), questID, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		log.Error("failed to remove task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (r *adminRoutes) ListPendingWithdrawals(c *gin.Context) {
	log := logger.Logger()

	txns, err := r.ws.ListPendingWithdrawals(c.Request.Context())
	if err != nil {
		log.Error("failed to list pending withdrawals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pending withdrawals"})
		return
	}

	out := make([]gin.H, len(txns))
	for i, txn := range txns {
		view := transactionView(txn)
		view["user_id"] = txn.UserID
		out[i] = view
	}

	c.JSON(http.StatusOK, out)
}

type ApproveWithdrawalRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

func (r *adminRoutes) ApproveWithdrawal(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction_id"})
		return
	}

	var req ApproveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	txn, err := r.ws.ApproveWithdrawal(c.Request.Context(), transactionID, session.UserID, req.TxHash)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending withdrawal with that id"})
			return
		}
		log.Error("failed to approve withdrawal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve withdrawal"})
		return
	}

	c.JSON(http.StatusOK, transactionView(txn))
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (r *adminRoutes) RejectWithdrawal(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction_id"})
		return
	}

	var req RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	txn, err := r.ws.RejectWithdrawal(c.Request.Context(), transactionID, session.UserID, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending withdrawal with that id"})
			return
		}
		log.Error("failed to reject withdrawal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject withdrawal"})
		return
	}

	c.JSON(http.StatusOK, transactionView(txn))
}

func taskFromRequest(t CreateTaskRequest) model.Task {
	return model.Task{
		Title:       t.Title,
		Description: t.Description,
		Order:       t.Order,
		TaskType:    model.TaskType(t.TaskType),
		XPReward:    t.XPReward,
		IsDaily:     t.IsDaily,
		ButtonText:  t.ButtonText,
		ButtonLink:  t.ButtonLink,
		InputLabel:  t.InputLabel,
		InputName:   t.InputName,
		Requirements: model.TaskRequirements{
			URL:      t.RequirementURL,
			Platform: t.RequirementPlatform,
			Action:   t.RequirementAction,
		},
	}
}
