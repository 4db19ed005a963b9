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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type questRoutes struct {
	qs service.QuestServiceI
}

func NewQuestRoutes(handler *gin.RouterGroup, qs service.QuestServiceI, a *auth.SessionAuth) {
	r := &questRoutes{qs: qs}

	h := handler.Group("/quests")
	h.Use(a.SessionMiddleware())
	{
		h.GET("/", r.ListQuests)
		h.GET("/:quest_id", r.GetQuest)
		h.GET("/:quest_id/leaderboard", r.GetQuestLeaderboard)
		h.GET("/:quest_id/progress", r.GetProgress)
		h.POST("/:quest_id/start", r.StartQuest)
		h.POST("/:quest_id/abandon", r.AbandonQuest)
		h.POST("/:quest_id/tasks/:task_id/submit", r.SubmitTask)
	}
}

func (r *questRoutes) ListQuests(c *gin.Context) {
	log := logger.Logger()

	quests, err := r.qs.ListQuests(c.Request.Context())
	if err != nil {
		log.Error("failed to list quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list quests"})
		return
	}

	out := make([]gin.H, len(quests))
	for i, q := range quests {
		out[i] = questSummary(q)
	}

	c.JSON(http.StatusOK, out)
}

func (r *questRoutes) GetQuest(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	quest, err := r.qs.GetQuest(c.Request.Context(), questID)
	if err != nil {
		if errors.Is(err, service.ErrQuestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		log.Error("failed to get quest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, questDetail(quest))
}

func (r *questRoutes) GetProgress(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	progress, err := r.qs.GetProgress(c.Request.Context(), session.UserID, questID)
	if err != nil {
		if errors.Is(err, service.ErrProgressNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not started"})
			return
		}
		log.Error("failed to get progress", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, progressView(progress))
}

func (r *questRoutes) StartQuest(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	progress, err := r.qs.StartQuest(c.Request.Context(), session.UserID, questID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		case errors.Is(err, service.ErrQuestNotAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": "quest is not currently available"})
		case errors.Is(err, service.ErrQuestAlreadyStarted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already started"})
		case errors.Is(err, service.ErrQuestAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed"})
		default:
			log.Error("failed to start quest", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start quest"})
		}
		return
	}

	c.JSON(http.StatusCreated, progressView(progress))
}

func (r *questRoutes) AbandonQuest(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	err = r.qs.AbandonQuest(c.Request.Context(), session.UserID, questID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProgressNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not started"})
		case errors.Is(err, service.ErrQuestAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed"})
		default:
			log.Error("failed to abandon quest", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to abandon quest"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

type SubmitTaskRequest struct {
	SubmissionURL  string         `json:"submission_url"`
	SubmissionText string         `json:"submission_text"`
	SubmissionData map[string]any `json:"submission_data"`
}

func (r *questRoutes) SubmitTask(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

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

	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := r.qs.SubmitTask(c.Request.Context(), session.UserID, questID, taskID, service.TaskSubmission{
		URL:  req.SubmissionURL,
		Text: req.SubmissionText,
		Data: req.SubmissionData,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestNotFound),
			errors.Is(err, service.ErrProgressNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not started"})
		case errors.Is(err, service.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case errors.Is(err, service.ErrTaskAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "task already completed"})
		case errors.Is(err, service.ErrQuestAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed"})
		case errors.Is(err, service.ErrQuestNotAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": "quest is not active"})
		default:
			log.Error("failed to submit task", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit task"})
		}
		return
	}

	out := gin.H{
		"quest_completed": result.QuestCompleted,
		"task_xp_earned":  result.TaskXPEarned,
		"progress":        progressView(result.Progress),
	}
	if result.QuestCompleted {
		out["rewards"] = gin.H{
			"total_xp":     result.RewardXP,
			"usdc":         result.RewardUSDC,
			"badge_earned": result.BadgeEarned,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *questRoutes) GetQuestLeaderboard(c *gin.Context) {
	log := logger.Logger()

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := r.qs.GetQuestLeaderboard(c.Request.Context(), questID, limit)
	if err != nil {
		log.Error("failed to get quest leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	var yourRank *int
	out := make([]gin.H, len(entries))
	for i, e := range entries {
		out[i] = gin.H{
			"rank":               e.Rank,
			"username":           e.Username,
			"total_xp":           e.TotalXP,
			"completed_at":       e.CompletedAt,
			"time_spent_minutes": e.TimeSpentMinutes,
			"is_winner":          e.IsWinner,
		}
		if session, ok := auth.SessionFromContext(c); ok && e.UserID == session.UserID {
			rank := e.Rank
			yourRank = &rank
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":   out,
		"your_rank": yourRank,
	})
}

func questSummary(q *model.Quest) gin.H {
	return gin.H{
		"id":                 q.ID,
		"title":              q.Title,
		"short_description":  q.ShortDescription,
		"category":           q.Category,
		"difficulty":         q.Difficulty,
		"quest_type":         q.QuestType,
		"tags":               q.Tags,
		"base_xp_reward":     q.BaseXPReward,
		"usdc_reward":        q.USDCReward,
		"badge_reward":       q.BadgeReward,
		"start_date":         q.StartDate,
		"end_date":           q.EndDate,
		"max_participants":   q.MaxParticipants,
		"total_participants": q.TotalParticipants,
		"total_completions":  q.TotalCompletions,
	}
}

func questDetail(q *model.Quest) gin.H {
	out := questSummary(q)
	out["description"] = q.Description
	out["total_attempts"] = q.TotalAttempts
	out["average_completion_time"] = q.AverageCompletionTime
	out["referral_config"] = gin.H{
		"enabled":                  q.ReferralConfig.Enabled,
		"xp_per_referral_join":     q.ReferralConfig.XPPerReferralJoin,
		"xp_per_referral_complete": q.ReferralConfig.XPPerReferralComplete,
	}
	out["competition_config"] = gin.H{
		"enabled":           q.CompetitionConfig.Enabled,
		"top_winners_count": q.CompetitionConfig.TopWinnersCount,
		"winner_bonus_xp":   q.CompetitionConfig.WinnerBonusXP,
	}
	out["tasks"] = taskViews(q.Tasks)
	out["daily_tasks"] = taskViews(q.DailyTasks)
	return out
}

func taskViews(tasks []model.Task) []gin.H {
	out := make([]gin.H, len(tasks))
	for i, t := range tasks {
		out[i] = gin.H{
			"id":          t.ID,
			"title":       t.Title,
			"description": t.Description,
			"order":       t.Order,
			"task_type":   t.TaskType,
			"xp_reward":   t.XPReward,
			"button_text": t.ButtonText,
			"button_link": t.ButtonLink,
			"input_label": t.InputLabel,
			"input_name":  t.InputName,
		}
	}
	return out
}

func progressView(p *model.QuestProgress) gin.H {
	tasks := make([]gin.H, len(p.TaskProgress))
	for i, t := range p.TaskProgress {
		tasks[i] = gin.H{
			"task_id":      t.TaskID,
			"is_completed": t.IsCompleted,
			"completed_at": t.CompletedAt,
			"xp_earned":    t.XPEarned,
		}
	}

	return gin.H{
		"id":              p.ID,
		"quest_id":        p.QuestID,
		"status":          p.Status,
		"progress":        p.Progress,
		"tasks_completed": p.TasksCompleted,
		"total_tasks":     p.TotalTasks,
		"tasks":           tasks,
		"started_at":      p.StartedAt,
		"completed_at":    p.CompletedAt,
		"xp_breakdown": gin.H{
			"task_xp":                 p.XPBreakdown.TaskXP,
			"base_xp":                 p.XPBreakdown.BaseXP,
			"referral_join_bonus":     p.XPBreakdown.ReferralJoinBonus,
			"referral_complete_bonus": p.XPBreakdown.ReferralCompleteBonus,
			"winner_bonus":            p.XPBreakdown.WinnerBonus,
			"total_xp":                p.XPBreakdown.TotalXP,
		},
		"leaderboard_rank": p.LeaderboardRank,
		"is_winner":        p.IsWinner,
		"winner_rank":      p.WinnerRank,
		"usdc_earned":      p.USDCEarned,
		"badge_earned":     p.BadgeEarned,
	}
}
