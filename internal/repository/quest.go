package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questboard/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type quest struct {
	ID               uuid.UUID `db:"id"`
	Title            string    `db:"title"`
	Description      string    `db:"description"`
	ShortDescription string    `db:"short_description"`
	Category         string    `db:"category"`
	Difficulty       string    `db:"difficulty"`
	QuestType        string    `db:"quest_type"`

	Tags pq.StringArray `db:"tags"`

	StartDate *time.Time `db:"start_date"`
	EndDate   *time.Time `db:"end_date"`

	ReferralEnabled       bool `db:"referral_enabled"`
	XPPerReferralJoin     int  `db:"xp_per_referral_join"`
	XPPerReferralComplete int  `db:"xp_per_referral_complete"`

	CompetitionEnabled bool `db:"competition_enabled"`
	TopWinnersCount    int  `db:"top_winners_count"`
	WinnerBonusXP      int  `db:"winner_bonus_xp"`

	BaseXPReward int             `db:"base_xp_reward"`
	USDCReward   decimal.Decimal `db:"usdc_reward"`
	BadgeReward  *string         `db:"badge_reward"`

	IsActive        bool `db:"is_active"`
	MaxParticipants *int `db:"max_participants"`

	TotalParticipants     int `db:"total_participants"`
	TotalCompletions      int `db:"total_completions"`
	TotalAttempts         int `db:"total_attempts"`
	AverageCompletionTime int `db:"average_completion_time"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type questTask struct {
	ID          uuid.UUID `db:"id"`
	QuestID     uuid.UUID `db:"quest_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TaskOrder   int       `db:"task_order"`
	TaskType    string    `db:"task_type"`
	XPReward    int       `db:"xp_reward"`
	IsDaily     bool      `db:"is_daily"`
	ButtonText  *string   `db:"button_text"`
	ButtonLink  *string   `db:"button_link"`
	InputLabel  *string   `db:"input_label"`
	InputName   *string   `db:"input_name"`
	ReqURL      string    `db:"req_url"`
	ReqPlatform string    `db:"req_platform"`
	ReqAction   string    `db:"req_action"`
}

func (q *quest) toModel(tasks []questTask) *model.Quest {
	m := &model.Quest{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		ShortDescription: q.ShortDescription,
		Category:         q.Category,
		Difficulty:       q.Difficulty,
		QuestType:        model.QuestType(q.QuestType),
		Tags:             []string(q.Tags),
		StartDate:        q.StartDate,
		EndDate:          q.EndDate,
		ReferralConfig: model.ReferralConfig{
			Enabled:               q.ReferralEnabled,
			XPPerReferralJoin:     q.XPPerReferralJoin,
			XPPerReferralComplete: q.XPPerReferralComplete,
		},
		CompetitionConfig: model.CompetitionConfig{
			Enabled:         q.CompetitionEnabled,
			TopWinnersCount: q.TopWinnersCount,
			WinnerBonusXP:   q.WinnerBonusXP,
		},
		BaseXPReward:          q.BaseXPReward,
		USDCReward:            q.USDCReward,
		BadgeReward:           q.BadgeReward,
		IsActive:              q.IsActive,
		MaxParticipants:       q.MaxParticipants,
		TotalParticipants:     q.TotalParticipants,
		TotalCompletions:      q.TotalCompletions,
		TotalAttempts:         q.TotalAttempts,
		AverageCompletionTime: q.AverageCompletionTime,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}

	for _, t := range tasks {
		task := t.toModel()
		if t.IsDaily {
			m.DailyTasks = append(m.DailyTasks, task)
		} else {
			m.Tasks = append(m.Tasks, task)
		}
	}

	return m
}

func (t *questTask) toModel() model.Task {
	return model.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Order:       t.TaskOrder,
		TaskType:    model.TaskType(t.TaskType),
		XPReward:    t.XPReward,
		IsDaily:     t.IsDaily,
		ButtonText:  t.ButtonText,
		ButtonLink:  t.ButtonLink,
		InputLabel:  t.InputLabel,
		InputName:   t.InputName,
		Requirements: model.TaskRequirements{
			URL:      t.ReqURL,
			Platform: t.ReqPlatform,
			Action:   t.ReqAction,
		},
	}
}

func (r *Repository) CreateQuest(ctx context.Context, q *model.Quest) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("quests").
			SetMap(map[string]interface{}{
				"id":                       q.ID,
				"title":                    q.Title,
				"description":              q.Description,
				"short_description":        q.ShortDescription,
				"category":                 q.Category,
				"difficulty":               q.Difficulty,
				"quest_type":               string(q.QuestType),
				"tags":                     pq.Array(q.Tags),
				"start_date":               q.StartDate,
				"end_date":                 q.EndDate,
				"referral_enabled":         q.ReferralConfig.Enabled,
				"xp_per_referral_join":     q.ReferralConfig.XPPerReferralJoin,
				"xp_per_referral_complete": q.ReferralConfig.XPPerReferralComplete,
				"competition_enabled":      q.CompetitionConfig.Enabled,
				"top_winners_count":        q.CompetitionConfig.TopWinnersCount,
				"winner_bonus_xp":          q.CompetitionConfig.WinnerBonusXP,
				"base_xp_reward":           q.BaseXPReward,
				"usdc_reward":              q.USDCReward,
				"badge_reward":             q.BadgeReward,
				"is_active":                q.IsActive,
				"max_participants":         q.MaxParticipants,
				"created_at":               time.Now().UTC(),
				"updated_at":               time.Now().UTC(),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build quest insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert quest: %w", err)
		}

		tasks := q.AllTasks()
		if len(tasks) == 0 {
			return nil
		}

		builder := squirrel.
			Insert("quest_tasks").
			Columns("id", "quest_id", "title", "description", "task_order", "task_type",
				"xp_reward", "is_daily", "button_text", "button_link", "input_label",
				"input_name", "req_url", "req_platform", "req_action")

		for _, t := range tasks {
			builder = builder.Values(t.ID, q.ID, t.Title, t.Description, t.Order,
				string(t.TaskType), t.XPReward, t.IsDaily, t.ButtonText, t.ButtonLink,
				t.InputLabel, t.InputName, t.Requirements.URL, t.Requirements.Platform,
				t.Requirements.Action)
		}

		taskQuery, taskArgs, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build task insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, taskQuery, taskArgs...); err != nil {
			return fmt.Errorf("failed to insert quest tasks: %w", err)
		}

		return nil
	})
}

func (r *Repository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	query, args, err := squirrel.
		Select("*").
		From("quests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var q quest
	err = r.db.GetContext(ctx, &q, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}

	tasks, err := r.getQuestTasks(ctx, id)
	if err != nil {
		return nil, err
	}

	return q.toModel(tasks), nil
}

func (r *Repository) getQuestTasks(ctx context.Context, questID uuid.UUID) ([]questTask, error) {
	query, args, err := squirrel.
		Select("*").
		From("quest_tasks").
		Where(squirrel.Eq{"quest_id": questID}).
		OrderBy("is_daily", "task_order").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var tasks []questTask
	err = r.db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get quest tasks: %w", err)
	}

	return tasks, nil
}

// ListActiveQuests returns every quest flagged active, newest first. Date
// window and capacity filtering happens in the service.
func (r *Repository) ListActiveQuests(ctx context.Context) ([]*model.Quest, error) {
	query, args, err := squirrel.
		Select("*").
		From("quests").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []quest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}

	quests := make([]*model.Quest, len(rows))
	for i := range rows {
		tasks, err := r.getQuestTasks(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		quests[i] = rows[i].toModel(tasks)
	}

	return quests, nil
}

// RegisterQuestAttempt bumps the monotonic attempt/participant counters.
// There is no decrement on abandonment.
func (r *Repository) RegisterQuestAttempt(ctx context.Context, questID uuid.UUID) error {
	query, args, err := squirrel.
		Update("quests").
		Set("total_attempts", squirrel.Expr("total_attempts + 1")).
		Set("total_participants", squirrel.Expr("total_participants + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// AddTaskToQuest inserts a task and fans it out to every progress record
// that can still be worked: a zeroed task row is added, total_tasks is
// bumped, and the progress percentage is recomputed.
func (r *Repository) AddTaskToQuest(ctx context.Context, questID uuid.UUID, t *model.Task) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("quest_tasks").
			SetMap(map[string]interface{}{
				"id":           t.ID,
				"quest_id":     questID,
				"title":        t.Title,
				"description":  t.Description,
				"task_order":   t.Order,
				"task_type":    string(t.TaskType),
				"xp_reward":    t.XPReward,
				"is_daily":     t.IsDaily,
				"button_text":  t.ButtonText,
				"button_link":  t.ButtonLink,
				"input_label":  t.InputLabel,
				"input_name":   t.InputName,
				"req_url":      t.Requirements.URL,
				"req_platform": t.Requirements.Platform,
				"req_action":   t.Requirements.Action,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build task insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}

		fanOut := `
			INSERT INTO task_progress (progress_id, task_id, is_completed)
			SELECT id, $1, FALSE
			FROM quest_progress
			WHERE quest_id = $2 AND status IN ('not_started', 'in_progress', 'abandoned')`
		if _, err := tx.ExecContext(ctx, fanOut, t.ID, questID); err != nil {
			return fmt.Errorf("failed to fan out task to progress records: %w", err)
		}

		recount := `
			UPDATE quest_progress
			SET total_tasks = total_tasks + 1,
			    progress = ROUND(tasks_completed * 100.0 / (total_tasks + 1))
			WHERE quest_id = $1 AND status IN ('not_started', 'in_progress', 'abandoned')`
		if _, err := tx.ExecContext(ctx, recount, questID); err != nil {
			return fmt.Errorf("failed to recount progress records: %w", err)
		}

		return nil
	})
}

// RemoveTaskFromQuest deletes a task and removes its progress rows from
// records that can still be worked, recounting their completion state.
// Completed records keep their history.
func (r *Repository) RemoveTaskFromQuest(ctx context.Context, questID, taskID uuid.UUID) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Delete("quest_tasks").
			Where(squirrel.Eq{"id": taskID, "quest_id": questID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTaskNotFound
		}

		removeRows := `
			DELETE FROM task_progress tp
			USING quest_progress qp
			WHERE tp.progress_id = qp.id
			  AND tp.task_id = $1
			  AND qp.quest_id = $2
			  AND qp.status IN ('not_started', 'in_progress', 'abandoned')`
		if _, err := tx.ExecContext(ctx, removeRows, taskID, questID); err != nil {
			return fmt.Errorf("failed to remove task progress rows: %w", err)
		}

		recount := `
			UPDATE quest_progress qp
			SET total_tasks = GREATEST(qp.total_tasks - 1, 0),
			    tasks_completed = sub.done,
			    progress = CASE WHEN qp.total_tasks - 1 > 0
			        THEN ROUND(sub.done * 100.0 / (qp.total_tasks - 1))
			        ELSE 0 END
			FROM (
				SELECT qp2.id, COUNT(*) FILTER (WHERE tp.is_completed) AS done
				FROM quest_progress qp2
				LEFT JOIN task_progress tp ON tp.progress_id = qp2.id
				WHERE qp2.quest_id = $1 AND qp2.status IN ('not_started', 'in_progress', 'abandoned')
				GROUP BY qp2.id
			) sub
			WHERE qp.id = sub.id`
		if _, err := tx.ExecContext(ctx, recount, questID); err != nil {
			return fmt.Errorf("failed to recount progress records: %w", err)
		}

		return nil
	})
}
