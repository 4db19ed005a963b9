package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"questboard/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type questProgress struct {
	ID      uuid.UUID `db:"id"`
	UserID  uuid.UUID `db:"user_id"`
	QuestID uuid.UUID `db:"quest_id"`

	Status         string `db:"status"`
	Progress       int    `db:"progress"`
	TasksCompleted int    `db:"tasks_completed"`
	TotalTasks     int    `db:"total_tasks"`

	StartedAt        *time.Time `db:"started_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	TimeSpentMinutes int        `db:"time_spent_minutes"`

	TaskXP                int `db:"task_xp"`
	BaseXP                int `db:"base_xp"`
	ReferralJoinBonus     int `db:"referral_join_bonus"`
	ReferralCompleteBonus int `db:"referral_complete_bonus"`
	WinnerBonus           int `db:"winner_bonus"`
	TotalXP               int `db:"total_xp"`
	TotalReferralXP       int `db:"total_referral_xp"`

	LeaderboardRank *int `db:"leaderboard_rank"`
	IsWinner        bool `db:"is_winner"`
	WinnerRank      *int `db:"winner_rank"`

	USDCEarned  decimal.Decimal `db:"usdc_earned"`
	BadgeEarned *string         `db:"badge_earned"`
}

type taskProgressRow struct {
	ProgressID     uuid.UUID  `db:"progress_id"`
	TaskID         uuid.UUID  `db:"task_id"`
	IsCompleted    bool       `db:"is_completed"`
	SubmissionURL  string     `db:"submission_url"`
	SubmissionText string     `db:"submission_text"`
	SubmissionData []byte     `db:"submission_data"`
	CompletedAt    *time.Time `db:"completed_at"`
	XPEarned       int        `db:"xp_earned"`
}

type referralEventRow struct {
	ReferredUserID uuid.UUID `db:"referred_user_id"`
	Kind           string    `db:"kind"`
	XPEarned       int       `db:"xp_earned"`
	OccurredAt     time.Time `db:"occurred_at"`
}

func (p *questProgress) toModel() *model.QuestProgress {
	return &model.QuestProgress{
		ID:               p.ID,
		UserID:           p.UserID,
		QuestID:          p.QuestID,
		Status:           model.ProgressStatus(p.Status),
		Progress:         p.Progress,
		TasksCompleted:   p.TasksCompleted,
		TotalTasks:       p.TotalTasks,
		StartedAt:        p.StartedAt,
		CompletedAt:      p.CompletedAt,
		TimeSpentMinutes: p.TimeSpentMinutes,
		XPBreakdown: model.XPBreakdown{
			TaskXP:                p.TaskXP,
			BaseXP:                p.BaseXP,
			ReferralJoinBonus:     p.ReferralJoinBonus,
			ReferralCompleteBonus: p.ReferralCompleteBonus,
			WinnerBonus:           p.WinnerBonus,
			TotalXP:               p.TotalXP,
		},
		TotalReferralXP: p.TotalReferralXP,
		LeaderboardRank: p.LeaderboardRank,
		IsWinner:        p.IsWinner,
		WinnerRank:      p.WinnerRank,
		USDCEarned:      p.USDCEarned,
		BadgeEarned:     p.BadgeEarned,
	}
}

// GetProgress loads the progress record with its task rows and referral
// event ledgers.
func (r *Repository) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*model.QuestProgress, error) {
	query, args, err := squirrel.
		Select("*").
		From("quest_progress").
		Where(squirrel.Eq{"user_id": userID, "quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row questProgress
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get quest progress: %w", err)
	}

	progress := row.toModel()

	taskQuery, taskArgs, err := squirrel.
		Select("*").
		From("task_progress").
		Where(squirrel.Eq{"progress_id": row.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var taskRows []taskProgressRow
	err = r.db.SelectContext(ctx, &taskRows, taskQuery, taskArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get task progress: %w", err)
	}

	progress.TaskProgress = make([]model.TaskProgress, len(taskRows))
	for i, t := range taskRows {
		tp := model.TaskProgress{
			TaskID:         t.TaskID,
			IsCompleted:    t.IsCompleted,
			SubmissionURL:  t.SubmissionURL,
			SubmissionText: t.SubmissionText,
			CompletedAt:    t.CompletedAt,
			XPEarned:       t.XPEarned,
		}
		if len(t.SubmissionData) > 0 {
			if err := json.Unmarshal(t.SubmissionData, &tp.SubmissionData); err != nil {
				return nil, fmt.Errorf("failed to decode submission data: %w", err)
			}
		}
		progress.TaskProgress[i] = tp
	}

	eventQuery, eventArgs, err := squirrel.
		Select("referred_user_id", "kind", "xp_earned", "occurred_at").
		From("referral_events").
		Where(squirrel.Eq{"progress_id": row.ID}).
		OrderBy("id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var eventRows []referralEventRow
	err = r.db.SelectContext(ctx, &eventRows, eventQuery, eventArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral events: %w", err)
	}

	for _, ev := range eventRows {
		entry := model.ReferralEvent{
			ReferredUserID: ev.ReferredUserID,
			OccurredAt:     ev.OccurredAt,
			XPEarned:       ev.XPEarned,
		}
		if ev.Kind == "join" {
			progress.ReferralsJoined = append(progress.ReferralsJoined, entry)
		} else {
			progress.ReferralsCompleted = append(progress.ReferralsCompleted, entry)
		}
	}

	return progress, nil
}

// CreateProgress inserts a fresh record with one zeroed task row per task.
func (r *Repository) CreateProgress(ctx context.Context, p *model.QuestProgress) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("quest_progress").
			SetMap(map[string]interface{}{
				"id":          p.ID,
				"user_id":     p.UserID,
				"quest_id":    p.QuestID,
				"status":      string(p.Status),
				"total_tasks": p.TotalTasks,
				"started_at":  p.StartedAt,
				"usdc_earned": p.USDCEarned,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build progress insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert quest progress: %w", err)
		}

		if len(p.TaskProgress) == 0 {
			return nil
		}

		builder := squirrel.
			Insert("task_progress").
			Columns("progress_id", "task_id", "is_completed")

		for _, tp := range p.TaskProgress {
			builder = builder.Values(p.ID, tp.TaskID, false)
		}

		taskQuery, taskArgs, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build task progress insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, taskQuery, taskArgs...); err != nil {
			return fmt.Errorf("failed to insert task progress rows: %w", err)
		}

		return nil
	})
}

// StartProgress moves a not_started or abandoned record to in_progress. The
// status predicate makes the transition race-safe: a second concurrent start
// matches zero rows.
func (r *Repository) StartProgress(ctx context.Context, progressID uuid.UUID, startedAt time.Time) error {
	query, args, err := squirrel.
		Update("quest_progress").
		Set("status", string(model.StatusInProgress)).
		Set("started_at", startedAt).
		Where(squirrel.Eq{"id": progressID, "status": []string{
			string(model.StatusNotStarted),
			string(model.StatusAbandoned),
		}}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrQuestAlreadyStarted
	}
	return nil
}

// AbandonProgress moves an in_progress record to abandoned. Only an active
// run can be abandoned.
func (r *Repository) AbandonProgress(ctx context.Context, progressID uuid.UUID) error {
	query, args, err := squirrel.
		Update("quest_progress").
		Set("status", string(model.StatusAbandoned)).
		Where(squirrel.Eq{"id": progressID, "status": string(model.StatusInProgress)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProgressNotFound
	}
	return nil
}

// TaskSubmissionUpdate carries what the service computed for one task
// submission. Whether the submission completes the quest is decided here,
// against the locked row, so the completion fields are always supplied and
// applied only when the last open task closes.
type TaskSubmissionUpdate struct {
	ProgressID uuid.UUID
	UserID     uuid.UUID
	QuestID    uuid.UUID
	TaskID     uuid.UUID

	SubmissionURL  string
	SubmissionText string
	SubmissionData map[string]any
	SubmittedAt    time.Time

	TaskXP       int
	TaskActivity string

	CompletionXP       int
	CompletionUSDC     decimal.Decimal
	CompletionBadge    *string
	CompletionActivity string
}

// ApplyTaskSubmission runs the whole reward sequence for one submission in a
// single transaction: task row, progress header, user ledger, activity log,
// and on completion the quest aggregate counters. The progress header is
// locked first, so the tasks_completed counter and the completion decision
// are taken against the current row state, not the caller's earlier read.
// The task-row predicate rejects a concurrent duplicate submission. Returns
// whether this submission completed the quest.
func (r *Repository) ApplyTaskSubmission(ctx context.Context, sub *TaskSubmissionUpdate) (bool, error) {
	completed := false

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var header struct {
			TasksCompleted int        `db:"tasks_completed"`
			TotalTasks     int        `db:"total_tasks"`
			StartedAt      *time.Time `db:"started_at"`
		}
		lockQuery := `
			SELECT tasks_completed, total_tasks, started_at
			FROM quest_progress
			WHERE id = $1
			FOR UPDATE`
		if err := tx.GetContext(ctx, &header, lockQuery, sub.ProgressID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrProgressNotFound
			}
			return fmt.Errorf("failed to lock quest progress: %w", err)
		}

		var submissionData []byte
		if sub.SubmissionData != nil {
			data, err := json.Marshal(sub.SubmissionData)
			if err != nil {
				return fmt.Errorf("failed to encode submission data: %w", err)
			}
			submissionData = data
		}

		taskQuery, taskArgs, err := squirrel.
			Update("task_progress").
			SetMap(map[string]interface{}{
				"is_completed":    true,
				"submission_url":  sub.SubmissionURL,
				"submission_text": sub.SubmissionText,
				"submission_data": submissionData,
				"completed_at":    sub.SubmittedAt,
				"xp_earned":       sub.TaskXP,
			}).
			Where(squirrel.Eq{
				"progress_id":  sub.ProgressID,
				"task_id":      sub.TaskID,
				"is_completed": false,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build task update query: %w", err)
		}

		res, err := tx.ExecContext(ctx, taskQuery, taskArgs...)
		if err != nil {
			return fmt.Errorf("failed to update task progress: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTaskAlreadyCompleted
		}

		done := header.TasksCompleted + 1
		completed = header.TotalTasks > 0 && done >= header.TotalTasks

		percent := 0
		if header.TotalTasks > 0 {
			percent = int(float64(done)/float64(header.TotalTasks)*100 + 0.5)
		}

		headerBuilder := squirrel.
			Update("quest_progress").
			Set("task_xp", squirrel.Expr("task_xp + ?", sub.TaskXP)).
			Set("tasks_completed", squirrel.Expr("tasks_completed + 1")).
			Set("progress", percent)

		if completed {
			timeSpent := 0
			if header.StartedAt != nil {
				timeSpent = int(sub.SubmittedAt.Sub(*header.StartedAt).Minutes())
			}
			headerBuilder = headerBuilder.
				Set("status", string(model.StatusCompleted)).
				Set("completed_at", sub.SubmittedAt).
				Set("time_spent_minutes", timeSpent).
				Set("base_xp", sub.CompletionXP).
				Set("usdc_earned", sub.CompletionUSDC).
				Set("badge_earned", sub.CompletionBadge)
		}

		headerQuery, headerArgs, err := headerBuilder.
			Where(squirrel.Eq{"id": sub.ProgressID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build progress update query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, headerQuery, headerArgs...); err != nil {
			return fmt.Errorf("failed to update quest progress: %w", err)
		}

		if err := recomputeTotalXPWithTx(ctx, tx, sub.ProgressID); err != nil {
			return err
		}

		earnedXP := sub.TaskXP
		if completed {
			earnedXP += sub.CompletionXP
		}
		userBuilder := squirrel.
			Update("users").
			Set("xp", squirrel.Expr("xp + ?", earnedXP))
		if completed && sub.CompletionUSDC.IsPositive() {
			userBuilder = userBuilder.
				Set("usdc_balance", squirrel.Expr("usdc_balance + ?", sub.CompletionUSDC))
		}

		userQuery, userArgs, err := userBuilder.
			Where(squirrel.Eq{"id": sub.UserID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user update query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, userQuery, userArgs...); err != nil {
			return fmt.Errorf("failed to update user ledger: %w", err)
		}

		if err := appendActivityWithTx(ctx, tx, sub.UserID, sub.TaskActivity); err != nil {
			return err
		}

		if completed {
			if sub.CompletionActivity != "" {
				if err := appendActivityWithTx(ctx, tx, sub.UserID, sub.CompletionActivity); err != nil {
					return err
				}
			}
			if err := recordQuestCompletionWithTx(ctx, tx, sub.QuestID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return completed, nil
}

// recomputeTotalXPWithTx enforces the breakdown invariant at the storage
// boundary: total_xp is always the sum of its five parts.
func recomputeTotalXPWithTx(ctx context.Context, tx *sqlx.Tx, progressID uuid.UUID) error {
	query := `
		UPDATE quest_progress
		SET total_xp = task_xp + base_xp + referral_join_bonus + referral_complete_bonus + winner_bonus
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, progressID); err != nil {
		return fmt.Errorf("failed to recompute total xp: %w", err)
	}
	return nil
}

// recordQuestCompletionWithTx bumps the completion counter and refreshes the
// running average completion time from the completed records.
func recordQuestCompletionWithTx(ctx context.Context, tx *sqlx.Tx, questID uuid.UUID) error {
	query := `
		UPDATE quests
		SET total_completions = total_completions + 1,
		    average_completion_time = COALESCE((
			SELECT ROUND(AVG(time_spent_minutes))
			FROM quest_progress
			WHERE quest_id = $1 AND status = 'completed' AND time_spent_minutes > 0
		    ), 0),
		    updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, questID); err != nil {
		return fmt.Errorf("failed to record quest completion: %w", err)
	}
	return nil
}

// ListCompletedByCompletionTime returns completed records for the quest in
// completion order, the ordering the competition pass ranks by.
func (r *Repository) ListCompletedByCompletionTime(ctx context.Context, questID uuid.UUID) ([]*model.QuestProgress, error) {
	query, args, err := squirrel.
		Select("*").
		From("quest_progress").
		Where(squirrel.Eq{"quest_id": questID, "status": string(model.StatusCompleted)}).
		OrderBy("completed_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []questProgress
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed progress: %w", err)
	}

	records := make([]*model.QuestProgress, len(rows))
	for i := range rows {
		records[i] = rows[i].toModel()
	}

	return records, nil
}

func (r *Repository) SetLeaderboardRank(ctx context.Context, progressID uuid.UUID, rank int, isWinner bool, winnerRank *int) error {
	query, args, err := squirrel.
		Update("quest_progress").
		Set("leaderboard_rank", rank).
		Set("is_winner", isWinner).
		Set("winner_rank", winnerRank).
		Where(squirrel.Eq{"id": progressID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// GrantWinnerBonus credits the winner bonus to the record and the user's
// global ledger. The winner_bonus = 0 predicate makes reprocessing a no-op,
// so a ranking pass can run any number of times without double-granting.
func (r *Repository) GrantWinnerBonus(ctx context.Context, progressID, userID uuid.UUID, bonusXP int, activity string) (bool, error) {
	granted := false

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("quest_progress").
			Set("winner_bonus", bonusXP).
			Where(squirrel.Eq{"id": progressID, "winner_bonus": 0}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		granted = true

		if err := recomputeTotalXPWithTx(ctx, tx, progressID); err != nil {
			return err
		}
		if err := addUserXPWithTx(ctx, tx, userID, bonusXP); err != nil {
			return err
		}
		return appendActivityWithTx(ctx, tx, userID, activity)
	})
	if err != nil {
		return false, err
	}

	return granted, nil
}

// QuestLeaderboardEntry is one row of the public per-quest leaderboard.
type QuestLeaderboardEntry struct {
	Rank             int
	UserID           uuid.UUID
	Username         string
	TotalXP          int
	CompletedAt      time.Time
	TimeSpentMinutes int
	IsWinner         bool
}

type questLeaderboardRow struct {
	UserID           uuid.UUID `db:"user_id"`
	Username         string    `db:"username"`
	TotalXP          int       `db:"total_xp"`
	CompletedAt      time.Time `db:"completed_at"`
	TimeSpentMinutes int       `db:"time_spent_minutes"`
	IsWinner         bool      `db:"is_winner"`
}

// GetQuestLeaderboard returns the merit view: completed records by total XP
// descending, ties broken by earliest completion. Distinct from the
// completion-order ranking the competition pass uses.
func (r *Repository) GetQuestLeaderboard(ctx context.Context, questID uuid.UUID, limit int) ([]*QuestLeaderboardEntry, error) {
	query, args, err := squirrel.
		Select("qp.user_id", "u.username", "qp.total_xp", "qp.completed_at",
			"qp.time_spent_minutes", "qp.is_winner").
		From("quest_progress qp").
		Join("users u ON u.id = qp.user_id").
		Where(squirrel.Eq{"qp.quest_id": questID, "qp.status": string(model.StatusCompleted)}).
		OrderBy("qp.total_xp DESC", "qp.completed_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []questLeaderboardRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get quest leaderboard: %w", err)
	}

	entries := make([]*QuestLeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = &QuestLeaderboardEntry{
			UserID:           row.UserID,
			Username:         row.Username,
			TotalXP:          row.TotalXP,
			CompletedAt:      row.CompletedAt,
			TimeSpentMinutes: row.TimeSpentMinutes,
			IsWinner:         row.IsWinner,
		}
	}
	rankLeaderboardEntries(entries)

	return entries, nil
}

// leaderboardBefore is the merit ordering: total XP descending, ties broken
// by earliest completion.
func leaderboardBefore(a, b *QuestLeaderboardEntry) bool {
	if a.TotalXP != b.TotalXP {
		return a.TotalXP > b.TotalXP
	}
	return a.CompletedAt.Before(b.CompletedAt)
}

func rankLeaderboardEntries(entries []*QuestLeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return leaderboardBefore(entries[i], entries[j])
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// AppendReferralEvent records a join/complete event on the referrer's
// progress record, refolds the bonus sums, and credits the referrer's global
// ledger, all in one transaction.
func (r *Repository) AppendReferralEvent(ctx context.Context, progressID, referrerID uuid.UUID, ev model.ReferralEvent, kind string, activity string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("referral_events").
			Columns("progress_id", "referred_user_id", "kind", "xp_earned", "occurred_at").
			Values(progressID, ev.ReferredUserID, kind, ev.XPEarned, ev.OccurredAt).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build referral event insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert referral event: %w", err)
		}

		refold := `
			UPDATE quest_progress
			SET referral_join_bonus = (
				SELECT COALESCE(SUM(xp_earned), 0) FROM referral_events
				WHERE progress_id = $1 AND kind = 'join'
			    ),
			    referral_complete_bonus = (
				SELECT COALESCE(SUM(xp_earned), 0) FROM referral_events
				WHERE progress_id = $1 AND kind = 'complete'
			    ),
			    total_referral_xp = (
				SELECT COALESCE(SUM(xp_earned), 0) FROM referral_events
				WHERE progress_id = $1
			    )
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, refold, progressID); err != nil {
			return fmt.Errorf("failed to refold referral bonuses: %w", err)
		}

		if err := recomputeTotalXPWithTx(ctx, tx, progressID); err != nil {
			return err
		}
		if err := addUserXPWithTx(ctx, tx, referrerID, ev.XPEarned); err != nil {
			return err
		}
		return appendActivityWithTx(ctx, tx, referrerID, activity)
	})
}
