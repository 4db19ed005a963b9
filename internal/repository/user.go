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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type user struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	IsVerified   bool      `db:"is_verified"`

	XP            int             `db:"xp"`
	USDCBalance   decimal.Decimal `db:"usdc_balance"`
	WalletAddress *string         `db:"wallet_address"`

	Bio      string `db:"bio"`
	Twitter  string `db:"twitter"`
	Github   string `db:"github"`
	Telegram string `db:"telegram"`

	ReferralCode        string  `db:"referral_code"`
	ReferredBy          *string `db:"referred_by"`
	TotalReferrals      int     `db:"total_referrals"`
	ActiveReferrals     int     `db:"active_referrals"`
	PendingReferrals    int     `db:"pending_referrals"`
	ReferralTotalEarned int     `db:"referral_total_earned"`

	NotifyNewQuests         bool `db:"notify_new_quests"`
	NotifyNewBounties       bool `db:"notify_new_bounties"`
	NotifyEventReminders    bool `db:"notify_event_reminders"`
	NotifyWeeklyDigest      bool `db:"notify_weekly_digest"`
	NotifySubmissionUpdates bool `db:"notify_submission_updates"`
	ShowOnLeaderboard       bool `db:"show_on_leaderboard"`
	PublicProfile           bool `db:"public_profile"`

	CreatedAt time.Time `db:"created_at"`
}

type userActivity struct {
	Action    string    `db:"action"`
	CreatedAt time.Time `db:"created_at"`
}

type leaderboardUser struct {
	Username       string `db:"username"`
	XP             int    `db:"xp"`
	TotalReferrals int    `db:"total_referrals"`
}

func (u *user) toModel() *model.User {
	return &model.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		IsAdmin:       u.IsAdmin,
		IsVerified:    u.IsVerified,
		XP:            u.XP,
		USDCBalance:   u.USDCBalance,
		WalletAddress: u.WalletAddress,
		Bio:           u.Bio,
		Twitter:       u.Twitter,
		Github:        u.Github,
		Telegram:      u.Telegram,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		ReferralStats: model.ReferralStats{
			TotalReferrals:   u.TotalReferrals,
			ActiveReferrals:  u.ActiveReferrals,
			PendingReferrals: u.PendingReferrals,
			TotalEarned:      u.ReferralTotalEarned,
		},
		Notifications: model.NotificationPrefs{
			NewQuests:         u.NotifyNewQuests,
			NewBounties:       u.NotifyNewBounties,
			EventReminders:    u.NotifyEventReminders,
			WeeklyDigest:      u.NotifyWeeklyDigest,
			SubmissionUpdates: u.NotifySubmissionUpdates,
		},
		Privacy: model.PrivacyPrefs{
			ShowOnLeaderboard: u.ShowOnLeaderboard,
			PublicProfile:     u.PublicProfile,
		},
		CreatedAt: u.CreatedAt,
	}
}

// CreateUser inserts the user and, when a referral code was supplied, bumps
// the referrer's pending counter in the same transaction.
func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"id":                        u.ID,
				"username":                  u.Username,
				"email":                     u.Email,
				"password_hash":             u.PasswordHash,
				"is_admin":                  u.IsAdmin,
				"is_verified":               u.IsVerified,
				"xp":                        u.XP,
				"usdc_balance":              u.USDCBalance,
				"referral_code":             u.ReferralCode,
				"referred_by":               u.ReferredBy,
				"notify_new_quests":         u.Notifications.NewQuests,
				"notify_new_bounties":       u.Notifications.NewBounties,
				"notify_event_reminders":    u.Notifications.EventReminders,
				"notify_weekly_digest":      u.Notifications.WeeklyDigest,
				"notify_submission_updates": u.Notifications.SubmissionUpdates,
				"show_on_leaderboard":       u.Privacy.ShowOnLeaderboard,
				"public_profile":            u.Privacy.PublicProfile,
				"created_at":                u.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				switch pgErr.ConstraintName {
				case "users_username_key":
					return ErrUsernameTaken
				case "users_email_key":
					return ErrEmailTaken
				}
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if u.ReferredBy != nil {
			updateQuery, updateArgs, err := squirrel.
				Update("users").
				Set("pending_referrals", squirrel.Expr("pending_referrals + 1")).
				Where(squirrel.Eq{"referral_code": *u.ReferredBy}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build referrer update query: %w", err)
			}

			_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
			if err != nil {
				return fmt.Errorf("failed to update referrer: %w", err)
			}
		}

		return nil
	})
}

func (r *Repository) getUserBy(ctx context.Context, pred squirrel.Eq) (*model.User, error) {
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var u user
	err = r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return u.toModel(), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getUserBy(ctx, squirrel.Eq{"id": id})
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUserBy(ctx, squirrel.Eq{"email": email})
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUserBy(ctx, squirrel.Eq{"username": username})
}

func (r *Repository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return r.getUserBy(ctx, squirrel.Eq{"referral_code": code})
}

// MarkUserVerified flips is_verified and moves the referrer's pending
// counter to the total and active counters in one transaction. Returns the
// verified user.
func (r *Repository) MarkUserVerified(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var verified *model.User

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("users").
			Set("is_verified", true).
			Where(squirrel.Eq{"id": id}).
			Suffix("RETURNING *").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var u user
		err = tx.GetContext(ctx, &u, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		verified = u.toModel()

		if u.ReferredBy == nil {
			return nil
		}

		updateQuery, updateArgs, err := referrerVerifiedUpdate(*u.ReferredBy)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
		return err
	})
	if err != nil {
		return nil, err
	}

	return verified, nil
}

// referrerVerifiedUpdate moves one of the referrer's pending referrals to the
// verified counters: pending down, total and active up.
func referrerVerifiedUpdate(code string) (string, []interface{}, error) {
	return squirrel.
		Update("users").
		Set("pending_referrals", squirrel.Expr("GREATEST(pending_referrals - 1, 0)")).
		Set("total_referrals", squirrel.Expr("total_referrals + 1")).
		Set("active_referrals", squirrel.Expr("active_referrals + 1")).
		Where(squirrel.Eq{"referral_code": code}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// AddUserXP adds XP to the user's global ledger and appends an activity
// entry in the same transaction.
func (r *Repository) AddUserXP(ctx context.Context, id uuid.UUID, xp int, activity string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := addUserXPWithTx(ctx, tx, id, xp); err != nil {
			return err
		}
		return appendActivityWithTx(ctx, tx, id, activity)
	})
}

// AddReferralEarnings credits XP to a referrer and tracks it in the
// referral_total_earned counter.
func (r *Repository) AddReferralEarnings(ctx context.Context, id uuid.UUID, xp int, activity string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("users").
			Set("xp", squirrel.Expr("xp + ?", xp)).
			Set("referral_total_earned", squirrel.Expr("referral_total_earned + ?", xp)).
			Where(squirrel.Eq{"id": id}).
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
			return ErrNotFound
		}

		return appendActivityWithTx(ctx, tx, id, activity)
	})
}

func addUserXPWithTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, xp int) error {
	query, args, err := squirrel.
		Update("users").
		Set("xp", squirrel.Expr("xp + ?", xp)).
		Where(squirrel.Eq{"id": id}).
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
		return ErrNotFound
	}
	return nil
}

// appendActivityWithTx inserts a new activity entry and trims the log down
// to the newest RecentActivityLimit rows.
func appendActivityWithTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, action string) error {
	query, args, err := squirrel.
		Insert("user_activity").
		Columns("user_id", "action", "created_at").
		Values(id, action, time.Now().UTC()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	trimQuery := `
		DELETE FROM user_activity
		WHERE user_id = $1
		  AND id NOT IN (
			SELECT id FROM user_activity
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		  )`
	_, err = tx.ExecContext(ctx, trimQuery, id, model.RecentActivityLimit)
	if err != nil {
		return fmt.Errorf("failed to trim activity log: %w", err)
	}

	return nil
}

func (r *Repository) AppendActivity(ctx context.Context, id uuid.UUID, action string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return appendActivityWithTx(ctx, tx, id, action)
	})
}

func (r *Repository) GetRecentActivity(ctx context.Context, id uuid.UUID) ([]model.Activity, error) {
	query, args, err := squirrel.
		Select("action", "created_at").
		From("user_activity").
		Where(squirrel.Eq{"user_id": id}).
		OrderBy("id DESC").
		Limit(uint64(model.RecentActivityLimit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []userActivity
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	activities := make([]model.Activity, len(rows))
	for i, row := range rows {
		activities[i] = model.Activity{
			Action:    row.Action,
			Timestamp: row.CreatedAt,
		}
	}

	return activities, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, bio, twitter, github, telegram string) error {
	return r.updateUserFields(ctx, id, map[string]interface{}{
		"bio":      bio,
		"twitter":  twitter,
		"github":   github,
		"telegram": telegram,
	})
}

func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.updateUserFields(ctx, id, map[string]interface{}{
		"password_hash": passwordHash,
	})
}

func (r *Repository) UpdateNotifications(ctx context.Context, id uuid.UUID, prefs model.NotificationPrefs) error {
	return r.updateUserFields(ctx, id, map[string]interface{}{
		"notify_new_quests":         prefs.NewQuests,
		"notify_new_bounties":       prefs.NewBounties,
		"notify_event_reminders":    prefs.EventReminders,
		"notify_weekly_digest":      prefs.WeeklyDigest,
		"notify_submission_updates": prefs.SubmissionUpdates,
	})
}

func (r *Repository) UpdatePrivacy(ctx context.Context, id uuid.UUID, prefs model.PrivacyPrefs) error {
	return r.updateUserFields(ctx, id, map[string]interface{}{
		"show_on_leaderboard": prefs.ShowOnLeaderboard,
		"public_profile":      prefs.PublicProfile,
	})
}

func (r *Repository) updateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	query, args, err := squirrel.
		Update("users").
		SetMap(fields).
		Where(squirrel.Eq{"id": id}).
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
		return ErrNotFound
	}
	return nil
}

// SetWalletAddress stores the payout address. The address is immutable once
// set: the update only matches a NULL column, and a zero-row result is
// disambiguated into ErrWalletLocked or ErrNotFound.
func (r *Repository) SetWalletAddress(ctx context.Context, id uuid.UUID, address string) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("users").
			Set("wallet_address", address).
			Where(squirrel.Eq{"id": id, "wallet_address": nil}).
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
			var exists bool
			err = tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrWalletLocked
		}

		return appendActivityWithTx(ctx, tx, id, "Connected wallet address")
	})
}

// GetTopUsers returns the global XP leaderboard, honoring the
// show-on-leaderboard privacy flag.
func (r *Repository) GetTopUsers(ctx context.Context, limit int) ([]*model.LeaderboardUser, error) {
	query, args, err := squirrel.
		Select("username", "xp", "total_referrals").
		From("users").
		Where(squirrel.Eq{"show_on_leaderboard": true}).
		OrderBy("xp DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []leaderboardUser
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	users := make([]*model.LeaderboardUser, len(rows))
	for i, row := range rows {
		users[i] = &model.LeaderboardUser{
			Username:       row.Username,
			XP:             row.XP,
			TotalReferrals: row.TotalReferrals,
		}
	}

	return users, nil
}

// GetUserReferrals lists accounts that signed up with the given referral
// code, verified first, newest first.
func (r *Repository) GetUserReferrals(ctx context.Context, code string) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.Eq{"referred_by": code}).
		OrderBy("is_verified DESC", "created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []user
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toModel()
	}

	return users, nil
}
