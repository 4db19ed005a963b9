package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecentActivityLimit caps the per-user activity log. Oldest entries are
// dropped when a new one is appended.
const RecentActivityLimit = 10

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsVerified   bool

	XP            int
	USDCBalance   decimal.Decimal
	WalletAddress *string

	Bio      string
	Twitter  string
	Github   string
	Telegram string

	ReferralCode  string
	ReferredBy    *string
	ReferralStats ReferralStats

	Notifications NotificationPrefs
	Privacy       PrivacyPrefs

	CreatedAt time.Time
}

type ReferralStats struct {
	TotalReferrals   int
	ActiveReferrals  int
	PendingReferrals int
	TotalEarned      int
}

type NotificationPrefs struct {
	NewQuests         bool
	NewBounties       bool
	EventReminders    bool
	WeeklyDigest      bool
	SubmissionUpdates bool
}

type PrivacyPrefs struct {
	ShowOnLeaderboard bool
	PublicProfile     bool
}

// Activity is one entry of the user's bounded recent-activity log.
type Activity struct {
	Action    string
	Timestamp time.Time
}

// LeaderboardUser is the public projection used by the global leaderboard.
type LeaderboardUser struct {
	Username       string
	XP             int
	TotalReferrals int
}
