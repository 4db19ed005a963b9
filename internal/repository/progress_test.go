package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRankLeaderboardEntries(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	t1 := base
	t2 := base.Add(10 * time.Minute)
	t3 := base.Add(20 * time.Minute)
	t4 := base.Add(30 * time.Minute)

	entries := []*QuestLeaderboardEntry{
		{Username: "carol", TotalXP: 300, CompletedAt: t4},
		{Username: "alice", TotalXP: 500, CompletedAt: t2},
		{Username: "bob", TotalXP: 500, CompletedAt: t3},
		{Username: "dave", TotalXP: 100, CompletedAt: t1},
	}

	rankLeaderboardEntries(entries)

	names := make([]string, len(entries))
	ranks := make([]int, len(entries))
	for i, e := range entries {
		names[i] = e.Username
		ranks[i] = e.Rank
	}

	// XP decides the order; the earlier finisher breaks the 500 tie
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, names)
	assert.Equal(t, []int{1, 2, 3, 4}, ranks)
}

func TestRankLeaderboardEntries_Empty(t *testing.T) {
	var entries []*QuestLeaderboardEntry
	rankLeaderboardEntries(entries)
	assert.Empty(t, entries)
}
