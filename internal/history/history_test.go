package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizrace/quizrace-backend/internal/engine"
)

func testSummary(id string, savedAt time.Time) Summary {
	return Summary{
		ID:         id,
		Name:       "friday night game",
		SavedAt:    savedAt,
		StartedAt:  savedAt.Add(-30 * time.Minute),
		EndedAt:    savedAt,
		Duration:   30 * time.Minute,
		TotalTurns: 42,
		Difficulty: "mixed",
		Reason:     "won",
		Players: []PlayerSummary{
			{
				Slot:          1,
				Username:      "alice",
				Avatar:        "avatarCat",
				FinalPosition: 46,
				Stats: engine.Stats{
					DiceRolls:         []int{3, 5, 2, 6},
					QuestionsAnswered: 4,
					QuestionsCorrect:  3,
					CardsPlayed:       1,
					TotalMovement:     46,
					GoodLuckHits:      2,
					BadLuckHits:       1,
				},
			},
			{
				Slot:          2,
				Username:      "bob",
				Avatar:        "avatarOwl",
				FinalPosition: 31,
				Stats:         engine.Stats{DiceRolls: []int{1, 4}},
			},
		},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	ctx := context.Background()

	// Truncate to seconds so the JSON round trip compares cleanly across
	// time encodings.
	savedAt := time.Now().UTC().Truncate(time.Second)
	want := testSummary("game-1", savedAt)
	require.NoError(t, store.Append(ctx, want))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestFileStore_AppendPreservesOrder(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	ctx := context.Background()
	savedAt := time.Now().UTC().Truncate(time.Second)

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, testSummary(id, savedAt)))
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
	assert.Equal(t, "third", got[2].ID)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewSummary_CapturesSessionState(t *testing.T) {
	started := time.Now().Add(-10 * time.Minute)
	players := []*engine.Player{
		{Slot: 1, ClientID: "c1", Username: "alice", Avatar: "avatarCat", Position: 46,
			Stats: engine.Stats{DiceRolls: []int{6, 6}, TotalMovement: 46}},
		{Slot: 2, ClientID: "c2", Username: "bob", Avatar: "avatarDog", Position: 12},
	}
	s := engine.NewSession(players, engine.PolicyEasyMedium, started)
	s.TotalTurns = 17

	now := time.Now()
	sum := NewSummary(s, engine.EndWon, now)

	assert.Equal(t, started, sum.StartedAt)
	assert.Equal(t, now, sum.EndedAt)
	assert.Equal(t, now.Sub(started), sum.Duration)
	assert.Equal(t, 17, sum.TotalTurns)
	assert.Equal(t, "easy-medium", sum.Difficulty)
	assert.Equal(t, "won", sum.Reason)

	require.Len(t, sum.Players, 2)
	assert.Equal(t, "alice", sum.Players[0].Username)
	assert.Equal(t, 46, sum.Players[0].FinalPosition)
	assert.Equal(t, []int{6, 6}, sum.Players[0].Stats.DiceRolls)
	assert.Equal(t, 12, sum.Players[1].FinalPosition)

	// Persistence fields are left for the save step.
	assert.Empty(t, sum.ID)
	assert.Empty(t, sum.Name)
	assert.True(t, sum.SavedAt.IsZero())
}
