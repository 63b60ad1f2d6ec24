// Package history persists finished-game summaries. The live game flow only
// produces and consumes the Summary shape; storage failures never reach the
// session.
package history

import (
	"context"
	"time"

	"github.com/quizrace/quizrace-backend/internal/engine"
)

const MaxNameLen = 50

type PlayerSummary struct {
	Slot          int          `json:"slot"`
	Username      string       `json:"username"`
	Avatar        string       `json:"avatar"`
	FinalPosition int          `json:"finalPosition"`
	Stats         engine.Stats `json:"stats"`
}

// Summary is one appended history record.
type Summary struct {
	ID         string          `json:"id" gorm:"primaryKey"`
	Name       string          `json:"name"`
	SavedAt    time.Time       `json:"savedAt"`
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt"`
	Duration   time.Duration   `json:"duration"`
	TotalTurns int             `json:"totalTurns"`
	Difficulty string          `json:"difficulty"`
	Reason     string          `json:"reason"`
	Players    []PlayerSummary `json:"players" gorm:"serializer:json"`
}

func (Summary) TableName() string { return "game_history" }

// Store is an append-only list of game summaries.
type Store interface {
	Append(ctx context.Context, summary Summary) error
	List(ctx context.Context) ([]Summary, error)
}

// NewSummary captures the final state of a session. SavedAt, ID and Name are
// filled in when the summary is actually persisted.
func NewSummary(s *engine.Session, reason engine.EndReason, now time.Time) Summary {
	players := make([]PlayerSummary, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, PlayerSummary{
			Slot:          p.Slot,
			Username:      p.Username,
			Avatar:        p.Avatar,
			FinalPosition: p.Position,
			Stats:         p.Stats,
		})
	}
	return Summary{
		StartedAt:  s.StartedAt,
		EndedAt:    now,
		Duration:   now.Sub(s.StartedAt),
		TotalTurns: s.TotalTurns,
		Difficulty: string(s.Difficulty),
		Reason:     string(reason),
		Players:    players,
	}
}
