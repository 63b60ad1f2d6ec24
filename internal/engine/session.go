package engine

import (
	"time"

	"github.com/quizrace/quizrace-backend/internal/questions"
)

type Phase string

const (
	PhaseRolling  Phase = "rolling"
	PhaseMoving   Phase = "moving"
	PhaseWaiting  Phase = "waiting"
	PhaseGoodLuck Phase = "goodluck"
	PhaseBadLuck  Phase = "badluck"
	PhaseQuestion Phase = "question"
	PhaseCard     Phase = "card"
)

// Policy is the question-difficulty policy selected when the game starts.
// It constrains which tiers a player may choose on a question cell.
type Policy string

const (
	PolicyEasy       Policy = "easy"
	PolicyMedium     Policy = "medium"
	PolicyHard       Policy = "hard"
	PolicyEasyMedium Policy = "easy-medium"
	PolicyMediumHard Policy = "medium-hard"
	PolicyEasyHard   Policy = "easy-hard"
	PolicyMixed      Policy = "mixed"
)

// Tiers returns the difficulty tiers a player may choose under p.
func (p Policy) Tiers() []string {
	switch p {
	case PolicyEasy:
		return []string{questions.DifficultyEasy}
	case PolicyMedium:
		return []string{questions.DifficultyMedium}
	case PolicyHard:
		return []string{questions.DifficultyHard}
	case PolicyEasyMedium:
		return []string{questions.DifficultyEasy, questions.DifficultyMedium}
	case PolicyMediumHard:
		return []string{questions.DifficultyMedium, questions.DifficultyHard}
	case PolicyEasyHard:
		return []string{questions.DifficultyEasy, questions.DifficultyHard}
	case PolicyMixed:
		return []string{questions.DifficultyEasy, questions.DifficultyMedium, questions.DifficultyHard}
	default:
		return nil
	}
}

func (p Policy) Valid() bool { return p.Tiers() != nil }

func (p Policy) Allows(tier string) bool {
	for _, t := range p.Tiers() {
		if t == tier {
			return true
		}
	}
	return false
}

type EndReason string

const (
	EndWon        EndReason = "won"
	EndManual     EndReason = "manual"
	EndInactivity EndReason = "inactivity"
)

// Stats accumulates per-player counters over one session.
type Stats struct {
	DiceRolls         []int `json:"diceRolls"`
	QuestionsAnswered int   `json:"questionsAnswered"`
	QuestionsCorrect  int   `json:"questionsCorrect"`
	CardsPlayed       int   `json:"cardsPlayed"`
	TotalMovement     int   `json:"totalMovement"`
	GoodLuckHits      int   `json:"goodLuckHits"`
	BadLuckHits       int   `json:"badLuckHits"`
}

// Player is one in-game participant. Position may transiently exceed the
// track length; that is the win signal. Position is only ever changed by
// resolver-applied movements.
type Player struct {
	Slot          int
	ClientID      string
	Username      string
	Avatar        string
	Position      int
	Connected     bool
	LastHeartbeat time.Time
	Stats         Stats
}

// QuestionSession tracks the one player currently resolving a question cell.
// Difficulty is empty until the player chooses a tier; Question is nil until
// a question has been drawn.
type QuestionSession struct {
	Slot       int
	Difficulty string
	Question   *questions.Question
	Answered   bool
}

// CardInProgress marks that the acting player owes the session a
// self-reported mini-game outcome.
type CardInProgress struct {
	Slot int
}

// Session is the authoritative state of one game occurrence. At most one of
// QuestionSession/CardInProgress is non-nil at any time.
type Session struct {
	Active          bool
	CurrentTurn     int
	Phase           Phase
	Players         []*Player
	QuestionSession *QuestionSession
	CardInProgress  *CardInProgress
	Difficulty      Policy
	StartedAt       time.Time
	LastActivityAt  time.Time
	TotalTurns      int
}

// NewSession builds an active session from the waiting-room snapshot. The
// first turn belongs to slot 1 and the phase is rolling.
func NewSession(players []*Player, policy Policy, now time.Time) *Session {
	return &Session{
		Active:         true,
		CurrentTurn:    1,
		Phase:          PhaseRolling,
		Players:        players,
		Difficulty:     policy,
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// PlayerBySlot returns the player seated at slot, or nil.
func (s *Session) PlayerBySlot(slot int) *Player {
	for _, p := range s.Players {
		if p.Slot == slot {
			return p
		}
	}
	return nil
}

// PlayerByClient returns the player bound to the connection id, or nil.
func (s *Session) PlayerByClient(clientID string) *Player {
	for _, p := range s.Players {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}
