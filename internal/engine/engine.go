package engine

import (
	"errors"
	"sort"
	"time"

	"github.com/quizrace/quizrace-backend/internal/board"
	"github.com/quizrace/quizrace-backend/internal/questions"
)

var ErrNotActive = errors.New("no active game")
var ErrWrongTurn = errors.New("not your turn")
var ErrWrongPhase = errors.New("command not valid in current phase")
var ErrUnknownPlayer = errors.New("not an in-game player")
var ErrNotHost = errors.New("only player 1 may do that")
var ErrInvalidDifficulty = errors.New("invalid difficulty choice")
var ErrInvalidCardResult = errors.New("invalid card result")
var ErrUnsupportedCommand = errors.New("unsupported command")

const (
	goodLuckValue = 2
	badLuckValue  = 2
)

type CommandType string

const (
	// Client-issued commands.
	CmdRollDice         CommandType = "RollDice"
	CmdConfirmMove      CommandType = "ConfirmMove"
	CmdChooseDifficulty CommandType = "ChooseDifficulty"
	CmdAnswerQuestion   CommandType = "AnswerQuestion"
	CmdSubmitCardResult CommandType = "SubmitCardResult"
	CmdEndGame          CommandType = "EndGame"
	CmdHeartbeat        CommandType = "Heartbeat"

	// Scheduled continuations. Never accepted from clients; fed back by the
	// room when a phase timer fires.
	CmdResolveCell      CommandType = "ResolveCell"
	CmdResolveLuckBatch CommandType = "ResolveLuckBatch"
	CmdAdvanceTurn      CommandType = "AdvanceTurn"
)

// Movement is one slot adjustment from a self-reported card outcome.
type Movement struct {
	Slot     int `json:"slot"`
	Movement int `json:"movement"`
}

type Command struct {
	Type        CommandType
	ClientID    string // sender identity; empty for continuations
	Difficulty  string
	AnswerIndex int
	Movements   []Movement
	Slot        int   // ResolveCell target
	Primary     bool  // ResolveCell: landing came from the dice roll
	Slots       []int // ResolveLuckBatch targets
}

type EventType string

const (
	EvtDiceRolled     EventType = "DiceRolled"
	EvtLuck           EventType = "Luck"
	EvtQuestionPrompt EventType = "QuestionPrompt" // private: choose a tier
	EvtQuestionAsked  EventType = "QuestionAsked"  // private: the drawn question
	EvtQuestionResult EventType = "QuestionResult"
	EvtCardPrompt     EventType = "CardPrompt" // private: report the mini-game
	EvtCardApplied    EventType = "CardApplied"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtWon            EventType = "Won"
	EvtEnded          EventType = "Ended"
	EvtSchedule       EventType = "Schedule"
)

// Event describes one observable effect of a command. EvtSchedule is a
// directive to the owner of the session: arm a timer and feed Next back
// through Apply when it fires.
type Event struct {
	Type        EventType
	Slot        int
	Dice        int
	LuckKind    string // "good" | "bad"
	OldPosition int
	NewPosition int
	Movement    int
	Question    *questions.Question
	Correct     bool
	Explanation string
	Movements   []Movement
	Reason      EndReason
	After       time.Duration
	Next        *Command
}

// Delays gate the scheduled sub-transitions between phases.
type Delays struct {
	Advance time.Duration // waiting -> next turn
	Settle  time.Duration // luck/question/card settle -> continuation
}

func DefaultDelays() Delays {
	return Delays{Advance: 2 * time.Second, Settle: 3 * time.Second}
}

// Engine applies commands to a session. It never blocks and never sleeps;
// all waiting is expressed as EvtSchedule directives.
type Engine struct {
	Board     *board.Board
	Dice      func() int
	Questions questions.Source
	Delays    Delays
	Now       func() time.Time
}

func New(b *board.Board, dice func() int, src questions.Source) *Engine {
	return &Engine{
		Board:     b,
		Dice:      dice,
		Questions: src,
		Delays:    DefaultDelays(),
		Now:       time.Now,
	}
}

// Apply validates cmd against the current phase and the sender's seat, then
// mutates s and returns the resulting events. On error s is unchanged.
func (e *Engine) Apply(s *Session, cmd Command) ([]Event, error) {
	if s == nil || !s.Active {
		return nil, ErrNotActive
	}

	switch cmd.Type {
	case CmdRollDice:
		return e.rollDice(s, cmd)
	case CmdConfirmMove:
		p, err := e.actingPlayer(s, cmd)
		if err != nil {
			return nil, err
		}
		if s.Phase != PhaseMoving {
			return nil, ErrWrongPhase
		}
		return e.resolveCell(s, p, true), nil
	case CmdChooseDifficulty:
		return e.chooseDifficulty(s, cmd)
	case CmdAnswerQuestion:
		return e.answerQuestion(s, cmd)
	case CmdSubmitCardResult:
		return e.submitCardResult(s, cmd)
	case CmdEndGame:
		p := s.PlayerByClient(cmd.ClientID)
		if p == nil {
			return nil, ErrUnknownPlayer
		}
		if p.Slot != 1 {
			return nil, ErrNotHost
		}
		s.Active = false
		return []Event{{Type: EvtEnded, Reason: EndManual}}, nil
	case CmdHeartbeat:
		if p := s.PlayerByClient(cmd.ClientID); p != nil {
			p.Connected = true
			p.LastHeartbeat = e.Now()
		}
		return nil, nil

	case CmdResolveCell:
		p := s.PlayerBySlot(cmd.Slot)
		if p == nil {
			return nil, ErrUnknownPlayer
		}
		return e.resolveCell(s, p, cmd.Primary), nil
	case CmdResolveLuckBatch:
		return e.resolveLuckBatch(s, cmd.Slots), nil
	case CmdAdvanceTurn:
		return []Event{e.advanceTurn(s)}, nil
	}
	return nil, ErrUnsupportedCommand
}

// actingPlayer resolves the sender and checks it is their turn.
func (e *Engine) actingPlayer(s *Session, cmd Command) (*Player, error) {
	p := s.PlayerByClient(cmd.ClientID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if p.Slot != s.CurrentTurn {
		return nil, ErrWrongTurn
	}
	return p, nil
}

func (e *Engine) rollDice(s *Session, cmd Command) ([]Event, error) {
	p, err := e.actingPlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if s.Phase != PhaseRolling {
		return nil, ErrWrongPhase
	}

	value := e.Dice()
	old := p.Position
	// No upper clamp here: strict overshoot is the win signal.
	p.Position += value
	p.Stats.DiceRolls = append(p.Stats.DiceRolls, value)
	p.Stats.TotalMovement += value
	s.LastActivityAt = e.Now()
	s.Phase = PhaseMoving

	events := []Event{{
		Type:        EvtDiceRolled,
		Slot:        p.Slot,
		Dice:        value,
		OldPosition: old,
		NewPosition: p.Position,
	}}
	if p.Position > e.Board.TrackLength {
		return append(events, e.win(s, p)...), nil
	}
	return events, nil
}

// resolveCell applies the effect of the cell the player stands on. A landing
// not caused by the primary dice roll may trigger luck effects but never a
// new question or card prompt.
func (e *Engine) resolveCell(s *Session, p *Player, primary bool) []Event {
	switch kind := e.Board.CellAt(p.Position); {
	case kind == board.CellGoodLuck:
		s.Phase = PhaseGoodLuck
		events := []Event{e.applyLuck(p, kind)}
		if p.Position > e.Board.TrackLength {
			return append(events, e.win(s, p)...)
		}
		return append(events, e.schedule(e.Delays.Settle, Command{Type: CmdAdvanceTurn}))

	case kind == board.CellBadLuck:
		s.Phase = PhaseBadLuck
		events := []Event{e.applyLuck(p, kind)}
		return append(events, e.schedule(e.Delays.Settle, Command{Type: CmdAdvanceTurn}))

	case kind == board.CellQuestion && primary:
		s.Phase = PhaseQuestion
		s.QuestionSession = &QuestionSession{Slot: p.Slot}
		return []Event{{Type: EvtQuestionPrompt, Slot: p.Slot}}

	case kind == board.CellCard && primary:
		s.Phase = PhaseCard
		s.CardInProgress = &CardInProgress{Slot: p.Slot}
		return []Event{{Type: EvtCardPrompt, Slot: p.Slot}}

	default:
		s.Phase = PhaseWaiting
		return []Event{e.schedule(e.Delays.Advance, Command{Type: CmdAdvanceTurn})}
	}
}

// applyLuck moves p by the fixed luck value: +2 clamped to the track length,
// or -2 floored at zero.
func (e *Engine) applyLuck(p *Player, kind board.CellKind) Event {
	old := p.Position
	evt := Event{Type: EvtLuck, Slot: p.Slot, OldPosition: old}
	if kind == board.CellGoodLuck {
		p.Position = min(p.Position+goodLuckValue, e.Board.TrackLength)
		p.Stats.GoodLuckHits++
		evt.LuckKind = "good"
	} else {
		p.Position = max(p.Position-badLuckValue, 0)
		p.Stats.BadLuckHits++
		evt.LuckKind = "bad"
	}
	evt.NewPosition = p.Position
	evt.Movement = p.Position - old
	p.Stats.TotalMovement += evt.Movement
	return evt
}

func (e *Engine) chooseDifficulty(s *Session, cmd Command) ([]Event, error) {
	p, err := e.actingPlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	qs := s.QuestionSession
	if s.Phase != PhaseQuestion || qs == nil || qs.Slot != p.Slot || qs.Question != nil {
		return nil, ErrWrongPhase
	}
	if !s.Difficulty.Allows(cmd.Difficulty) {
		return nil, ErrInvalidDifficulty
	}

	q, err := e.Questions.Draw(cmd.Difficulty)
	if err != nil {
		// Pool is empty for that tier. The session stays in the question
		// phase with no tier recorded so the player can choose again.
		return nil, err
	}
	qs.Difficulty = cmd.Difficulty
	qs.Question = &q
	return []Event{{Type: EvtQuestionAsked, Slot: p.Slot, Question: &q}}, nil
}

func (e *Engine) answerQuestion(s *Session, cmd Command) ([]Event, error) {
	p, err := e.actingPlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	qs := s.QuestionSession
	if s.Phase != PhaseQuestion || qs == nil || qs.Slot != p.Slot || qs.Question == nil || qs.Answered {
		return nil, ErrWrongPhase
	}

	q := qs.Question
	correct := cmd.AnswerIndex == q.CorrectAnswer
	movement := -1
	if correct {
		movement = 1
		if q.Difficulty == questions.DifficultyHard {
			movement = 2
		}
		p.Stats.QuestionsCorrect++
	}
	p.Stats.QuestionsAnswered++

	old := p.Position
	p.Position = max(0, min(p.Position+movement, e.Board.TrackLength))
	p.Stats.TotalMovement += p.Position - old

	qs.Answered = true
	s.QuestionSession = nil

	return []Event{
		{
			Type:        EvtQuestionResult,
			Slot:        p.Slot,
			Correct:     correct,
			Explanation: q.Explanation,
			Movement:    movement,
			OldPosition: old,
			NewPosition: p.Position,
		},
		// Secondary landing: luck may cascade, question/card may not.
		e.schedule(e.Delays.Settle, Command{Type: CmdResolveCell, Slot: p.Slot, Primary: false}),
	}, nil
}

func (e *Engine) submitCardResult(s *Session, cmd Command) ([]Event, error) {
	p, err := e.actingPlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if s.Phase != PhaseCard || s.CardInProgress == nil || s.CardInProgress.Slot != p.Slot {
		return nil, ErrWrongPhase
	}
	if err := validateCardMovements(s, p.Slot, cmd.Movements); err != nil {
		return nil, err
	}

	// Every adjustment lands before any win is evaluated, so the final
	// positions of all affected players are correct even when an early
	// movement crosses the finish.
	affected := make([]int, 0, len(cmd.Movements))
	var winner *Player
	for _, mov := range cmd.Movements {
		target := s.PlayerBySlot(mov.Slot)
		old := target.Position
		// Floored at zero, uncapped above: a card can win the game.
		target.Position = max(0, target.Position+mov.Movement)
		target.Stats.TotalMovement += target.Position - old
		affected = append(affected, mov.Slot)

		if winner == nil && target.Position > e.Board.TrackLength {
			winner = target
		}
	}
	p.Stats.CardsPlayed++
	s.CardInProgress = nil

	events := []Event{{Type: EvtCardApplied, Slot: p.Slot, Movements: cmd.Movements}}
	if winner != nil {
		return append(events, e.win(s, winner)...), nil
	}
	return append(events, e.schedule(e.Delays.Settle, Command{Type: CmdResolveLuckBatch, Slots: affected})), nil
}

// validateCardMovements enforces the card-outcome contract: one or two
// definite adjustments, each for a distinct seated slot, affecting the acting
// player and/or at most one opponent.
func validateCardMovements(s *Session, actor int, movements []Movement) error {
	if len(movements) == 0 || len(movements) > 2 {
		return ErrInvalidCardResult
	}
	seen := make(map[int]bool, len(movements))
	opponents := 0
	for _, mov := range movements {
		if mov.Movement == 0 || mov.Movement < -3 || mov.Movement > 3 {
			return ErrInvalidCardResult
		}
		if seen[mov.Slot] || s.PlayerBySlot(mov.Slot) == nil {
			return ErrInvalidCardResult
		}
		seen[mov.Slot] = true
		if mov.Slot != actor {
			opponents++
		}
	}
	if opponents > 1 {
		return ErrInvalidCardResult
	}
	return nil
}

// resolveLuckBatch applies luck cells for every slot a card adjusted. No
// question or card prompt can open here. The turn advances after the luck
// effects settle, or immediately when there are none.
func (e *Engine) resolveLuckBatch(s *Session, slots []int) []Event {
	var events []Event
	for _, slot := range slots {
		p := s.PlayerBySlot(slot)
		if p == nil {
			continue
		}
		kind := e.Board.CellAt(p.Position)
		if kind != board.CellGoodLuck && kind != board.CellBadLuck {
			continue
		}
		events = append(events, e.applyLuck(p, kind))
		if p.Position > e.Board.TrackLength {
			return append(events, e.win(s, p)...)
		}
	}
	if len(events) == 0 {
		return []Event{e.advanceTurn(s)}
	}
	return append(events, e.schedule(e.Delays.Settle, Command{Type: CmdAdvanceTurn}))
}

// advanceTurn hands the turn to the next seated slot in ascending cyclic
// order and resets the phase for a fresh roll.
func (e *Engine) advanceTurn(s *Session) Event {
	slots := make([]int, 0, len(s.Players))
	for _, p := range s.Players {
		slots = append(slots, p.Slot)
	}
	sort.Ints(slots)

	next := slots[0]
	for _, slot := range slots {
		if slot > s.CurrentTurn {
			next = slot
			break
		}
	}
	s.CurrentTurn = next
	s.Phase = PhaseRolling
	s.TotalTurns++
	s.LastActivityAt = e.Now()
	return Event{Type: EvtTurnAdvanced, Slot: next}
}

func (e *Engine) win(s *Session, p *Player) []Event {
	s.Active = false
	return []Event{
		{Type: EvtWon, Slot: p.Slot},
		{Type: EvtEnded, Reason: EndWon, Slot: p.Slot},
	}
}

func (e *Engine) schedule(after time.Duration, next Command) Event {
	return Event{Type: EvtSchedule, After: after, Next: &next}
}
