// Package room hosts the single game room: one actor goroutine owns the
// waiting roster, the session state machine, the phase timers and the client
// registry. Everything the session touches happens on that goroutine;
// scheduled continuations and liveness ticks re-enter through the inbox.
package room

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizrace/quizrace-backend/internal/engine"
	"github.com/quizrace/quizrace-backend/internal/history"
	"github.com/quizrace/quizrace-backend/internal/liveness"
	"github.com/quizrace/quizrace-backend/internal/types"
	"github.com/quizrace/quizrace-backend/internal/waiting"
)

type Config struct {
	Liveness   liveness.Config
	MinPlayers int
	MaxPlayers int
}

func DefaultConfig() Config {
	return Config{
		Liveness:   liveness.DefaultConfig(),
		MinPlayers: 2,
		MaxPlayers: 4,
	}
}

type Room struct {
	inbox   chan Msg
	clients map[string]chan types.ServerMessage

	waiting *waiting.Room
	session *engine.Session
	engine  *engine.Engine
	store   history.Store
	cfg     Config
	log     *zap.Logger

	// gen scopes timers to one session lifetime. Any timer armed before an
	// end/reset fires with a stale gen and is dropped.
	gen    int
	timers map[engine.CommandType]*time.Timer

	// pendingReturn defers the lobby-return broadcast after a manual end
	// until some client saves or skips, so the summary stays on screen.
	pendingReturn bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, eng *engine.Engine, store history.Store, cfg Config, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan types.ServerMessage),
		waiting: waiting.New(),
		engine:  eng,
		store:   store,
		cfg:     cfg,
		log:     log,
		timers:  make(map[engine.CommandType]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	go r.tickLoop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) tickLoop() {
	ticker := time.NewTicker(r.cfg.Liveness.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			select {
			case r.inbox <- tick{}:
			case <-r.ctx.Done():
				return
			}
		}
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg.ClientID)
			case FromClient:
				r.handleClientMessage(msg.ClientID, msg.Msg)
			case timerFired:
				r.handleTimerFired(msg)
			case tick:
				r.handleTick()
			case GetView:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	r.cancelTimers()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

// ---- connection lifecycle ----

func (r *Room) handleJoin(msg Join) {
	r.clients[msg.ClientID] = msg.Outbox
	// A connection arriving mid-game gets the board immediately, before it
	// even identifies itself.
	if r.session != nil && r.session.Active {
		r.sendTo(msg.ClientID, types.ServerMessage{
			Type: types.EvtGameStarted,
			Data: types.GameStarted{StartedAt: r.session.StartedAt.UnixMilli()},
		})
		r.sendTo(msg.ClientID, r.snapshotMessage())
	}
}

func (r *Room) handleLeave(clientID string) {
	// Closing the outbox releases the connection's writer goroutine.
	if ch, ok := r.clients[clientID]; ok {
		close(ch)
		delete(r.clients, clientID)
	}

	if r.session != nil && r.session.Active {
		// During a game the seat survives the connection.
		if p := r.session.PlayerByClient(clientID); p != nil {
			p.Connected = false
			r.log.Info("player disconnected, seat retained",
				zap.Int("slot", p.Slot), zap.String("username", p.Username))
			r.broadcast(r.snapshotMessage())
		}
		return
	}

	if removed, reassigned := r.waiting.Leave(clientID); removed != nil {
		for _, e := range reassigned {
			r.sendTo(e.ClientID, types.ServerMessage{
				Type: types.EvtSlotReassigned,
				Data: types.SlotReassigned{Slot: e.Slot},
			})
		}
		r.broadcastRoster()
	}
}

// ---- inbound command dispatch ----

func (r *Room) handleClientMessage(clientID string, msg types.ClientMessage) {
	switch msg.Type {
	case types.MsgJoinWaitingRoom:
		r.handleJoinWaitingRoom(clientID, msg)
	case types.MsgUpdateProfile:
		if r.waiting.UpdateProfile(clientID, msg.Username, msg.Avatar) != nil {
			r.broadcastRoster()
		}
	case types.MsgStartGame:
		r.handleStartGame(clientID, msg)
	case types.MsgRollDice:
		r.applyCommand(clientID, engine.Command{Type: engine.CmdRollDice, ClientID: clientID})
	case types.MsgConfirmMove:
		r.applyCommand(clientID, engine.Command{Type: engine.CmdConfirmMove, ClientID: clientID})
	case types.MsgChooseDifficulty:
		r.applyCommand(clientID, engine.Command{
			Type: engine.CmdChooseDifficulty, ClientID: clientID, Difficulty: msg.Difficulty,
		})
	case types.MsgAnswerQuestion:
		if msg.AnswerIndex == nil {
			r.sendError(clientID, "Missing answer.")
			return
		}
		r.applyCommand(clientID, engine.Command{
			Type: engine.CmdAnswerQuestion, ClientID: clientID, AnswerIndex: *msg.AnswerIndex,
		})
	case types.MsgSubmitCardResult:
		movements := make([]engine.Movement, 0, len(msg.Movements))
		for _, m := range msg.Movements {
			movements = append(movements, engine.Movement{Slot: m.Slot, Movement: m.Movement})
		}
		r.applyCommand(clientID, engine.Command{
			Type: engine.CmdSubmitCardResult, ClientID: clientID, Movements: movements,
		})
	case types.MsgEndGameManually:
		r.applyCommand(clientID, engine.Command{Type: engine.CmdEndGame, ClientID: clientID})
	case types.MsgHeartbeat:
		if r.session != nil && r.session.Active {
			_, _ = r.engine.Apply(r.session, engine.Command{Type: engine.CmdHeartbeat, ClientID: clientID})
		}
	case types.MsgSaveGameToHistory:
		r.handleSaveGame(clientID, msg)
	case types.MsgSkipSaveGame:
		r.finishLobbyReturn()
	case types.MsgGetGameHistory:
		r.handleGetHistory(clientID)
	default:
		r.sendError(clientID, "Unknown command.")
	}
}

// applyCommand runs one client-issued engine command; protocol and
// validation failures are echoed only to the sender, with no state change.
func (r *Room) applyCommand(clientID string, cmd engine.Command) {
	events, err := r.engine.Apply(r.session, cmd)
	if err != nil {
		r.sendError(clientID, errorText(err))
		return
	}
	r.processEvents(events)
	r.broadcast(r.snapshotMessage())
}

func errorText(err error) string {
	switch err {
	case engine.ErrNotActive:
		return "No game in progress."
	case engine.ErrWrongTurn:
		return "It's not your turn!"
	case engine.ErrWrongPhase:
		return "You can't do that right now."
	case engine.ErrUnknownPlayer:
		return "You are not part of this game."
	case engine.ErrNotHost:
		return "Only Player 1 can do that."
	case engine.ErrInvalidDifficulty:
		return "Invalid difficulty choice."
	case engine.ErrInvalidCardResult:
		return "Invalid card result."
	default:
		return err.Error()
	}
}

// ---- waiting room / session start ----

func (r *Room) handleJoinWaitingRoom(clientID string, msg types.ClientMessage) {
	if r.session != nil && r.session.Active {
		r.reconnectOrSpectate(clientID, msg)
		return
	}

	if r.waiting.Get(clientID) != nil {
		return
	}
	if r.waiting.Len() >= r.cfg.MaxPlayers {
		r.sendError(clientID, "The waiting room is full.")
		return
	}

	entry, _ := r.waiting.Join(clientID, msg.Username, msg.Avatar, time.Now())
	r.sendTo(clientID, types.ServerMessage{
		Type: types.EvtPlayerAssigned,
		Data: types.PlayerAssigned{Slot: entry.Slot, Username: entry.Username, Avatar: entry.Avatar},
	})
	r.broadcastRoster()
}

// reconnectOrSpectate handles a join request while a game is running:
// a username matching an in-game player rebinds that seat to the new
// connection; anything else becomes a read-only spectator.
func (r *Room) reconnectOrSpectate(clientID string, msg types.ClientMessage) {
	name := strings.TrimSpace(msg.Username)

	var player *engine.Player
	for _, p := range r.session.Players {
		if p.Username == name && name != "" {
			player = p
			break
		}
	}

	if player == nil {
		if name == "" {
			name = "Spectator"
		}
		if len(name) > waiting.MaxUsernameLen {
			name = name[:waiting.MaxUsernameLen]
		}
		r.sendTo(clientID, types.ServerMessage{
			Type: types.EvtSpectatorMode,
			Data: types.SpectatorMode{
				Username: name,
				Message:  "A game is currently in progress. You are in spectator mode.",
			},
		})
		r.sendTo(clientID, types.ServerMessage{
			Type: types.EvtGameStarted,
			Data: types.GameStarted{StartedAt: r.session.StartedAt.UnixMilli()},
		})
		r.sendTo(clientID, r.snapshotMessage())
		return
	}

	r.log.Info("player reconnected",
		zap.Int("slot", player.Slot), zap.String("username", player.Username))
	player.ClientID = clientID
	player.Connected = true
	player.LastHeartbeat = time.Now()

	r.sendTo(clientID, types.ServerMessage{
		Type: types.EvtPlayerAssigned,
		Data: types.PlayerAssigned{Slot: player.Slot, Username: player.Username, Avatar: player.Avatar},
	})
	r.sendTo(clientID, types.ServerMessage{
		Type: types.EvtGameStarted,
		Data: types.GameStarted{StartedAt: r.session.StartedAt.UnixMilli()},
	})
	r.broadcast(r.snapshotMessage())
	r.replayPendingPrompt(player)
}

// replayPendingPrompt re-delivers whatever private prompt the seat was owed
// when its previous connection died.
func (r *Room) replayPendingPrompt(p *engine.Player) {
	if qs := r.session.QuestionSession; qs != nil && qs.Slot == p.Slot {
		if qs.Question == nil {
			r.sendTo(p.ClientID, types.ServerMessage{
				Type: types.EvtDifficultyPrompt,
				Data: types.DifficultyPrompt{Slot: p.Slot, Choices: r.session.Difficulty.Tiers()},
			})
		} else if !qs.Answered {
			r.sendTo(p.ClientID, types.ServerMessage{
				Type: types.EvtQuestionStart,
				Data: types.QuestionStart{
					Question:   qs.Question.Text,
					Options:    qs.Question.Options,
					Difficulty: qs.Question.Difficulty,
				},
			})
		}
	}
	if c := r.session.CardInProgress; c != nil && c.Slot == p.Slot {
		r.sendTo(p.ClientID, types.ServerMessage{
			Type: types.EvtCardPrompt,
			Data: types.CardPrompt{Slot: p.Slot, PlayerName: p.Username},
		})
	}
}

func (r *Room) handleStartGame(clientID string, msg types.ClientMessage) {
	entry := r.waiting.Get(clientID)
	if entry == nil {
		return
	}
	if entry.Slot != 1 {
		r.sendError(clientID, "Only Player 1 can start the game.")
		return
	}
	if r.waiting.Len() < r.cfg.MinPlayers {
		r.sendError(clientID, "At least 2 players are required to start.")
		return
	}
	policy := engine.Policy(msg.Difficulty)
	if msg.Difficulty == "" {
		policy = engine.PolicyMixed
	}
	if !policy.Valid() {
		r.sendError(clientID, "Invalid difficulty.")
		return
	}

	now := time.Now()
	players := make([]*engine.Player, 0, r.waiting.Len())
	for _, e := range r.waiting.Snapshot() {
		players = append(players, &engine.Player{
			Slot:          e.Slot,
			ClientID:      e.ClientID,
			Username:      e.Username,
			Avatar:        e.Avatar,
			Connected:     true,
			LastHeartbeat: now,
			Stats:         engine.Stats{DiceRolls: []int{}},
		})
	}

	r.gen++
	r.session = engine.NewSession(players, policy, now)
	r.pendingReturn = false
	r.log.Info("game started",
		zap.Int("players", len(players)), zap.String("difficulty", string(policy)))

	r.broadcast(types.ServerMessage{
		Type: types.EvtGameStarted,
		Data: types.GameStarted{StartedAt: now.UnixMilli()},
	})
	r.broadcast(r.snapshotMessage())
}

// ---- engine event plumbing ----

func (r *Room) processEvents(events []engine.Event) {
	for _, evt := range events {
		switch evt.Type {
		case engine.EvtSchedule:
			r.armTimer(evt.After, *evt.Next)

		case engine.EvtDiceRolled:
			r.broadcast(types.ServerMessage{
				Type: types.EvtDiceRolled,
				Data: types.DiceRolled{Slot: evt.Slot, Result: evt.Dice, NewPosition: evt.NewPosition},
			})

		case engine.EvtLuck:
			r.broadcast(types.ServerMessage{
				Type: types.EvtLuckEvent,
				Data: types.LuckEvent{
					Slot:           evt.Slot,
					Kind:           evt.LuckKind,
					OldPosition:    evt.OldPosition,
					NewPosition:    evt.NewPosition,
					ActualMovement: evt.Movement,
				},
			})

		case engine.EvtQuestionPrompt:
			r.sendToSlot(evt.Slot, types.ServerMessage{
				Type: types.EvtDifficultyPrompt,
				Data: types.DifficultyPrompt{Slot: evt.Slot, Choices: r.session.Difficulty.Tiers()},
			})

		case engine.EvtQuestionAsked:
			r.sendToSlot(evt.Slot, types.ServerMessage{
				Type: types.EvtQuestionStart,
				Data: types.QuestionStart{
					Question:   evt.Question.Text,
					Options:    evt.Question.Options,
					Difficulty: evt.Question.Difficulty,
				},
			})

		case engine.EvtQuestionResult:
			r.broadcast(types.ServerMessage{
				Type: types.EvtQuestionResult,
				Data: types.QuestionResult{
					Slot:        evt.Slot,
					Correct:     evt.Correct,
					Explanation: evt.Explanation,
					Movement:    evt.Movement,
					OldPosition: evt.OldPosition,
					NewPosition: evt.NewPosition,
				},
			})

		case engine.EvtCardPrompt:
			name := ""
			if p := r.session.PlayerBySlot(evt.Slot); p != nil {
				name = p.Username
			}
			r.sendToSlot(evt.Slot, types.ServerMessage{
				Type: types.EvtCardPrompt,
				Data: types.CardPrompt{Slot: evt.Slot, PlayerName: name},
			})

		case engine.EvtCardApplied:
			movements := make([]types.MovementPayload, 0, len(evt.Movements))
			for _, m := range evt.Movements {
				movements = append(movements, types.MovementPayload{Slot: m.Slot, Movement: m.Movement})
			}
			r.broadcast(types.ServerMessage{
				Type: types.EvtCardResultApplied,
				Data: types.CardResultApplied{Slot: evt.Slot, Movements: movements},
			})

		case engine.EvtWon:
			if p := r.session.PlayerBySlot(evt.Slot); p != nil {
				r.broadcast(types.ServerMessage{
					Type: types.EvtGameWon,
					Data: types.GameWon{Winner: types.Winner{
						Slot: p.Slot, Username: p.Username, Avatar: p.Avatar,
					}},
				})
			}

		case engine.EvtEnded:
			r.endSession(evt.Reason)

		case engine.EvtTurnAdvanced:
			// The snapshot broadcast carries the new turn.
		}
	}
}

func (r *Room) endSession(reason engine.EndReason) {
	r.cancelTimers()
	summary := history.NewSummary(r.session, reason, time.Now())
	r.broadcast(types.ServerMessage{Type: types.EvtGameEnded, Data: summary})
	r.log.Info("game ended", zap.String("reason", string(reason)))

	switch reason {
	case engine.EndManual:
		// Players go back to the lobby with their seats intact, but the
		// roster broadcast waits for save-or-skip.
		now := time.Now()
		entries := make([]*waiting.Entry, 0, len(r.session.Players))
		for _, p := range r.session.Players {
			entries = append(entries, &waiting.Entry{
				ClientID: p.ClientID,
				Username: p.Username,
				Avatar:   p.Avatar,
				Slot:     p.Slot,
				JoinedAt: now,
			})
		}
		r.waiting.Seed(entries)
		r.pendingReturn = true
	case engine.EndInactivity:
		r.waiting.Clear()
	}
}

// ---- timers ----

// armTimer schedules a continuation, replacing any pending timer of the same
// kind. The fire carries the generation it was armed under; handleTimerFired
// drops anything stale.
func (r *Room) armTimer(after time.Duration, cmd engine.Command) {
	if t, ok := r.timers[cmd.Type]; ok {
		t.Stop()
	}
	gen := r.gen
	r.timers[cmd.Type] = time.AfterFunc(after, func() {
		select {
		case r.inbox <- timerFired{gen: gen, cmd: cmd}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) cancelTimers() {
	for kind, t := range r.timers {
		t.Stop()
		delete(r.timers, kind)
	}
	r.gen++
}

func (r *Room) handleTimerFired(msg timerFired) {
	if msg.gen != r.gen {
		return
	}
	if r.session == nil || !r.session.Active {
		return
	}
	events, err := r.engine.Apply(r.session, msg.cmd)
	if err != nil {
		r.log.Warn("continuation rejected",
			zap.String("cmd", string(msg.cmd.Type)), zap.Error(err))
		return
	}
	r.processEvents(events)
	r.broadcast(r.snapshotMessage())
}

// ---- liveness ----

func (r *Room) handleTick() {
	if r.session == nil || !r.session.Active {
		return
	}
	res := liveness.Sweep(r.session, time.Now(), r.cfg.Liveness)
	if res.Expired {
		r.log.Warn("all players disconnected past the inactivity limit")
		r.session.Active = false
		r.endSession(engine.EndInactivity)
		r.broadcast(r.snapshotMessage())
		return
	}
	if len(res.TimedOut) > 0 {
		for _, slot := range res.TimedOut {
			r.log.Info("player timed out", zap.Int("slot", slot))
		}
		r.broadcast(r.snapshotMessage())
	}
}

// ---- history ----

func (r *Room) handleSaveGame(clientID string, msg types.ClientMessage) {
	name := strings.TrimSpace(msg.GameName)
	if len(name) > history.MaxNameLen {
		name = name[:history.MaxNameLen]
	}
	if len(name) < 3 || msg.GameSummary == nil {
		r.sendError(clientID, "Invalid game data.")
		return
	}

	summary := *msg.GameSummary
	summary.ID = uuid.NewString()
	summary.Name = name
	summary.SavedAt = time.Now()

	if err := r.store.Append(r.ctx, summary); err != nil {
		r.log.Error("failed to save game", zap.Error(err))
		r.sendError(clientID, "Failed to save game.")
		return
	}
	r.sendTo(clientID, types.ServerMessage{
		Type: types.EvtGameSaved,
		Data: types.GameSaved{Success: true, GameName: name},
	})
	r.finishLobbyReturn()
}

func (r *Room) finishLobbyReturn() {
	if !r.pendingReturn {
		return
	}
	r.pendingReturn = false
	r.broadcast(types.ServerMessage{Type: types.EvtReturnToLobby})
	r.broadcastRoster()
}

func (r *Room) handleGetHistory(clientID string) {
	summaries, err := r.store.List(r.ctx)
	if err != nil {
		r.log.Error("failed to load game history", zap.Error(err))
		r.sendError(clientID, "Failed to load game history.")
		return
	}
	r.sendTo(clientID, types.ServerMessage{Type: types.EvtGameHistory, Data: summaries})
}

// ---- delivery ----

func (r *Room) snapshotMessage() types.ServerMessage {
	snap := types.Snapshot{Players: []types.SnapshotPlayer{}}
	if r.session != nil {
		snap.Active = r.session.Active
		snap.CurrentTurn = r.session.CurrentTurn
		snap.Phase = string(r.session.Phase)
		for _, p := range r.session.Players {
			snap.Players = append(snap.Players, types.SnapshotPlayer{
				Slot:      p.Slot,
				Username:  p.Username,
				Avatar:    p.Avatar,
				Position:  p.Position,
				Connected: p.Connected,
			})
		}
	}
	return types.ServerMessage{Type: types.EvtGameStateUpdate, Data: snap}
}

func (r *Room) broadcastRoster() {
	r.broadcast(types.ServerMessage{
		Type: types.EvtWaitingRoomState,
		Data: types.WaitingRoomState{Players: r.waiting.Roster(), PlayerCount: r.waiting.Len()},
	})
}

func (r *Room) sendError(clientID, text string) {
	r.sendTo(clientID, types.ServerMessage{Type: types.EvtErrorMessage, Error: text})
}

func (r *Room) sendToSlot(slot int, msg types.ServerMessage) {
	if r.session == nil {
		return
	}
	if p := r.session.PlayerBySlot(slot); p != nil {
		r.sendTo(p.ClientID, msg)
	}
}

func (r *Room) sendTo(clientID string, msg types.ServerMessage) {
	ch, ok := r.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Client is slow/full - drop them.
		close(ch)
		delete(r.clients, clientID)
	}
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for id, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) view() View {
	v := View{
		NumClients:    len(r.clients),
		WaitingCount:  r.waiting.Len(),
		Positions:     map[int]int{},
		Connected:     map[int]bool{},
		PendingReturn: r.pendingReturn,
	}
	for _, e := range r.waiting.Snapshot() {
		v.WaitingSlots = append(v.WaitingSlots, e.Slot)
	}
	if r.session != nil {
		v.Active = r.session.Active
		v.Phase = r.session.Phase
		v.CurrentTurn = r.session.CurrentTurn
		v.TotalTurns = r.session.TotalTurns
		for _, p := range r.session.Players {
			v.Positions[p.Slot] = p.Position
			v.Connected[p.Slot] = p.Connected
		}
		if r.session.QuestionSession != nil {
			v.QuestionOwner = r.session.QuestionSession.Slot
		}
		if r.session.CardInProgress != nil {
			v.CardOwner = r.session.CardInProgress.Slot
		}
	}
	return v
}
