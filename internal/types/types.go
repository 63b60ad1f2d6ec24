// Package types defines the websocket wire contract.
package types

import (
	"github.com/quizrace/quizrace-backend/internal/history"
	"github.com/quizrace/quizrace-backend/internal/waiting"
)

// Inbound command types.
const (
	MsgJoinWaitingRoom   = "joinWaitingRoom"
	MsgUpdateProfile     = "updateProfile"
	MsgStartGame         = "startGame"
	MsgRollDice          = "rollDice"
	MsgConfirmMove       = "confirmMove"
	MsgChooseDifficulty  = "chooseDifficulty"
	MsgAnswerQuestion    = "answerQuestion"
	MsgSubmitCardResult  = "submitCardResult"
	MsgEndGameManually   = "endGameManually"
	MsgHeartbeat         = "heartbeat"
	MsgSaveGameToHistory = "saveGameToHistory"
	MsgSkipSaveGame      = "skipSaveGame"
	MsgGetGameHistory    = "getGameHistory"
)

// Outbound event types.
const (
	EvtPlayerAssigned    = "playerAssigned"
	EvtSlotReassigned    = "slotReassigned"
	EvtWaitingRoomState  = "waitingRoomState"
	EvtGameStarted       = "gameStarted"
	EvtGameStateUpdate   = "gameStateUpdate"
	EvtDiceRolled        = "diceRolled"
	EvtLuckEvent         = "luckEvent"
	EvtDifficultyPrompt  = "difficultyPrompt"
	EvtQuestionStart     = "questionStart"
	EvtQuestionResult    = "questionResult"
	EvtCardPrompt        = "cardPrompt"
	EvtCardResultApplied = "cardResultApplied"
	EvtGameWon           = "gameWon"
	EvtGameEnded         = "gameEnded"
	EvtReturnToLobby     = "returnToLobby"
	EvtSpectatorMode     = "spectatorMode"
	EvtErrorMessage      = "errorMessage"
	EvtGameHistory       = "gameHistory"
	EvtGameSaved         = "gameSaved"
)

type MovementPayload struct {
	Slot     int `json:"slot"`
	Movement int `json:"movement"`
}

// ClientMessage is the single inbound envelope. Fields beyond Type are
// populated per command.
type ClientMessage struct {
	Type        string            `json:"type"`
	Username    string            `json:"username,omitempty"`
	Avatar      string            `json:"avatar,omitempty"`
	Difficulty  string            `json:"difficulty,omitempty"`
	AnswerIndex *int              `json:"answerIndex,omitempty"`
	Movements   []MovementPayload `json:"movements,omitempty"`
	GameName    string            `json:"gameName,omitempty"`
	GameSummary *history.Summary  `json:"gameSummary,omitempty"`
}

// ServerMessage is the single outbound envelope.
type ServerMessage struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type PlayerAssigned struct {
	Slot     int    `json:"slot"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type SlotReassigned struct {
	Slot int `json:"slot"`
}

type WaitingRoomState struct {
	Players     []waiting.RosterPlayer `json:"players"`
	PlayerCount int                    `json:"playerCount"`
}

type GameStarted struct {
	StartedAt int64 `json:"startedAt"` // unix millis
}

// SnapshotPlayer is the per-player slice of a full-state broadcast. It never
// carries connection ids or answer keys.
type SnapshotPlayer struct {
	Slot      int    `json:"slot"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Position  int    `json:"position"`
	Connected bool   `json:"connected"`
}

// Snapshot is the full-session state broadcast on every mutating transition.
type Snapshot struct {
	Active      bool             `json:"active"`
	CurrentTurn int              `json:"currentTurn"`
	Phase       string           `json:"phase"`
	Players     []SnapshotPlayer `json:"players"`
}

type DiceRolled struct {
	Slot        int `json:"slot"`
	Result      int `json:"result"`
	NewPosition int `json:"newPosition"`
}

type LuckEvent struct {
	Slot           int    `json:"slot"`
	Kind           string `json:"kind"` // "good" | "bad"
	OldPosition    int    `json:"oldPosition"`
	NewPosition    int    `json:"newPosition"`
	ActualMovement int    `json:"actualMovement"`
}

type DifficultyPrompt struct {
	Slot    int      `json:"slot"`
	Choices []string `json:"choices"`
}

// QuestionStart is sent privately to the acting player. No answer key.
type QuestionStart struct {
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty"`
}

type QuestionResult struct {
	Slot        int    `json:"slot"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
	Movement    int    `json:"movement"`
	OldPosition int    `json:"oldPosition"`
	NewPosition int    `json:"newPosition"`
}

type CardPrompt struct {
	Slot       int    `json:"slot"`
	PlayerName string `json:"playerName"`
}

type CardResultApplied struct {
	Slot      int               `json:"slot"`
	Movements []MovementPayload `json:"movements"`
}

type Winner struct {
	Slot     int    `json:"slot"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type GameWon struct {
	Winner Winner `json:"winner"`
}

type SpectatorMode struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type GameSaved struct {
	Success  bool   `json:"success"`
	GameName string `json:"gameName"`
}
