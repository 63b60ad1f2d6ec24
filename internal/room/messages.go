package room

import (
	"github.com/quizrace/quizrace-backend/internal/engine"
	"github.com/quizrace/quizrace-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

// Join registers a connection and the channel it wants events delivered on.
type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// FromClient carries one decoded wire command from a connection.
type FromClient struct {
	ClientID string
	Msg      types.ClientMessage
}

func (FromClient) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetView reflects internal state without data races. Test-only.
type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

// timerFired is a scheduled continuation coming home. Fires from an older
// session generation are dropped.
type timerFired struct {
	gen int
	cmd engine.Command
}

func (timerFired) isRoomMsg() {}

// tick drives one liveness sweep.
type tick struct{}

func (tick) isRoomMsg() {}

// View is a race-free copy of the observable room state.
type View struct {
	NumClients    int
	WaitingCount  int
	WaitingSlots  []int
	Active        bool
	Phase         engine.Phase
	CurrentTurn   int
	TotalTurns    int
	Positions     map[int]int
	Connected     map[int]bool
	QuestionOwner int // 0 when no question session
	CardOwner     int // 0 when no card in progress
	PendingReturn bool
}
