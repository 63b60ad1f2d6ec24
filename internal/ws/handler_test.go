package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/quizrace/quizrace-backend/internal/board"
	"github.com/quizrace/quizrace-backend/internal/engine"
	"github.com/quizrace/quizrace-backend/internal/history"
	"github.com/quizrace/quizrace-backend/internal/questions"
	"github.com/quizrace/quizrace-backend/internal/room"
	"github.com/quizrace/quizrace-backend/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(board.Default(), func() int { return 1 }, questions.NewPool(nil, 1))
	store := history.NewFileStore(t.TempDir() + "/history.json")
	rm := room.New(context.Background(), eng, store, room.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() { rm.Inbox() <- room.Shutdown{} })

	srv := httptest.NewServer(Handler(rm, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// recvWire reads frames until one of the wanted type arrives. Data comes back
// as the decoded JSON object.
func recvWire(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("read while waiting for %s: %v", wantType, err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if envelope["type"] == wantType {
			return envelope
		}
	}
	t.Fatalf("timed out waiting for %s", wantType)
	return nil
}

func TestHandler_JoinFlowOverWire(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv)
	send(t, alice, types.ClientMessage{Type: types.MsgJoinWaitingRoom, Username: "alice", Avatar: "avatarOwl"})

	assigned := recvWire(t, alice, types.EvtPlayerAssigned)
	data := assigned["data"].(map[string]any)
	if data["slot"] != float64(1) || data["username"] != "alice" || data["avatar"] != "avatarOwl" {
		t.Fatalf("bad assignment payload: %+v", data)
	}

	bob := dial(t, srv)
	send(t, bob, types.ClientMessage{Type: types.MsgJoinWaitingRoom, Username: "bob"})
	recvWire(t, bob, types.EvtPlayerAssigned)

	// The roster broadcast reaches the first connection too.
	for {
		state := recvWire(t, alice, types.EvtWaitingRoomState)
		if state["data"].(map[string]any)["playerCount"] == float64(2) {
			break
		}
	}
}

func TestHandler_MalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	errMsg := recvWire(t, conn, types.EvtErrorMessage)
	if errMsg["error"] != "bad json" {
		t.Fatalf("bad error payload: %+v", errMsg)
	}

	// The connection survives and still works.
	send(t, conn, types.ClientMessage{Type: types.MsgJoinWaitingRoom, Username: "still here"})
	recvWire(t, conn, types.EvtPlayerAssigned)
}

func TestHandler_DisconnectFreesSeat(t *testing.T) {
	srv := newTestServer(t)

	first := dial(t, srv)
	send(t, first, types.ClientMessage{Type: types.MsgJoinWaitingRoom, Username: "first"})
	recvWire(t, first, types.EvtPlayerAssigned)

	second := dial(t, srv)
	send(t, second, types.ClientMessage{Type: types.MsgJoinWaitingRoom, Username: "second"})
	assigned := recvWire(t, second, types.EvtPlayerAssigned)
	if assigned["data"].(map[string]any)["slot"] != float64(2) {
		t.Fatalf("want slot 2: %+v", assigned)
	}

	first.Close(websocket.StatusNormalClosure, "")

	// Seat 1 renumbers down to the remaining player.
	reassigned := recvWire(t, second, types.EvtSlotReassigned)
	if reassigned["data"].(map[string]any)["slot"] != float64(1) {
		t.Fatalf("bad reassignment: %+v", reassigned)
	}
}
