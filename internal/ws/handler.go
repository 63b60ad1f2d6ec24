package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizrace/quizrace-backend/internal/room"
	"github.com/quizrace/quizrace-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	// Liveness heartbeats arrive every couple of seconds; a read this stale
	// means the connection is gone.
	readTimeout = 30 * time.Second
)

func Handler(r *room.Room, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan types.ServerMessage, 16)

		r.Inbox() <- room.Join{ClientID: clientID, Outbox: out}
		defer func() { r.Inbox() <- room.Leave{ClientID: clientID} }()

		log.Debug("client connected", zap.String("client_id", clientID))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(req.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(req.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Anything else: exit and let the deferred Leave run.
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(req.Context(), websocket.MessageText,
					[]byte(`{"type":"errorMessage","error":"bad json"}`))
				continue
			}

			r.Inbox() <- room.FromClient{ClientID: clientID, Msg: cm}
		}
	}
}
