package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quizrace/quizrace-backend/internal/room"
	"github.com/quizrace/quizrace-backend/internal/ws"
)

func SetupRoutes(rm *room.Room, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(rm, log))
	return r
}
