package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quizrace/quizrace-backend/internal/board"
	"github.com/quizrace/quizrace-backend/internal/engine"
	"github.com/quizrace/quizrace-backend/internal/history"
	"github.com/quizrace/quizrace-backend/internal/httpapi"
	"github.com/quizrace/quizrace-backend/internal/questions"
	"github.com/quizrace/quizrace-backend/internal/room"
)

func main() {
	_ = godotenv.Load()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(contextWithSignals()))
}

func contextWithSignals() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func run(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	b := board.Default()
	if cfg.boardPath != "" {
		if b, err = board.Load(cfg.boardPath); err != nil {
			return err
		}
	}

	pool, err := questions.LoadFile(cfg.questionsPath, uint64(time.Now().UnixNano()))
	if err != nil {
		return err
	}
	log.Info("question pool loaded", zap.Int("questions", pool.Len()))

	var store history.Store
	if cfg.historyDSN != "" {
		if store, err = history.NewPostgresStore(cfg.historyDSN); err != nil {
			return err
		}
		log.Info("using postgres game history")
	} else {
		store = history.NewFileStore(cfg.historyFile)
		log.Info("using file game history", zap.String("path", cfg.historyFile))
	}

	roomCfg := room.DefaultConfig()
	roomCfg.Liveness.HeartbeatTimeout = cfg.heartbeatTimeout
	roomCfg.Liveness.InactivityTimeout = cfg.inactivityTimeout
	roomCfg.Liveness.SweepInterval = cfg.sweepInterval

	die := engine.NewWeightedDie(uint64(time.Now().UnixNano()))
	eng := engine.New(b, die.Roll, pool)
	rm := room.New(ctx, eng, store, roomCfg, log)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           httpapi.SetupRoutes(rm, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rm.Inbox() <- room.Shutdown{}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
