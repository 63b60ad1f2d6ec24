// Package liveness classifies in-game connections from their heartbeat
// signals. The sweep itself is pure; the room actor drives it from its own
// ticker so session state is only ever touched on the actor goroutine.
package liveness

import (
	"time"

	"github.com/quizrace/quizrace-backend/internal/engine"
)

type Config struct {
	SweepInterval     time.Duration // how often the room sweeps
	HeartbeatTimeout  time.Duration // silence before a player is marked disconnected
	InactivityTimeout time.Duration // all-disconnected duration before the session is force-ended
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:     2 * time.Second,
		HeartbeatTimeout:  5 * time.Second,
		InactivityTimeout: 10 * time.Minute,
	}
}

type Result struct {
	TimedOut        []int // slots newly marked disconnected this sweep
	AllDisconnected bool
	Expired         bool // inactivity threshold crossed; session should end
}

// Sweep marks players disconnected whose heartbeat is older than the
// timeout, then evaluates the all-disconnected inactivity clock against the
// session's last-activity timestamp.
func Sweep(s *engine.Session, now time.Time, cfg Config) Result {
	var res Result
	for _, p := range s.Players {
		if p.Connected && !p.LastHeartbeat.IsZero() && now.Sub(p.LastHeartbeat) > cfg.HeartbeatTimeout {
			p.Connected = false
			res.TimedOut = append(res.TimedOut, p.Slot)
		}
	}

	res.AllDisconnected = true
	for _, p := range s.Players {
		if p.Connected {
			res.AllDisconnected = false
			break
		}
	}

	if res.AllDisconnected {
		if !s.LastActivityAt.IsZero() && now.Sub(s.LastActivityAt) > cfg.InactivityTimeout {
			res.Expired = true
		}
	} else {
		// Someone is still here; the inactivity clock restarts.
		s.LastActivityAt = now
	}
	return res
}
