package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

type matchRepo interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
}

type Stats struct {
	ActiveSessions int `json:"activeSessions"`
	WaitingPlayers int `json:"waitingPlayers"`
}

// Registry pairs incoming connections into sessions and routes their actions.
// Lock order is registry then session, never the reverse.
type Registry struct {
	logger      *slog.Logger
	settings    entity.Settings
	idleTimeout time.Duration
	matches     matchRepo
	now         func() time.Time

	mu       sync.Mutex
	pending  *Session
	sessions map[string]*Session
	members  map[string]*Session
}

func NewRegistry(logger *slog.Logger, settings entity.Settings, idleTimeout time.Duration, matches matchRepo) *Registry {
	return &Registry{
		logger:      logger.With("component", "registry"),
		settings:    settings,
		idleTimeout: idleTimeout,
		matches:     matches,
		now:         time.Now,

		sessions: make(map[string]*Session),
		members:  make(map[string]*Session),
	}
}

// JoinSession - seats conn in the waiting session, or opens a new one. The first connection of a
// pair plays A, the second plays B and starts the game.
func (that *Registry) JoinSession(_ context.Context, conn Conn) (*Session, entity.Team, error) {
	log := that.logger.With("method", "JoinSession", "conn", conn.ID())

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.members[conn.ID()]; ok {
		return nil, entity.NoTeam, fmt.Errorf("%w: connection %s already seated", apperror.ErrSessionFull, conn.ID())
	}

	session := that.pending
	if session == nil {
		var err error

		session, err = newSession(uuid.NewString(), that.settings, that.logger, that.now)
		if err != nil {
			return nil, entity.NoTeam, err
		}

		that.pending = session
		that.sessions[session.ID] = session
	}

	team, err := session.join(conn)
	if err != nil {
		return nil, entity.NoTeam, fmt.Errorf("failed to join session %s: %w", session.ID, err)
	}

	that.members[conn.ID()] = session

	if team == entity.TeamB {
		that.pending = nil

		if err = session.start(); err != nil {
			return nil, entity.NoTeam, fmt.Errorf("failed to start session %s: %w", session.ID, err)
		}
	}

	log.Info("connection seated", "session", session.ID, "team", team)

	return session, team, nil
}

// Dispatch - routes an action to the session conn belongs to.
func (that *Registry) Dispatch(ctx context.Context, conn Conn, action entity.Action) error {
	session, ok := that.sessionOf(conn)
	if !ok {
		if err := conn.Send(invalidNotification()); err != nil {
			that.logger.Warn("failed to notify connection", "conn", conn.ID(), "error", err)
		}

		return apperror.ErrSessionNotFound
	}

	result, err := session.Apply(conn, action)
	if err != nil {
		return err
	}

	if result.Terminal {
		that.finish(ctx, session, result.Record)
	}

	return nil
}

// Reject - answers conn with an invalid notification for a request that never reached a session.
func (that *Registry) Reject(conn Conn) {
	if err := conn.Send(invalidNotification()); err != nil {
		that.logger.Warn("failed to notify connection", "conn", conn.ID(), "error", err)
	}
}

// Leave - forgets conn. A waiting session is discarded, an ongoing one is forfeited to the
// remaining participant.
func (that *Registry) Leave(ctx context.Context, conn Conn) {
	log := that.logger.With("method", "Leave", "conn", conn.ID())

	that.mu.Lock()
	session, ok := that.members[conn.ID()]
	if !ok {
		that.mu.Unlock()
		return
	}

	delete(that.members, conn.ID())

	if that.pending == session {
		that.pending = nil
		delete(that.sessions, session.ID)
		that.mu.Unlock()

		log.Info("waiting session discarded", "session", session.ID)

		return
	}
	that.mu.Unlock()

	if record, finished := session.leave(conn); finished {
		that.finish(ctx, session, record)
	}
}

// Run - reaps idle sessions until ctx is done. Does nothing when no idle timeout is configured.
func (that *Registry) Run(ctx context.Context, interval time.Duration) {
	if that.idleTimeout <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.ReapIdle(ctx)
		}
	}
}

// ReapIdle - finishes every ongoing session idle for longer than the timeout and returns how many.
func (that *Registry) ReapIdle(ctx context.Context) int {
	if that.idleTimeout <= 0 {
		return 0
	}

	that.mu.Lock()
	sessions := lo.Values(that.sessions)
	that.mu.Unlock()

	now := that.now()
	reaped := 0

	for _, session := range sessions {
		if record, expired := session.expire(now, that.idleTimeout); expired {
			that.finish(ctx, session, record)
			reaped++
		}
	}

	return reaped
}

func (that *Registry) Stats() Stats {
	that.mu.Lock()
	defer that.mu.Unlock()

	stats := Stats{ActiveSessions: len(that.sessions)}
	if that.pending != nil {
		stats.ActiveSessions--
		stats.WaitingPlayers = 1
	}

	return stats
}

func (that *Registry) sessionOf(conn Conn) (*Session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.members[conn.ID()]

	return session, ok
}

// finish - drops a terminal session from the live set and archives its record. Safe to call twice.
func (that *Registry) finish(ctx context.Context, session *Session, record *entity.MatchRecord) {
	log := that.logger.With("method", "finish", "session", session.ID)

	that.mu.Lock()
	_, live := that.sessions[session.ID]
	delete(that.sessions, session.ID)
	that.mu.Unlock()

	if !live || record == nil || that.matches == nil {
		return
	}

	if err := that.matches.Save(ctx, record); err != nil {
		log.Error("failed to archive match", "error", err)
		return
	}

	log.Info("match archived", "winner", record.Winner, "reason", record.Reason)
}
