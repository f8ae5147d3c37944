package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

// Result describes a successfully applied action.
type Result struct {
	Snapshot entity.Snapshot
	Terminal bool
	Winner   entity.Team
	// Record is set when the action finished the game.
	Record *entity.MatchRecord
}

// Session is one match between two connections. All access to the game goes through mu,
// so validation, mutation and broadcast of one action never interleave with another.
type Session struct {
	ID string

	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	game         *entity.Game
	participants map[entity.Team]Conn
	startedAt    time.Time
	lastActivity time.Time
}

func newSession(id string, settings entity.Settings, logger *slog.Logger, now func() time.Time) (*Session, error) {
	game, err := entity.NewGame(id, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return &Session{
		ID:           id,
		logger:       logger.With("session", id),
		now:          now,
		game:         game,
		participants: make(map[entity.Team]Conn, 2),
	}, nil
}

// join - seats conn on the first free side and tells it which side it got.
func (that *Session) join(conn Conn) (entity.Team, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var team entity.Team

	switch {
	case that.participants[entity.TeamA] == nil:
		team = entity.TeamA
	case that.participants[entity.TeamB] == nil:
		team = entity.TeamB
	default:
		return entity.NoTeam, apperror.ErrSessionFull
	}

	that.participants[team] = conn
	that.send(conn, Notification{Type: NotificationJoined, SessionID: that.ID, Team: team})

	return team, nil
}

// start - activates the game once both sides are seated and sends the opening board.
func (that *Session) start() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.participants) != 2 {
		return apperror.ErrGameIsNotStarted
	}

	if err := that.game.Start(); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	that.startedAt = that.now()
	that.lastActivity = that.startedAt
	that.broadcast(Notification{Type: NotificationUpdate, SessionID: that.ID, Snapshot: that.game.Snapshot()})

	that.logger.Info("session started")

	return nil
}

// Apply - validates and applies an action on behalf of conn. A rejected action is answered with
// an invalid notification to conn only. An accepted one is broadcast to both sides before the
// lock is released.
func (that *Session) Apply(conn Conn, action entity.Action) (Result, error) {
	log := that.logger.With("method", "Apply", "conn", conn.ID(), "action", action.Type)

	that.mu.Lock()
	defer that.mu.Unlock()

	team, ok := that.teamOf(conn)
	if !ok {
		that.send(conn, invalidNotification())
		return Result{}, apperror.ErrSessionNotFound
	}

	if action.Team != team {
		log.Debug("action rejected", "error", apperror.ErrWrongTeam, "team", team, "actingTeam", action.Team)
		that.send(conn, invalidNotification())

		return Result{}, fmt.Errorf("%w: connection plays %s", apperror.ErrWrongTeam, team)
	}

	if err := that.game.Apply(action); err != nil {
		log.Debug("action rejected", "error", err)
		that.send(conn, invalidNotification())

		return Result{}, fmt.Errorf("action rejected: %w", err)
	}

	that.lastActivity = that.now()

	result := Result{Snapshot: that.game.Snapshot()}
	that.broadcast(Notification{Type: NotificationUpdate, SessionID: that.ID, Snapshot: result.Snapshot})

	if that.game.IsFinished() {
		result.Terminal = true
		result.Winner = that.game.Winner
		result.Record = entity.NewMatchRecord(that.game, that.startedAt, that.lastActivity)

		that.broadcastGameOver()
		log.Info("session finished", "winner", that.game.Winner, "moves", that.game.Moves)
	}

	return result, nil
}

// leave - drops conn from the session. Leaving an ongoing game forfeits it to the other side.
func (that *Session) leave(conn Conn) (*entity.MatchRecord, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	team, ok := that.teamOf(conn)
	if !ok {
		return nil, false
	}

	delete(that.participants, team)

	if !that.game.Forfeit(team) {
		return nil, false
	}

	that.broadcastGameOver()
	that.logger.Info("session forfeited", "leaver", team)

	return entity.NewMatchRecord(that.game, that.startedAt, that.now()), true
}

// expire - abandons an ongoing game that saw no accepted action for longer than timeout.
func (that *Session) expire(now time.Time, timeout time.Duration) (*entity.MatchRecord, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.game.IsOngoing() || now.Sub(that.lastActivity) < timeout {
		return nil, false
	}

	that.game.Abandon()
	that.broadcastGameOver()
	that.logger.Info("session expired", "idle", now.Sub(that.lastActivity))

	return entity.NewMatchRecord(that.game, that.startedAt, now), true
}

func (that *Session) Snapshot() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

func (that *Session) Status() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Status
}

func (that *Session) Winner() entity.Team {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Winner
}

func (that *Session) teamOf(conn Conn) (entity.Team, bool) {
	for team, participant := range that.participants {
		if participant.ID() == conn.ID() {
			return team, true
		}
	}

	return entity.NoTeam, false
}

func (that *Session) broadcastGameOver() {
	that.broadcast(Notification{
		Type:      NotificationGameOver,
		SessionID: that.ID,
		Winner:    that.game.Winner,
		Reason:    that.game.FinishReason,
	})
}

// broadcast - sends in team order so both sides observe the same sequence.
func (that *Session) broadcast(notification Notification) {
	for _, team := range []entity.Team{entity.TeamA, entity.TeamB} {
		if conn, ok := that.participants[team]; ok {
			that.send(conn, notification)
		}
	}
}

func (that *Session) send(conn Conn, notification Notification) {
	if err := conn.Send(notification); err != nil {
		that.logger.Warn("failed to notify participant", "conn", conn.ID(), "type", notification.Type, "error", err)
	}
}
