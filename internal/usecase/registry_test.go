package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	received []Notification
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (that *fakeConn) ID() string {
	return that.id
}

func (that *fakeConn) Send(notification Notification) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.received = append(that.received, notification)

	return nil
}

func (that *fakeConn) ofType(notificationType NotificationType) []Notification {
	that.mu.Lock()
	defer that.mu.Unlock()

	var result []Notification
	for _, notification := range that.received {
		if notification.Type == notificationType {
			result = append(result, notification)
		}
	}

	return result
}

func (that *fakeConn) last() Notification {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.received) == 0 {
		return Notification{}
	}

	return that.received[len(that.received)-1]
}

func (that *fakeConn) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.received)
}

type mockMatchRepo struct {
	mock.Mock
}

func (that *mockMatchRepo) Save(ctx context.Context, record *entity.MatchRecord) error {
	args := that.Called(ctx, record)

	return args.Error(0)
}

func newMockMatchRepo(t *testing.T) *mockMatchRepo {
	t.Helper()

	repo := &mockMatchRepo{}
	t.Cleanup(func() {
		repo.AssertExpectations(t)
	})

	return repo
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func placementSettings() entity.Settings {
	return entity.Settings{BoardSize: 5, Mode: entity.ModePlacement}
}

func seatPair(t *testing.T, registry *Registry) (*Session, *fakeConn, *fakeConn) {
	t.Helper()

	ctx := context.Background()
	connA := newFakeConn("conn-a")
	connB := newFakeConn("conn-b")

	sessionA, teamA, err := registry.JoinSession(ctx, connA)
	require.NoError(t, err)
	require.Equal(t, entity.TeamA, teamA)

	sessionB, teamB, err := registry.JoinSession(ctx, connB)
	require.NoError(t, err)
	require.Equal(t, entity.TeamB, teamB)
	require.Same(t, sessionA, sessionB)

	return sessionA, connA, connB
}

func move(team entity.Team, fromRow, fromCol, toRow, toCol int) entity.Action {
	return entity.Action{
		Type:        entity.ActionMove,
		Team:        team,
		Origin:      entity.Position{Row: fromRow, Col: fromCol},
		Destination: entity.Position{Row: toRow, Col: toCol},
	}
}

func place(team entity.Team, row, col int) entity.Action {
	return entity.Action{
		Type:     entity.ActionPlace,
		Team:     team,
		Position: entity.Position{Row: row, Col: col},
		Kind:     entity.KindRunner,
	}
}

func TestRegistry_JoinSession(t *testing.T) {
	t.Run("First two connections become A and B and the game starts", func(t *testing.T) {
		// Given: an empty registry
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)

		// When: two connections join
		session, connA, connB := seatPair(t, registry)

		// Then: each learns its side
		joinedA := connA.ofType(NotificationJoined)
		require.Len(t, joinedA, 1)
		assert.Equal(t, entity.TeamA, joinedA[0].Team)
		assert.Equal(t, session.ID, joinedA[0].SessionID)

		joinedB := connB.ofType(NotificationJoined)
		require.Len(t, joinedB, 1)
		assert.Equal(t, entity.TeamB, joinedB[0].Team)

		// And: both receive the opening board with A to move
		for _, conn := range []*fakeConn{connA, connB} {
			updates := conn.ofType(NotificationUpdate)
			require.Len(t, updates, 1)
			assert.Equal(t, entity.TeamA, updates[0].Snapshot.ActiveTeam)
			assert.Equal(t, entity.TeamA, updates[0].Snapshot.Board[0][0].Owner)
			assert.Equal(t, entity.TeamB, updates[0].Snapshot.Board[4][0].Owner)
		}

		assert.Equal(t, entity.StatusOngoing, session.Status())
		assert.Equal(t, Stats{ActiveSessions: 1}, registry.Stats())
	})

	t.Run("Third connection opens a new session", func(t *testing.T) {
		// Given: a registry with one full session
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		first, _, _ := seatPair(t, registry)

		// When: a third connection joins
		session, team, err := registry.JoinSession(context.Background(), newFakeConn("conn-c"))
		require.NoError(t, err)

		// Then: it plays A in a fresh waiting session
		assert.Equal(t, entity.TeamA, team)
		assert.NotEqual(t, first.ID, session.ID)
		assert.Equal(t, entity.StatusWaiting, session.Status())
		assert.Equal(t, Stats{ActiveSessions: 1, WaitingPlayers: 1}, registry.Stats())
	})

	t.Run("A connection cannot be seated twice", func(t *testing.T) {
		// Given: a seated connection
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		conn := newFakeConn("conn-a")
		_, _, err := registry.JoinSession(context.Background(), conn)
		require.NoError(t, err)

		// When: it joins again
		_, _, err = registry.JoinSession(context.Background(), conn)

		// Then: ErrSessionFull
		require.ErrorIs(t, err, apperror.ErrSessionFull)
	})
}

func TestRegistry_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Legal move is broadcast to both sides", func(t *testing.T) {
		// Given: a started session
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		_, connA, connB := seatPair(t, registry)

		// When: A moves its Runner from (0,0) to (1,1)
		err := registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 0, 1, 1))
		require.NoError(t, err)

		// Then: both receive the same update with B to move
		for _, conn := range []*fakeConn{connA, connB} {
			update := conn.last()
			require.Equal(t, NotificationUpdate, update.Type)
			assert.Equal(t, entity.TeamB, update.Snapshot.ActiveTeam)
			assert.Nil(t, update.Snapshot.Board[0][0])
			assert.Equal(t, &entity.Piece{Owner: entity.TeamA, Kind: entity.KindRunner}, update.Snapshot.Board[1][1])
		}
	})

	t.Run("Out-of-turn move is answered with invalid to the sender only", func(t *testing.T) {
		// Given: a session where A already moved
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		session, connA, connB := seatPair(t, registry)
		require.NoError(t, registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 0, 1, 1)))
		before := session.Snapshot()
		seenByB := connB.count()

		// When: A tries to move again
		err := registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 1, 1, 2))

		// Then: A gets invalid, B gets nothing, state is unchanged
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, Notification{Type: NotificationInvalid}, connA.last())
		assert.Equal(t, seenByB, connB.count())
		assert.Equal(t, before, session.Snapshot())
	})

	t.Run("Bent orthogonal move and own-piece landing are rejected", func(t *testing.T) {
		// Given: a started session
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		session, connA, _ := seatPair(t, registry)
		before := session.Snapshot()

		// When / Then: (0,2) -> (2,3) is not a straight two-step
		require.ErrorIs(t, registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 2, 2, 3)), apperror.ErrIllegalMove)
		assert.Equal(t, NotificationInvalid, connA.last().Type)

		// When / Then: (0,2) -> (0,4) lands on A's own Runner
		require.ErrorIs(t, registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 2, 0, 4)), apperror.ErrOwnPieceCapture)
		assert.Equal(t, NotificationInvalid, connA.last().Type)

		assert.Equal(t, before, session.Snapshot())
	})

	t.Run("Acting for the other team is rejected", func(t *testing.T) {
		// Given: a started session
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		session, _, connB := seatPair(t, registry)
		before := session.Snapshot()

		// When: B's connection claims to be A
		err := registry.Dispatch(ctx, connB, move(entity.TeamA, 0, 0, 1, 1))

		// Then: ErrWrongTeam and invalid to B
		require.ErrorIs(t, err, apperror.ErrWrongTeam)
		assert.Equal(t, NotificationInvalid, connB.last().Type)
		assert.Equal(t, before, session.Snapshot())
	})

	t.Run("Action before the opponent arrives is rejected", func(t *testing.T) {
		// Given: a single waiting connection
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		connA := newFakeConn("conn-a")
		_, _, err := registry.JoinSession(ctx, connA)
		require.NoError(t, err)

		// When: it tries to move
		err = registry.Dispatch(ctx, connA, move(entity.TeamA, 0, 0, 1, 1))

		// Then: ErrGameIsNotStarted and invalid
		require.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
		assert.Equal(t, NotificationInvalid, connA.last().Type)
	})

	t.Run("Unknown connection is answered with invalid", func(t *testing.T) {
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		stranger := newFakeConn("stranger")

		err := registry.Dispatch(ctx, stranger, move(entity.TeamA, 0, 0, 1, 1))

		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
		assert.Equal(t, NotificationInvalid, stranger.last().Type)
	})

	t.Run("Capturing every opponent piece ends and archives the match", func(t *testing.T) {
		// Given: a placement session backed by an archive
		repo := newMockMatchRepo(t)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(record *entity.MatchRecord) bool {
			return record.Winner == entity.TeamA && record.Reason == entity.ReasonCapture && record.Moves == 9
		})).Return(nil).Once()

		registry := NewRegistry(testLogger(), placementSettings(), 0, repo)
		session, connA, connB := seatPair(t, registry)

		// When: A captures both of B's pieces
		steps := []struct {
			conn   *fakeConn
			action entity.Action
		}{
			{connA, place(entity.TeamA, 2, 2)},
			{connB, place(entity.TeamB, 2, 3)},
			{connA, place(entity.TeamA, 0, 0)},
			{connB, place(entity.TeamB, 3, 3)},
			{connA, move(entity.TeamA, 2, 2, 2, 3)},
			{connB, move(entity.TeamB, 3, 3, 4, 4)},
			{connA, move(entity.TeamA, 2, 3, 3, 4)},
			{connB, move(entity.TeamB, 4, 4, 4, 3)},
			{connA, move(entity.TeamA, 3, 4, 4, 3)},
		}
		for _, step := range steps {
			require.NoError(t, registry.Dispatch(ctx, step.conn, step.action))
		}

		// Then: both sides learn A won
		for _, conn := range []*fakeConn{connA, connB} {
			over := conn.last()
			assert.Equal(t, NotificationGameOver, over.Type)
			assert.Equal(t, entity.TeamA, over.Winner)
			assert.Equal(t, entity.ReasonCapture, over.Reason)
		}
		assert.Equal(t, entity.StatusFinished, session.Status())
		assert.Equal(t, Stats{}, registry.Stats())

		// And: later actions do not mutate the board
		before := session.Snapshot()
		err := registry.Dispatch(ctx, connB, place(entity.TeamB, 1, 1))
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, NotificationInvalid, connB.last().Type)
		assert.Equal(t, before, session.Snapshot())
	})
}

func TestRegistry_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("Leaving an ongoing game forfeits it to the remaining side", func(t *testing.T) {
		// Given: a started session with an archive
		repo := newMockMatchRepo(t)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(record *entity.MatchRecord) bool {
			return record.Winner == entity.TeamB && record.Reason == entity.ReasonForfeit
		})).Return(nil).Once()

		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, repo)
		session, connA, connB := seatPair(t, registry)
		seenByA := connA.count()

		// When: A disconnects
		registry.Leave(ctx, connA)

		// Then: B wins by forfeit and A is not written to anymore
		over := connB.last()
		assert.Equal(t, NotificationGameOver, over.Type)
		assert.Equal(t, entity.TeamB, over.Winner)
		assert.Equal(t, entity.ReasonForfeit, over.Reason)
		assert.Equal(t, seenByA, connA.count())
		assert.Equal(t, entity.TeamB, session.Winner())
		assert.Equal(t, Stats{}, registry.Stats())

		// And: the second departure is harmless
		registry.Leave(ctx, connB)
		registry.Leave(ctx, connB)
	})

	t.Run("Leaving a waiting session discards it", func(t *testing.T) {
		// Given: a single waiting connection
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		first := newFakeConn("conn-a")
		waiting, _, err := registry.JoinSession(ctx, first)
		require.NoError(t, err)

		// When: it leaves and another connection arrives
		registry.Leave(ctx, first)
		session, team, err := registry.JoinSession(ctx, newFakeConn("conn-b"))
		require.NoError(t, err)

		// Then: the newcomer opens a new session as A
		assert.Equal(t, entity.TeamA, team)
		assert.NotEqual(t, waiting.ID, session.ID)
		assert.Equal(t, Stats{WaitingPlayers: 1}, registry.Stats())
	})

	t.Run("Leaving a finished game archives nothing more", func(t *testing.T) {
		// Given: a forfeited session
		repo := newMockMatchRepo(t)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, repo)
		_, connA, connB := seatPair(t, registry)
		registry.Leave(ctx, connB)

		// When: the winner leaves too
		registry.Leave(ctx, connA)

		// Then: Save was called exactly once (checked on cleanup)
		assert.Equal(t, NotificationGameOver, connA.last().Type)
	})
}

func TestRegistry_ReapIdle(t *testing.T) {
	ctx := context.Background()

	t.Run("Idle sessions end without a winner", func(t *testing.T) {
		// Given: a started session and a controllable clock
		repo := newMockMatchRepo(t)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(record *entity.MatchRecord) bool {
			return record.Winner == entity.NoTeam && record.Reason == entity.ReasonTimeout
		})).Return(nil).Once()

		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), time.Minute, repo)
		registry.now = func() time.Time { return now }
		session, connA, connB := seatPair(t, registry)

		// When: reaping before the timeout
		assert.Zero(t, registry.ReapIdle(ctx))

		// And: reaping after the timeout
		now = now.Add(2 * time.Minute)
		reaped := registry.ReapIdle(ctx)

		// Then: the session is finished and both sides are told
		assert.Equal(t, 1, reaped)
		assert.Equal(t, entity.StatusFinished, session.Status())
		for _, conn := range []*fakeConn{connA, connB} {
			over := conn.last()
			assert.Equal(t, NotificationGameOver, over.Type)
			assert.Equal(t, entity.NoTeam, over.Winner)
			assert.Equal(t, entity.ReasonTimeout, over.Reason)
		}
	})

	t.Run("Disabled timeout never reaps", func(t *testing.T) {
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), 0, nil)
		seatPair(t, registry)

		assert.Zero(t, registry.ReapIdle(ctx))
	})

	t.Run("Run returns when the context is done", func(t *testing.T) {
		registry := NewRegistry(testLogger(), entity.DefaultSettings(), time.Minute, nil)
		runCtx, cancel := context.WithCancel(ctx)

		done := make(chan struct{})
		go func() {
			registry.Run(runCtx, time.Millisecond)
			close(done)
		}()

		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	})
}

func TestSession_ConcurrentActionsAreSerialized(t *testing.T) {
	// Given: a placement session
	registry := NewRegistry(testLogger(), placementSettings(), 0, nil)
	_, connA, connB := seatPair(t, registry)

	// When: both sides race to place on every cell
	var wg sync.WaitGroup
	for _, side := range []struct {
		conn *fakeConn
		team entity.Team
	}{{connA, entity.TeamA}, {connB, entity.TeamB}} {
		wg.Add(1)
		go func(conn *fakeConn, team entity.Team) {
			defer wg.Done()
			for row := 0; row < 5; row++ {
				for col := 0; col < 5; col++ {
					_ = registry.Dispatch(context.Background(), conn, place(team, row, col))
				}
			}
		}(side.conn, side.team)
	}
	wg.Wait()

	// Then: both sides observed exactly the same sequence of boards
	updatesA := connA.ofType(NotificationUpdate)
	updatesB := connB.ofType(NotificationUpdate)
	require.Equal(t, updatesA, updatesB)

	// And: turns strictly alternated
	for i := 1; i < len(updatesA); i++ {
		assert.NotEqual(t, updatesA[i-1].Snapshot.ActiveTeam, updatesA[i].Snapshot.ActiveTeam)
	}
}
