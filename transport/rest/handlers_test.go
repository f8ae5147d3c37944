package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gridarbiter/internal/entity"
	"github.com/rocketscienceinc/gridarbiter/internal/repository"
	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
)

type fixedStats usecase.Stats

func (that fixedStats) Stats() usecase.Stats {
	return usecase.Stats(that)
}

func newRouter(t *testing.T, records ...*entity.MatchRecord) http.Handler {
	t.Helper()

	matches := repository.NewMemoryMatchRepository(10)
	for _, record := range records {
		require.NoError(t, matches.Save(context.Background(), record))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := NewHandlers(logger, matches, fixedStats{ActiveSessions: 2, WaitingPlayers: 1})

	return NewRouter(handlers, []string{"*"})
}

func record(id string, finishedAt time.Time) *entity.MatchRecord {
	return &entity.MatchRecord{
		ID:         id,
		Winner:     entity.TeamB,
		Reason:     entity.ReasonForfeit,
		Mode:       entity.ModeFixed,
		StartedAt:  finishedAt.Add(-time.Minute),
		FinishedAt: finishedAt,
	}
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))

	return recorder
}

func TestPingHandler(t *testing.T) {
	recorder := serve(newRouter(t), "/ping")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", recorder.Body.String())
}

func TestStats(t *testing.T) {
	recorder := serve(newRouter(t), "/stats")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"activeSessions":2,"waitingPlayers":1}`, recorder.Body.String())
}

func TestGetMatch(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Returns a stored match", func(t *testing.T) {
		// Given: an archived match
		router := newRouter(t, record("match-1", base))

		// When: requesting it
		recorder := serve(router, "/matches/match-1")

		// Then: it is returned as JSON
		require.Equal(t, http.StatusOK, recorder.Code)

		var body entity.MatchRecord
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		assert.Equal(t, "match-1", body.ID)
		assert.Equal(t, entity.TeamB, body.Winner)
		assert.Equal(t, entity.ReasonForfeit, body.Reason)
	})

	t.Run("Unknown match is 404", func(t *testing.T) {
		recorder := serve(newRouter(t), "/matches/missing")

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestListMatches(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	router := newRouter(t, record("first", base), record("second", base.Add(time.Minute)), record("third", base.Add(2*time.Minute)))

	t.Run("Lists newest first up to the limit", func(t *testing.T) {
		recorder := serve(router, "/matches?limit=2")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body []entity.MatchRecord
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, "third", body[0].ID)
		assert.Equal(t, "second", body[1].ID)
	})

	t.Run("Rejects a bad limit", func(t *testing.T) {
		recorder := serve(router, "/matches?limit=abc")

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("Only GET is routed", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/matches", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})
}
