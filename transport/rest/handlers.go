package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
	"github.com/rocketscienceinc/gridarbiter/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)

	ListMatches(w http.ResponseWriter, r *http.Request)
	GetMatch(w http.ResponseWriter, r *http.Request)
	Stats(w http.ResponseWriter, r *http.Request)
}

type matchReader interface {
	GetByID(ctx context.Context, id string) (*entity.MatchRecord, error)
	List(ctx context.Context, limit int) ([]*entity.MatchRecord, error)
}

type statsProvider interface {
	Stats() usecase.Stats
}

type handlers struct {
	logger  *slog.Logger
	matches matchReader
	stats   statsProvider
}

func NewHandlers(logger *slog.Logger, matches matchReader, stats statsProvider) Handlers {
	return &handlers{
		logger:  logger.With("component", "rest"),
		matches: matches,
		stats:   stats,
	}
}

// ListMatches - returns the most recent archived matches, newest first.
func (that *handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ListMatches")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}

		limit = min(parsed, maxListLimit)
	}

	records, err := that.matches.List(r.Context(), limit)
	if err != nil {
		log.Error("failed to list matches", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	that.writeJSON(w, http.StatusOK, records)
}

func (that *handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "GetMatch")

	id := mux.Vars(r)["id"]

	record, err := that.matches.GetByID(r.Context(), id)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error("failed to get match", "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)

		return
	}

	that.writeJSON(w, http.StatusOK, record)
}

func (that *handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, that.stats.Stats())
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
