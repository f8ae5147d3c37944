package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
	"github.com/rocketscienceinc/gridarbiter/internal/entity"
)

type sqliteMatch struct {
	conn *sql.DB
}

// NewSQLiteMatchRepository - expects the matches table created by sqlite.Storage.Init.
func NewSQLiteMatchRepository(conn *sql.DB) MatchRepository {
	return &sqliteMatch{
		conn: conn,
	}
}

func (that *sqliteMatch) Save(ctx context.Context, record *entity.MatchRecord) error {
	query := `INSERT OR REPLACE INTO matches (id, winner, reason, mode, moves, started_at, finished_at, board)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	board, err := json.Marshal(record.Board)
	if err != nil {
		return fmt.Errorf("could not marshal board: %w", err)
	}

	_, err = that.conn.ExecContext(ctx, query,
		record.ID,
		string(record.Winner),
		record.Reason,
		string(record.Mode),
		record.Moves,
		record.StartedAt.UnixNano(),
		record.FinishedAt.UnixNano(),
		string(board),
	)
	if err != nil {
		return fmt.Errorf("can't save match: %w", err)
	}

	return nil
}

func (that *sqliteMatch) GetByID(ctx context.Context, id string) (*entity.MatchRecord, error) {
	query := `SELECT id, winner, reason, mode, moves, started_at, finished_at, board FROM matches WHERE id = ?`

	record, err := scanMatch(that.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("can't find match: %w", err)
	}

	return record, nil
}

func (that *sqliteMatch) List(ctx context.Context, limit int) ([]*entity.MatchRecord, error) {
	query := `SELECT id, winner, reason, mode, moves, started_at, finished_at, board FROM matches
		ORDER BY finished_at DESC LIMIT ?`

	records := make([]*entity.MatchRecord, 0)
	if limit <= 0 {
		return records, nil
	}

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list matches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("can't read match: %w", err)
		}

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list matches: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*entity.MatchRecord, error) {
	var (
		record                entity.MatchRecord
		winner, mode, board   string
		startedAt, finishedAt int64
	)

	err := row.Scan(&record.ID, &winner, &record.Reason, &mode, &record.Moves, &startedAt, &finishedAt, &board)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal([]byte(board), &record.Board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	record.Winner = entity.Team(winner)
	record.Mode = entity.Mode(mode)
	record.StartedAt = time.Unix(0, startedAt).UTC()
	record.FinishedAt = time.Unix(0, finishedAt).UTC()

	return &record, nil
}
