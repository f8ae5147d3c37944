package entity

import "time"

// MatchRecord is the archived outcome of a finished session.
type MatchRecord struct {
	ID         string     `json:"id"`
	Winner     Team       `json:"winner,omitempty"`
	Reason     string     `json:"reason"`
	Mode       Mode       `json:"mode"`
	Moves      int        `json:"moves"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Board      [][]*Piece `json:"board"`
}

// NewMatchRecord - captures a finished game. Returns nil while the game is still in play.
func NewMatchRecord(game *Game, startedAt, finishedAt time.Time) *MatchRecord {
	if !game.IsFinished() {
		return nil
	}

	return &MatchRecord{
		ID:         game.ID,
		Winner:     game.Winner,
		Reason:     game.FinishReason,
		Mode:       game.Mode,
		Moves:      game.Moves,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Board:      game.Board().Grid(),
	}
}
