package entity

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"
)

const (
	ReasonCapture = "capture"
	ReasonForfeit = "forfeit"
	ReasonTimeout = "timeout"
)

type Mode string

const (
	// ModeFixed starts from the standard layout, only moves are accepted.
	ModeFixed Mode = "fixed"
	// ModePlacement starts from an empty board, both moves and placements are accepted.
	ModePlacement Mode = "placement"
)

type ActionType string

const (
	ActionMove  ActionType = "move"
	ActionPlace ActionType = "place"
)

var (
	ErrUnknownGameStatus = errors.New("unknown game status")
	ErrLayoutMismatch    = errors.New("layout length does not match board size")

	DefaultLayout = []Kind{KindRunner, KindRunner, KindOrthogonal, KindDiagonal, KindRunner}
)

// Settings describe how a new game is laid out.
type Settings struct {
	BoardSize int
	Mode      Mode
	Layout    []Kind
	// PlacementLimit caps placements per team. Zero means unlimited.
	PlacementLimit int
}

func DefaultSettings() Settings {
	return Settings{
		BoardSize: len(DefaultLayout),
		Mode:      ModeFixed,
		Layout:    DefaultLayout,
	}
}

// Action is an untrusted request from a participant. Only the fields matching Type are read.
type Action struct {
	Type        ActionType
	Team        Team
	Origin      Position
	Destination Position
	Position    Position
	Kind        Kind
}

// Snapshot is the full observable state sent to participants after every change.
type Snapshot struct {
	Board      [][]*Piece `json:"board"`
	ActiveTeam Team       `json:"activeTeam"`
}

type Game struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Winner       Team   `json:"winner,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Moves        int    `json:"moves"`
	Mode         Mode   `json:"mode"`

	board          *Board
	turn           *TurnArbiter
	placementLimit int
	placed         map[Team]int
}

// NewGame - creates a waiting game. In fixed mode team A fills row 0 and team B fills the last row
// with the same column order.
func NewGame(id string, settings Settings) (*Game, error) {
	board := NewBoard(settings.BoardSize)

	if settings.Mode == ModeFixed {
		if len(settings.Layout) != settings.BoardSize {
			return nil, fmt.Errorf("%w: %d kinds for size %d", ErrLayoutMismatch, len(settings.Layout), settings.BoardSize)
		}

		last := settings.BoardSize - 1
		for col, kind := range settings.Layout {
			if !kind.Valid() {
				return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownKind, kind)
			}

			if err := board.SetPiece(Position{Row: 0, Col: col}, &Piece{Owner: TeamA, Kind: kind}); err != nil {
				return nil, fmt.Errorf("failed to lay out team A: %w", err)
			}

			if err := board.SetPiece(Position{Row: last, Col: col}, &Piece{Owner: TeamB, Kind: kind}); err != nil {
				return nil, fmt.Errorf("failed to lay out team B: %w", err)
			}
		}
	}

	return &Game{
		ID:             id,
		Status:         StatusWaiting,
		Mode:           settings.Mode,
		board:          board,
		turn:           NewTurnArbiter(),
		placementLimit: settings.PlacementLimit,
		placed:         make(map[Team]int, 2),
	}, nil
}

func (that *Game) Board() *Board {
	return that.board
}

func (that *Game) ActiveTeam() Team {
	return that.turn.Active()
}

// Start - moves a waiting game into play.
func (that *Game) Start() error {
	switch {
	case that.IsOngoing():
		return nil
	case that.IsFinished():
		return apperror.ErrGameFinished
	case !that.IsWaiting():
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}

	that.Status = StatusOngoing

	return nil
}

// Apply - validates and applies a move or a placement. On error the game is left untouched.
func (that *Game) Apply(action Action) error {
	switch action.Type {
	case ActionMove:
		return that.ApplyMove(action.Team, action.Origin, action.Destination)
	case ActionPlace:
		return that.ApplyPlacement(action.Team, action.Position, action.Kind)
	default:
		return fmt.Errorf("%w: %q", apperror.ErrUnknownAction, action.Type)
	}
}

// ApplyMove - checks run in a fixed order and stop at the first failure:
// origin occupied, piece owned by team, team's turn, geometry, no own-piece capture.
func (that *Game) ApplyMove(team Team, origin, destination Position) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	piece, err := that.board.PieceAt(origin)
	if err != nil {
		return fmt.Errorf("origin: %w", err)
	}

	if piece == nil {
		return fmt.Errorf("%w: %s", apperror.ErrEmptyCell, origin)
	}

	if piece.Owner != team {
		return fmt.Errorf("%w: %s", apperror.ErrNotYourPiece, origin)
	}

	if !that.turn.IsActionAllowed(team) {
		return apperror.ErrNotYourTurn
	}

	if !that.board.Contains(destination) {
		return fmt.Errorf("destination: %w: %s", apperror.ErrOutOfBounds, destination)
	}

	if !IsLegal(piece.Kind, origin, destination) {
		return fmt.Errorf("%w: %s %s -> %s", apperror.ErrIllegalMove, piece.Kind, origin, destination)
	}

	target, err := that.board.PieceAt(destination)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if target != nil && target.Owner == team {
		return fmt.Errorf("%w: %s", apperror.ErrOwnPieceCapture, destination)
	}

	if err = that.board.SetPiece(origin, nil); err != nil {
		return err
	}

	if err = that.board.SetPiece(destination, &Piece{Owner: team, Kind: piece.Kind}); err != nil {
		return err
	}

	that.Moves++
	that.turn.Advance()

	if target != nil && that.board.RemainingPieces(team.Opponent()) == 0 {
		that.finish(team, ReasonCapture)
	}

	return nil
}

// ApplyPlacement - puts a new piece on an empty cell. Placement is not subject to move geometry.
func (that *Game) ApplyPlacement(team Team, pos Position, kind Kind) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	if that.Mode != ModePlacement {
		return apperror.ErrPlacementDisabled
	}

	if !kind.Valid() {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownKind, kind)
	}

	if !team.Valid() {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownTeam, team)
	}

	target, err := that.board.PieceAt(pos)
	if err != nil {
		return err
	}

	if target != nil {
		return fmt.Errorf("%w: %s", apperror.ErrCellOccupied, pos)
	}

	if !that.turn.IsActionAllowed(team) {
		return apperror.ErrNotYourTurn
	}

	if that.placementLimit > 0 && that.placed[team] >= that.placementLimit {
		return fmt.Errorf("%w: %d", apperror.ErrPlacementLimit, that.placementLimit)
	}

	if err = that.board.SetPiece(pos, &Piece{Owner: team, Kind: kind}); err != nil {
		return err
	}

	that.placed[team]++
	that.Moves++
	that.turn.Advance()

	return nil
}

// Forfeit - ends an ongoing game in favour of the loser's opponent.
func (that *Game) Forfeit(loser Team) bool {
	if !that.IsOngoing() {
		return false
	}

	that.finish(loser.Opponent(), ReasonForfeit)

	return true
}

// Abandon - ends an ongoing game without a winner.
func (that *Game) Abandon() bool {
	if !that.IsOngoing() {
		return false
	}

	that.finish(NoTeam, ReasonTimeout)

	return true
}

func (that *Game) Snapshot() Snapshot {
	return Snapshot{
		Board:      that.board.Grid(),
		ActiveTeam: that.turn.Active(),
	}
}

func (that *Game) finish(winner Team, reason string) {
	that.Status = StatusFinished
	that.Winner = winner
	that.FinishReason = reason
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}
}
