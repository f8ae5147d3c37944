package entity

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
)

// Board is a square grid of optional pieces. A nil cell is empty.
type Board struct {
	size  int
	cells [][]*Piece
}

func NewBoard(size int) *Board {
	cells := make([][]*Piece, size)
	for row := range cells {
		cells[row] = make([]*Piece, size)
	}

	return &Board{
		size:  size,
		cells: cells,
	}
}

func (that *Board) Size() int {
	return that.size
}

func (that *Board) Contains(pos Position) bool {
	return pos.Row >= 0 && pos.Row < that.size && pos.Col >= 0 && pos.Col < that.size
}

// PieceAt - returns a copy of the piece at pos, or nil when the cell is empty.
func (that *Board) PieceAt(pos Position) (*Piece, error) {
	if !that.Contains(pos) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrOutOfBounds, pos)
	}

	piece := that.cells[pos.Row][pos.Col]
	if piece == nil {
		return nil, nil //nolint:nilnil // empty cell is not an error
	}

	value := *piece

	return &value, nil
}

// SetPiece - writes piece at pos unconditionally. A nil piece clears the cell.
func (that *Board) SetPiece(pos Position, piece *Piece) error {
	if !that.Contains(pos) {
		return fmt.Errorf("%w: %s", apperror.ErrOutOfBounds, pos)
	}

	if piece == nil {
		that.cells[pos.Row][pos.Col] = nil
		return nil
	}

	value := *piece
	that.cells[pos.Row][pos.Col] = &value

	return nil
}

func (that *Board) RemainingPieces(team Team) int {
	return lo.CountBy(lo.Flatten(that.cells), func(piece *Piece) bool {
		return piece != nil && piece.Owner == team
	})
}

// Grid - returns a deep copy of the cells, safe to hand out to other goroutines.
func (that *Board) Grid() [][]*Piece {
	return lo.Map(that.cells, func(row []*Piece, _ int) []*Piece {
		return lo.Map(row, func(piece *Piece, _ int) *Piece {
			if piece == nil {
				return nil
			}

			value := *piece

			return &value
		})
	})
}
