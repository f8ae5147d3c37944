package entity

import (
	"fmt"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
)

type Kind string

const (
	KindRunner     Kind = "Runner"
	KindOrthogonal Kind = "Orthogonal"
	KindDiagonal   Kind = "Diagonal"
)

// kindAliases maps the legacy client vocabulary onto piece kinds.
var kindAliases = map[string]Kind{
	"Runner":     KindRunner,
	"Orthogonal": KindOrthogonal,
	"Diagonal":   KindDiagonal,
	"Pawn":       KindRunner,
	"Hero1":      KindOrthogonal,
	"Hero2":      KindDiagonal,
}

// ParseKind - converts a wire value into a Kind. Accepts both the canonical names and Pawn/Hero1/Hero2.
func ParseKind(value string) (Kind, error) {
	kind, ok := kindAliases[value]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownKind, value)
	}

	return kind, nil
}

func (that Kind) Valid() bool {
	return that == KindRunner || that == KindOrthogonal || that == KindDiagonal
}

// Piece is a value: capture replaces it, nothing mutates it in place.
type Piece struct {
	Owner Team `json:"owner"`
	Kind  Kind `json:"kind"`
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (that Position) String() string {
	return fmt.Sprintf("(%d,%d)", that.Row, that.Col)
}
