package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")

	ErrOutOfBounds     = errors.New("position is outside the board")
	ErrEmptyCell       = errors.New("no piece at origin")
	ErrNotYourPiece    = errors.New("piece belongs to the other team")
	ErrIllegalMove     = errors.New("move is not legal for this piece kind")
	ErrOwnPieceCapture = errors.New("destination holds your own piece")
	ErrUnknownKind     = errors.New("unknown piece kind")
	ErrUnknownTeam     = errors.New("unknown team")

	ErrPlacementDisabled = errors.New("placement is disabled in this mode")
	ErrPlacementLimit    = errors.New("placement limit reached")

	ErrWrongTeam        = errors.New("acting team does not match the connection")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session already has two participants")
	ErrMalformedRequest = errors.New("malformed request")
	ErrUnknownAction    = errors.New("unknown action type")

	ErrMatchNotFound = errors.New("match not found")
)
