package entity

// IsLegal - reports whether a piece of the given kind may travel from origin to destination.
// Only geometry is checked: bounds, occupancy and turn order are the caller's concern.
// Pieces jump, nothing in between blocks them.
func IsLegal(kind Kind, origin, destination Position) bool {
	dr := abs(destination.Row - origin.Row)
	dc := abs(destination.Col - origin.Col)

	switch kind {
	case KindRunner:
		return dr <= 1 && dc <= 1 && (dr != 0 || dc != 0)
	case KindOrthogonal:
		return (dr == 2 && dc == 0) || (dr == 0 && dc == 2)
	case KindDiagonal:
		return dr == 2 && dc == 2
	default:
		return false
	}
}

func abs(value int) int {
	if value < 0 {
		return -value
	}

	return value
}
