package entity

import (
	"fmt"

	"github.com/rocketscienceinc/gridarbiter/internal/apperror"
)

// Team identifies one of the two sides. Connection order decides which side a participant plays.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"

	NoTeam Team = ""
)

// ParseTeam - converts a wire value into a Team.
func ParseTeam(value string) (Team, error) {
	team := Team(value)
	if !team.Valid() {
		return NoTeam, fmt.Errorf("%w: %q", apperror.ErrUnknownTeam, value)
	}

	return team, nil
}

func (that Team) Valid() bool {
	return that == TeamA || that == TeamB
}

// Opponent - returns the other side. NoTeam has no opponent.
func (that Team) Opponent() Team {
	switch that {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return NoTeam
	}
}
