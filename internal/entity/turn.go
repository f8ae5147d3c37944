package entity

// TurnArbiter holds whose turn it is. Team A always opens.
type TurnArbiter struct {
	active Team
}

func NewTurnArbiter() *TurnArbiter {
	return &TurnArbiter{active: TeamA}
}

func (that *TurnArbiter) IsActionAllowed(team Team) bool {
	return team == that.active
}

// Advance - hands the turn to the other team. Called only after a successful action.
func (that *TurnArbiter) Advance() {
	that.active = that.active.Opponent()
}

func (that *TurnArbiter) Active() Team {
	return that.active
}
