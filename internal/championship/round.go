package championship

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RoundType string

const (
	Swiss        RoundType = "swiss"
	RoundOf64    RoundType = "round_of_64"
	RoundOf32    RoundType = "round_of_32"
	RoundOf16    RoundType = "round_of_16"
	QuarterFinal RoundType = "quarter_final"
	SemiFinal    RoundType = "semi_final"
	Final        RoundType = "final"
	ThirdPlace   RoundType = "third_place"
)

func (t RoundType) IsElimination() bool {
	return t != "" && t != Swiss
}

// EliminationRoundType names an elimination round by the number of players entering it.
func EliminationRoundType(players int) RoundType {
	switch players {
	case 2:
		return Final
	case 4:
		return SemiFinal
	case 8:
		return QuarterFinal
	default:
		return RoundType(fmt.Sprintf("round_of_%d", players))
	}
}

type Stage string

const (
	StageSwiss       Stage = "swiss"
	StageElimination Stage = "elimination"
)

func (t RoundType) Stage() Stage {
	if t.IsElimination() {
		return StageElimination
	}
	return StageSwiss
}

type RoundStatus string

const (
	RoundLocked     RoundStatus = "locked"
	RoundUnlocked   RoundStatus = "unlocked"
	RoundInProgress RoundStatus = "in_progress"
	RoundCompleted  RoundStatus = "completed"
)

type Round struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	ChampionshipID uuid.UUID   `db:"championship_id" json:"championship_id"`
	Number         int         `db:"number" json:"number"`
	Type           RoundType   `db:"type" json:"type"`
	Status         RoundStatus `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// IsRoundComplete reports whether every match of a round has completed.
// A round without matches is never complete.
func IsRoundComplete(matches []Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.Status != MatchCompleted {
			return false
		}
	}
	return true
}

func MatchesInRound(matches []Match, round int) []Match {
	var out []Match
	for _, m := range matches {
		if m.RoundNumber == round {
			out = append(out, m)
		}
	}
	return out
}
