package championship

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/google/uuid"
)

type Format string

const (
	SwissOnly       Format = "swiss"
	EliminationOnly Format = "elimination"
	Hybrid          Format = "hybrid"
)

type Status string

const (
	StatusRegistration Status = "registration"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
)

type Championship struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Name   string    `db:"name" json:"name"`
	Format Format    `db:"format" json:"format"`
	Status Status    `db:"status" json:"status"`

	SwissRounds     int  `db:"swiss_rounds" json:"swiss_rounds"`
	EliminationSize int  `db:"elimination_size" json:"elimination_size"`
	ThirdPlaceMatch bool `db:"third_place_match" json:"third_place_match"`
	TotalRounds     int  `db:"total_rounds" json:"total_rounds"`
	CurrentRound    int  `db:"current_round" json:"current_round"`

	MatchesPerPlayerPerRound int `db:"matches_per_player_per_round" json:"matches_per_player_per_round"`
	MatchWindowHours         int `db:"match_window_hours" json:"match_window_hours"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoundTypeFor maps a round number onto the championship's round plan.
// Swiss rounds come first, the elimination stages follow.
func (c *Championship) RoundTypeFor(n int) (RoundType, error) {
	if n < 1 || n > c.TotalRounds {
		return "", fmt.Errorf("round %d outside plan of %d rounds: %w", n, c.TotalRounds, ErrInvalidRoundOrder)
	}
	if n <= c.SwissRounds {
		return Swiss, nil
	}
	return EliminationRoundType(c.StagePlayers(n)), nil
}

// StagePlayers returns how many players an elimination round starts with.
func (c *Championship) StagePlayers(n int) int {
	stage := n - c.SwissRounds
	if stage < 1 || c.EliminationSize == 0 {
		return 0
	}
	return c.EliminationSize >> (stage - 1)
}

func (c *Championship) FirstEliminationRound() int {
	if c.EliminationSize == 0 {
		return 0
	}
	return c.SwissRounds + 1
}

func (c *Championship) IsLastRound(n int) bool {
	return n == c.TotalRounds
}

func (c *Championship) DeadlineFrom(now time.Time) *time.Time {
	if c.MatchWindowHours <= 0 {
		return nil
	}
	d := now.UTC().Truncate(time.Second).Add(time.Duration(c.MatchWindowHours) * time.Hour)
	return &d
}

// EliminationRounds is log2 of the elimination size.
func EliminationRounds(size int) int {
	if size < 2 {
		return 0
	}
	return bits.Len(uint(size)) - 1
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
