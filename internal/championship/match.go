package championship

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type ResultType string

const (
	ResultWin           ResultType = "win"
	ResultDraw          ResultType = "draw"
	ResultForfeit       ResultType = "forfeit"
	ResultDoubleForfeit ResultType = "double_forfeit"
)

func (r ResultType) Valid() bool {
	switch r {
	case ResultWin, ResultDraw, ResultForfeit, ResultDoubleForfeit:
		return true
	}
	return false
}

// NeedsWinner is true for results that name a winner.
func (r ResultType) NeedsWinner() bool {
	return r == ResultWin || r == ResultForfeit
}

type DeterminedBy string

const (
	ByStandings            DeterminedBy = "standings"
	ByPreviousMatchWinners DeterminedBy = "previous_match_winners"
	BySemifinalLosers      DeterminedBy = "semifinal_losers"
)

type Match struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ChampionshipID uuid.UUID `db:"championship_id" json:"championship_id"`
	RoundNumber    int       `db:"round_number" json:"round_number"`
	RoundType      RoundType `db:"round_type" json:"round_type"`
	MatchOrder     int       `db:"match_order" json:"match_order"`

	// Player1 plays white. Both stay nil on placeholders until resolution.
	Player1ID *int64 `db:"player1_id" json:"player1_id"`
	Player2ID *int64 `db:"player2_id" json:"player2_id"`

	IsPlaceholder          bool          `db:"is_placeholder" json:"is_placeholder"`
	RequiresTopK           *int          `db:"requires_top_k" json:"requires_top_k,omitempty"`
	Player1BracketPosition *int          `db:"player1_bracket_position" json:"player1_bracket_position,omitempty"`
	Player2BracketPosition *int          `db:"player2_bracket_position" json:"player2_bracket_position,omitempty"`
	DeterminedByRound      *int          `db:"determined_by_round" json:"determined_by_round,omitempty"`
	DeterminedBy           *DeterminedBy `db:"determined_by" json:"determined_by,omitempty"`

	Status     MatchStatus `db:"status" json:"status"`
	WinnerID   *int64      `db:"winner_id" json:"winner_id,omitempty"`
	ResultType *ResultType `db:"result_type" json:"result_type,omitempty"`

	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (m *Match) HasPlayers() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

func (m *Match) Involves(participantID int64) bool {
	return (m.Player1ID != nil && *m.Player1ID == participantID) ||
		(m.Player2ID != nil && *m.Player2ID == participantID)
}

// Opponent returns the other player of the match.
func (m *Match) Opponent(participantID int64) (int64, bool) {
	if !m.HasPlayers() {
		return 0, false
	}
	switch participantID {
	case *m.Player1ID:
		return *m.Player2ID, true
	case *m.Player2ID:
		return *m.Player1ID, true
	}
	return 0, false
}

// Loser is only defined for completed matches with a winner.
func (m *Match) Loser() (int64, bool) {
	if m.Status != MatchCompleted || m.WinnerID == nil || !m.HasPlayers() {
		return 0, false
	}
	if *m.WinnerID == *m.Player1ID {
		return *m.Player2ID, true
	}
	return *m.Player1ID, true
}

// ScoreFor is the points a player took from a completed match.
func (m *Match) ScoreFor(participantID int64) float64 {
	if m.ResultType != nil && *m.ResultType == ResultDraw {
		return 0.5
	}
	if m.WinnerID != nil && *m.WinnerID == participantID {
		return 1
	}
	return 0
}
