// Package resolver turns placeholder elimination matches into concrete pairs.
//
// A placeholder is resolved strictly according to its DeterminedBy rule.
// Winners of a previous round are never looked up in the standings: doing so
// would promote a player who lost their match.
package resolver

import (
	"fmt"
	"sort"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/standings"
)

type Input struct {
	Participants []championship.Participant
	Rounds       []championship.Round
	Matches      []championship.Match
	Byes         []championship.Bye
}

// Resolution is either a full pair or a reason why the pair is not known yet.
type Resolution struct {
	MatchID   string `json:"match_id"`
	Resolved  bool   `json:"resolved"`
	Player1ID *int64 `json:"player1_id"`
	Player2ID *int64 `json:"player2_id"`

	// Qualifiers lists the top-K participants for standings based resolutions.
	Qualifiers []int64 `json:"qualifiers,omitempty"`

	// Reason wraps championship.ErrUnresolvedPrerequisite when Resolved is false.
	Reason error `json:"-"`
}

func (r *Resolution) ReasonText() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Error()
}

func resolved(m *championship.Match, p1, p2 int64) *Resolution {
	return &Resolution{MatchID: m.ID.String(), Resolved: true, Player1ID: &p1, Player2ID: &p2}
}

func pending(m *championship.Match, format string, args ...any) *Resolution {
	reason := fmt.Errorf(format+": %w", append(args, championship.ErrUnresolvedPrerequisite)...)
	return &Resolution{MatchID: m.ID.String(), Reason: reason}
}

// Resolve attempts to resolve a placeholder. An error is returned only for
// malformed placeholders; missing prerequisites yield an unresolved Resolution.
func Resolve(m *championship.Match, in Input) (*Resolution, error) {
	if !m.IsPlaceholder {
		return nil, fmt.Errorf("match %s: %w", m.ID, championship.ErrNotPlaceholder)
	}
	if m.DeterminedBy == nil || m.DeterminedByRound == nil ||
		m.Player1BracketPosition == nil || m.Player2BracketPosition == nil {
		return nil, fmt.Errorf("match %s is missing placeholder metadata: %w", m.ID, championship.ErrInvalidConfig)
	}

	switch *m.DeterminedBy {
	case championship.ByStandings:
		return fromStandings(m, in)
	case championship.ByPreviousMatchWinners:
		return fromWinners(m, in)
	case championship.BySemifinalLosers:
		return fromSemifinalLosers(m, in)
	default:
		return nil, fmt.Errorf("match %s determined by %q: %w", m.ID, *m.DeterminedBy, championship.ErrInvalidConfig)
	}
}

func fromStandings(m *championship.Match, in Input) (*Resolution, error) {
	round := *m.DeterminedByRound
	if round > 0 {
		if !championship.IsRoundComplete(championship.MatchesInRound(in.Matches, round)) {
			return pending(m, "round %d is not complete", round), nil
		}
	}
	if m.RequiresTopK == nil || *m.RequiresTopK < 2 {
		return nil, fmt.Errorf("match %s has no top-k requirement: %w", m.ID, championship.ErrInvalidConfig)
	}
	k := *m.RequiresTopK

	// Round 0 means no games yet: seeding falls through to rating and registration order.
	asOf := standings.Input{Participants: in.Participants}
	if round > 0 {
		asOf.Matches = in.Matches
		asOf.Byes = in.Byes
		asOf.AsOfRound = round
	}
	ranked := standings.Calculate(asOf)

	top := standings.TopK(ranked, k)
	if len(top) < k {
		return nil, fmt.Errorf("top %d requested, %d eligible: %w", k, len(top), championship.ErrInsufficientParticipants)
	}

	p1, err := at(top, *m.Player1BracketPosition)
	if err != nil {
		return nil, err
	}
	p2, err := at(top, *m.Player2BracketPosition)
	if err != nil {
		return nil, err
	}

	res := resolved(m, p1, p2)
	res.Qualifiers = top
	return res, nil
}

func fromWinners(m *championship.Match, in Input) (*Resolution, error) {
	round := *m.DeterminedByRound
	source, ok := roundType(in.Rounds, round)
	if !ok {
		return pending(m, "round %d has not been generated", round), nil
	}

	matches := sourceMatches(in.Matches, round, source)
	if len(matches) == 0 {
		return pending(m, "round %d has no %s matches", round, source), nil
	}

	winners := make([]int64, 0, len(matches))
	for _, src := range matches {
		if src.Status != championship.MatchCompleted || src.WinnerID == nil {
			return pending(m, "%s match %d of round %d has no winner", source, src.MatchOrder, round), nil
		}
		winners = append(winners, *src.WinnerID)
	}

	p1, err := at(winners, *m.Player1BracketPosition)
	if err != nil {
		return nil, err
	}
	p2, err := at(winners, *m.Player2BracketPosition)
	if err != nil {
		return nil, err
	}
	return resolved(m, p1, p2), nil
}

func fromSemifinalLosers(m *championship.Match, in Input) (*Resolution, error) {
	round := *m.DeterminedByRound
	semis := sourceMatches(in.Matches, round, championship.SemiFinal)
	if len(semis) != 2 {
		return pending(m, "round %d has %d semifinal matches", round, len(semis)), nil
	}

	losers := make([]int64, 0, 2)
	for _, sf := range semis {
		loser, ok := sf.Loser()
		if !ok {
			return pending(m, "semifinal %d of round %d is not decided", sf.MatchOrder, round), nil
		}
		losers = append(losers, loser)
	}

	p1, err := at(losers, *m.Player1BracketPosition)
	if err != nil {
		return nil, err
	}
	p2, err := at(losers, *m.Player2BracketPosition)
	if err != nil {
		return nil, err
	}
	return resolved(m, p1, p2), nil
}

func roundType(rounds []championship.Round, number int) (championship.RoundType, bool) {
	for _, r := range rounds {
		if r.Number == number {
			return r.Type, true
		}
	}
	return "", false
}

// sourceMatches returns the matches of a round with the given type in draw order.
func sourceMatches(matches []championship.Match, round int, t championship.RoundType) []championship.Match {
	var out []championship.Match
	for _, m := range matches {
		if m.RoundNumber == round && m.RoundType == t {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MatchOrder < out[j].MatchOrder
	})
	return out
}

// at reads a 1-indexed bracket position.
func at(ids []int64, position int) (int64, error) {
	if position < 1 || position > len(ids) {
		return 0, fmt.Errorf("bracket position %d outside 1..%d: %w", position, len(ids), championship.ErrInvalidConfig)
	}
	return ids[position-1], nil
}
