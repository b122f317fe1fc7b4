package service

import (
	"context"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/resolver"
	"github.com/AdamBeresnev/championship-engine/internal/standings"
	"github.com/AdamBeresnev/championship-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// snapshot is everything the pure calculators need, read through one executor.
type snapshot struct {
	championship *championship.Championship
	participants []championship.Participant
	rounds       []championship.Round
	matches      []championship.Match
	byes         []championship.Bye
}

func loadSnapshot(ctx context.Context, st *store.ChampionshipStore, e sqlx.ExtContext, id uuid.UUID) (*snapshot, error) {
	c, err := st.GetChampionship(ctx, e, id)
	if err != nil {
		return nil, err
	}
	participants, err := st.ListParticipants(ctx, e, id)
	if err != nil {
		return nil, err
	}
	rounds, err := st.ListRounds(ctx, e, id)
	if err != nil {
		return nil, err
	}
	matches, err := st.ListMatches(ctx, e, id)
	if err != nil {
		return nil, err
	}
	byes, err := st.ListByes(ctx, e, id)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		championship: c,
		participants: participants,
		rounds:       rounds,
		matches:      matches,
		byes:         byes,
	}, nil
}

func (s *snapshot) standings(asOfRound int) []championship.Standing {
	return standings.Calculate(standings.Input{
		Participants: s.participants,
		Matches:      s.matches,
		Byes:         s.byes,
		AsOfRound:    asOfRound,
	})
}

func (s *snapshot) resolverInput() resolver.Input {
	return resolver.Input{
		Participants: s.participants,
		Rounds:       s.rounds,
		Matches:      s.matches,
		Byes:         s.byes,
	}
}

func (s *snapshot) hasEliminationRound() bool {
	for _, r := range s.rounds {
		if r.Type.IsElimination() {
			return true
		}
	}
	return false
}

func (s *snapshot) roundComplete(number int) bool {
	if number < 1 {
		return true
	}
	return championship.IsRoundComplete(championship.MatchesInRound(s.matches, number))
}

// activeParticipants counts players still able to be paired or qualify.
func (s *snapshot) activeParticipants() int {
	n := 0
	for _, p := range s.participants {
		if !p.Withdrawn && !p.Eliminated {
			n++
		}
	}
	return n
}
