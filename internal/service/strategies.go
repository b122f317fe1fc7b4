package service

import (
	"fmt"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/pairing"
	"github.com/AdamBeresnev/championship-engine/internal/utils"
	"github.com/google/uuid"
)

type strategyInput struct {
	championship *championship.Championship
	number       int
	roundType    championship.RoundType
	snapshot     *snapshot
	now          time.Time
}

type generatedRound struct {
	matches []championship.Match
	bye     *championship.Bye
}

// roundStrategy builds the matches of one round without touching storage.
type roundStrategy func(in strategyInput) (*generatedRound, error)

var strategies = map[championship.Stage]roundStrategy{
	championship.StageSwiss:       swissStrategy,
	championship.StageElimination: eliminationStrategy,
}

func strategyFor(t championship.RoundType) (roundStrategy, error) {
	strategy, ok := strategies[t.Stage()]
	if !ok {
		return nil, fmt.Errorf("no strategy for round type %q: %w", t, championship.ErrInvalidConfig)
	}
	return strategy, nil
}

// swissStrategy pairs every active participant. Every match it creates has both players.
func swissStrategy(in strategyInput) (*generatedRound, error) {
	snap := in.snapshot
	ranked := snap.standings(0)

	round, err := pairing.Swiss(pairing.BuildInput(ranked, snap.matches, snap.byes))
	if err != nil {
		return nil, err
	}

	c := in.championship
	out := &generatedRound{matches: make([]championship.Match, 0, len(round.Pairings))}
	for i, p := range round.Pairings {
		out.matches = append(out.matches, championship.Match{
			ID:             uuid.New(),
			ChampionshipID: c.ID,
			RoundNumber:    in.number,
			RoundType:      championship.Swiss,
			MatchOrder:     i + 1,
			Player1ID:      utils.Ptr(p.White),
			Player2ID:      utils.Ptr(p.Black),
			Status:         championship.MatchPending,
			Deadline:       c.DeadlineFrom(in.now),
		})
	}
	if round.Bye != nil {
		out.bye = &championship.Bye{
			ChampionshipID: c.ID,
			RoundNumber:    in.number,
			ParticipantID:  *round.Bye,
		}
	}
	return out, nil
}

// eliminationStrategy only ever creates placeholders. Players are filled in by the resolver.
func eliminationStrategy(in strategyInput) (*generatedRound, error) {
	c := in.championship
	k := c.EliminationSize

	placeholder := func(order int, t championship.RoundType, by championship.DeterminedBy, byRound, pos1, pos2 int) championship.Match {
		return championship.Match{
			ID:                     uuid.New(),
			ChampionshipID:         c.ID,
			RoundNumber:            in.number,
			RoundType:              t,
			MatchOrder:             order,
			IsPlaceholder:          true,
			RequiresTopK:           utils.Ptr(k),
			Player1BracketPosition: utils.Ptr(pos1),
			Player2BracketPosition: utils.Ptr(pos2),
			DeterminedByRound:      utils.Ptr(byRound),
			DeterminedBy:           utils.Ptr(by),
			Status:                 championship.MatchPending,
		}
	}

	var matches []championship.Match
	if in.number == c.FirstEliminationRound() {
		pairs, err := pairing.Pairs(k)
		if err != nil {
			return nil, err
		}
		for i, p := range pairs {
			matches = append(matches, placeholder(i+1, in.roundType, championship.ByStandings, c.SwissRounds, p[0], p[1]))
		}
	} else {
		for i := 1; i <= c.StagePlayers(in.number)/2; i++ {
			pos1, pos2 := pairing.WinnerPositions(i)
			matches = append(matches, placeholder(i, in.roundType, championship.ByPreviousMatchWinners, in.number-1, pos1, pos2))
		}
	}

	if in.roundType == championship.Final && c.ThirdPlaceMatch && k >= 4 {
		pos1, pos2 := pairing.ThirdPlacePositions()
		matches = append(matches, placeholder(len(matches)+1, championship.ThirdPlace, championship.BySemifinalLosers, in.number-1, pos1, pos2))
	}
	return &generatedRound{matches: matches}, nil
}
