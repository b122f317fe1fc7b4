package service

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
	dave  int64 = 4
	eve   int64 = 5
)

func TestSwissFivePlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{Format: championship.SwissOnly, SwissRounds: 3, Participants: entrants(5)})

	first, err := f.svc.StartChampionship(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyGenerated)
	assert.Equal(t, championship.Swiss, first.Round.Type)
	require.Len(t, first.Matches, 2)
	assert.Equal(t, [2]int64{alice, bob}, pairOf(first.Matches[0]))
	assert.Equal(t, [2]int64{carol, dave}, pairOf(first.Matches[1]))
	require.NotNil(t, first.Bye)
	assert.Equal(t, eve, first.Bye.ParticipantID)

	_, err = f.svc.GenerateRound(ctx, c.ID, 2)
	assert.ErrorIs(t, err, championship.ErrInvalidRoundOrder)

	f.win(t, first.Matches[0], alice)

	rounds, err := f.svc.ListRounds(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, rounds, 1, "round 2 must wait for every round 1 result")
	assert.Equal(t, championship.RoundInProgress, rounds[0].Status)

	f.win(t, first.Matches[1], carol)

	assert.Equal(t, championship.RoundCompleted, f.round(t, c.ID, 1).Status)
	assert.Equal(t, 2, f.championship(t, c.ID).CurrentRound)

	second, err := f.svc.GenerateRound(ctx, c.ID, 2)
	require.NoError(t, err)
	assert.True(t, second.AlreadyGenerated)
	require.Len(t, second.Matches, 2)

	pairs := map[[2]int64]bool{}
	for _, m := range second.Matches {
		pairs[pairOf(m)] = true
		assert.NotNil(t, m.Player1ID)
		assert.NotNil(t, m.Player2ID)
		assert.False(t, m.IsPlaceholder)
	}
	assert.True(t, pairs[[2]int64{alice, carol}])
	assert.True(t, pairs[[2]int64{bob, eve}])
	require.NotNil(t, second.Bye)
	assert.Equal(t, dave, second.Bye.ParticipantID)
}

func TestGenerateRoundOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{Format: championship.SwissOnly, SwissRounds: 2, Participants: entrants(4)})

	for _, n := range []int{0, 2, 3} {
		_, err := f.svc.GenerateRound(ctx, c.ID, n)
		assert.ErrorIs(t, err, championship.ErrInvalidRoundOrder, "round %d", n)
	}

	first, err := f.svc.GenerateRound(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.False(t, first.AlreadyGenerated)
	assert.Equal(t, championship.StatusInProgress, f.championship(t, c.ID).Status)

	again, err := f.svc.GenerateRound(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.True(t, again.AlreadyGenerated)
	assert.Equal(t, first.Round.ID, again.Round.ID)
	require.Len(t, again.Matches, len(first.Matches))
	for i := range first.Matches {
		assert.Equal(t, first.Matches[i].ID, again.Matches[i].ID)
	}

	_, err = f.svc.GenerateRound(ctx, c.ID, 2)
	assert.ErrorIs(t, err, championship.ErrInvalidRoundOrder)

	_, err = f.svc.GenerateRound(ctx, c.ID, 1)
	assert.NoError(t, err)
}

func TestConcurrentGenerateRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{Format: championship.SwissOnly, Participants: entrants(6)})

	results := make([]*RoundResult, 8)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			res, err := f.svc.GenerateRound(ctx, c.ID, 1)
			for attempt := 0; IsRetryable(err) && attempt < 3; attempt++ {
				res, err = f.svc.GenerateRound(ctx, c.ID, 1)
			}
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Round.Number)
		if !res.AlreadyGenerated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	assert.Len(t, f.roundMatches(t, c.ID, 1), 3)
	rounds, err := f.svc.ListRounds(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}

func TestEliminationFourPlayers(t *testing.T) {
	tests := []struct {
		name       string
		sf1Winner  int64
		sf2Winner  int64
		final      [2]int64
		thirdPlace [2]int64
	}{
		{"favourites win", alice, bob, [2]int64{alice, bob}, [2]int64{dave, carol}},
		{"upsets", dave, carol, [2]int64{dave, carol}, [2]int64{alice, bob}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			c := f.create(t, ChampionshipInput{Format: championship.EliminationOnly, ThirdPlaceMatch: true, Participants: entrants(4)})
			require.Equal(t, 2, c.TotalRounds)

			first, err := f.svc.StartChampionship(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, championship.SemiFinal, first.Round.Type)
			require.Len(t, first.Matches, 2)
			sf1, sf2 := first.Matches[0], first.Matches[1]
			assert.Equal(t, [2]int64{alice, dave}, [2]int64{*sf1.Player1ID, *sf1.Player2ID})
			assert.Equal(t, [2]int64{bob, carol}, [2]int64{*sf2.Player1ID, *sf2.Player2ID})

			// The last round exists straight away but waits on the semifinals.
			assert.Equal(t, championship.RoundLocked, f.round(t, c.ID, 2).Status)
			last := f.roundMatches(t, c.ID, 2)
			require.Len(t, last, 2)
			final, third := last[0], last[1]
			assert.Equal(t, championship.Final, final.RoundType)
			assert.Equal(t, championship.ThirdPlace, third.RoundType)
			for _, m := range last {
				assert.True(t, m.IsPlaceholder)
				assert.Nil(t, m.Player1ID)
				assert.Nil(t, m.Player2ID)
				assert.Equal(t, 1, *m.DeterminedByRound)
				assert.Equal(t, 4, *m.RequiresTopK)
			}
			assert.Equal(t, championship.ByPreviousMatchWinners, *final.DeterminedBy)
			assert.Equal(t, championship.BySemifinalLosers, *third.DeterminedBy)

			res, err := f.svc.ResolvePlaceholder(ctx, final.ID)
			require.NoError(t, err)
			assert.False(t, res.Resolved)
			assert.ErrorIs(t, res.Reason, championship.ErrUnresolvedPrerequisite)

			_, err = f.svc.RecordMatchResult(ctx, final.ID, &tt.final[0], championship.ResultWin)
			assert.ErrorIs(t, err, championship.ErrMatchNotReady)

			_, err = f.svc.RecordMatchResult(ctx, sf1.ID, nil, championship.ResultDraw)
			assert.ErrorIs(t, err, championship.ErrInvalidResult)

			f.win(t, sf1, tt.sf1Winner)
			f.win(t, sf2, tt.sf2Winner)

			assert.Equal(t, championship.RoundCompleted, f.round(t, c.ID, 1).Status)
			assert.Equal(t, championship.RoundUnlocked, f.round(t, c.ID, 2).Status)

			last = f.roundMatches(t, c.ID, 2)
			final, third = last[0], last[1]
			require.True(t, final.HasPlayers())
			require.True(t, third.HasPlayers())
			assert.Equal(t, tt.final, [2]int64{*final.Player1ID, *final.Player2ID})
			assert.Equal(t, tt.thirdPlace, [2]int64{*third.Player1ID, *third.Player2ID})

			res, err = f.svc.ResolvePlaceholder(ctx, final.ID)
			require.NoError(t, err)
			assert.True(t, res.Resolved)
			assert.Equal(t, tt.final, [2]int64{*res.Player1ID, *res.Player2ID})

			f.win(t, final, tt.final[0])
			assert.Equal(t, championship.StatusInProgress, f.championship(t, c.ID).Status)
			f.win(t, third, tt.thirdPlace[0])

			done := f.championship(t, c.ID)
			assert.Equal(t, championship.StatusCompleted, done.Status)
			assert.Equal(t, championship.RoundCompleted, f.round(t, c.ID, 2).Status)

			standings, err := f.svc.GetStandings(ctx, c.ID, nil)
			require.NoError(t, err)
			positions := map[int64]int{}
			for _, s := range standings {
				require.NotNil(t, s.FinalPosition, "participant %d", s.ParticipantID)
				positions[s.ParticipantID] = *s.FinalPosition
			}
			assert.Equal(t, 1, positions[tt.final[0]])
			assert.Equal(t, 2, positions[tt.final[1]])
			assert.Equal(t, 3, positions[tt.thirdPlace[0]])
			assert.Equal(t, 4, positions[tt.thirdPlace[1]])

			participants, err := f.svc.ListParticipants(ctx, c.ID)
			require.NoError(t, err)
			for _, p := range participants {
				assert.Equal(t, p.ID != tt.final[0], p.Eliminated, "participant %d", p.ID)
			}

			_, err = f.svc.RecordMatchResult(ctx, final.ID, &tt.final[1], championship.ResultWin)
			assert.ErrorIs(t, err, championship.ErrMatchAlreadyCompleted)
		})
	}
}

func TestHybridEightPlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{
		Format:          championship.Hybrid,
		SwissRounds:     3,
		EliminationSize: 4,
		ThirdPlaceMatch: true,
		Participants:    entrants(8),
	})
	require.Equal(t, 5, c.TotalRounds)

	_, err := f.svc.StartChampionship(ctx, c.ID)
	require.NoError(t, err)

	// Favour the higher id so the Swiss stage turns the seeding upside down.
	weaker := func(m championship.Match) int64 { return max(*m.Player1ID, *m.Player2ID) }
	for round := 1; round <= 3; round++ {
		require.Len(t, f.roundMatches(t, c.ID, round), 4, "round %d", round)
		f.playRound(t, c.ID, round, weaker)
	}

	three := 3
	swissStandings, err := f.svc.GetStandings(ctx, c.ID, &three)
	require.NoError(t, err)
	seeds := make([]int64, 0, 4)
	for _, s := range swissStandings[:4] {
		seeds = append(seeds, s.ParticipantID)
	}

	rounds, err := f.svc.ListRounds(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 5)
	assert.Equal(t, championship.SemiFinal, rounds[3].Type)
	assert.Equal(t, championship.RoundUnlocked, rounds[3].Status)
	assert.Equal(t, championship.Final, rounds[4].Type)
	assert.Equal(t, championship.RoundLocked, rounds[4].Status)

	semis := f.roundMatches(t, c.ID, 4)
	require.Len(t, semis, 2)
	assert.Equal(t, [2]int64{seeds[0], seeds[3]}, [2]int64{*semis[0].Player1ID, *semis[0].Player2ID})
	assert.Equal(t, [2]int64{seeds[1], seeds[2]}, [2]int64{*semis[1].Player1ID, *semis[1].Player2ID})

	participants, err := f.svc.ListParticipants(ctx, c.ID)
	require.NoError(t, err)
	qualified := map[int64]bool{seeds[0]: true, seeds[1]: true, seeds[2]: true, seeds[3]: true}
	for _, p := range participants {
		assert.Equal(t, !qualified[p.ID], p.Eliminated, "participant %d", p.ID)
	}

	// Both top seeds lose.
	f.win(t, semis[0], seeds[3])
	f.win(t, semis[1], seeds[2])

	last := f.roundMatches(t, c.ID, 5)
	require.Len(t, last, 2)
	final, third := last[0], last[1]
	assert.Equal(t, [2]int64{seeds[3], seeds[2]}, [2]int64{*final.Player1ID, *final.Player2ID})
	assert.Equal(t, [2]int64{seeds[0], seeds[1]}, [2]int64{*third.Player1ID, *third.Player2ID})

	f.win(t, final, seeds[2])
	f.win(t, third, seeds[0])

	assert.Equal(t, championship.StatusCompleted, f.championship(t, c.ID).Status)

	standings, err := f.svc.GetStandings(ctx, c.ID, nil)
	require.NoError(t, err)
	positions := map[int64]int{}
	for _, s := range standings {
		require.NotNil(t, s.FinalPosition)
		positions[s.ParticipantID] = *s.FinalPosition
	}
	assert.Equal(t, 1, positions[seeds[2]])
	assert.Equal(t, 2, positions[seeds[3]])
	assert.Equal(t, 3, positions[seeds[0]])
	assert.Equal(t, 4, positions[seeds[1]])
	assert.Len(t, positions, 8)
}

func TestAdvanceFinalizesWhenTooFewRemain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{Format: championship.SwissOnly, SwissRounds: 3, Participants: entrants(3)})
	first, err := f.svc.StartChampionship(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, first.Matches, 1)
	assert.Equal(t, [2]int64{alice, bob}, pairOf(first.Matches[0]))

	require.NoError(t, f.svc.WithdrawParticipant(ctx, c.ID, alice))

	second := f.roundMatches(t, c.ID, 2)
	require.Len(t, second, 1)
	assert.Equal(t, [2]int64{bob, carol}, pairOf(second[0]))

	require.NoError(t, f.svc.WithdrawParticipant(ctx, c.ID, bob))

	done := f.championship(t, c.ID)
	assert.Equal(t, championship.StatusCompleted, done.Status)
	assert.Equal(t, 2, done.CurrentRound)

	standings, err := f.svc.GetStandings(ctx, c.ID, nil)
	require.NoError(t, err)
	require.Equal(t, carol, standings[0].ParticipantID)
	require.NotNil(t, standings[0].FinalPosition)
	assert.Equal(t, 1, *standings[0].FinalPosition)
}

func TestAdvanceFinalizesWhenBracketCannotFill(t *testing.T) {
	ctx := context.Background()

	t.Run("elimination before the first round", func(t *testing.T) {
		f := newFixture(t)
		c := f.create(t, ChampionshipInput{Format: championship.EliminationOnly, Participants: entrants(4)})
		require.NoError(t, f.store.SetWithdrawn(ctx, f.db, c.ID, dave))

		first, err := f.svc.StartChampionship(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, first.Matches, 2)
		for _, m := range first.Matches {
			assert.False(t, m.HasPlayers())
		}
		assert.Equal(t, championship.StatusCompleted, f.championship(t, c.ID).Status)

		report, err := f.svc.Sweep(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, report.Failed)
	})

	t.Run("hybrid after the swiss stage", func(t *testing.T) {
		f := newFixture(t)
		c := f.create(t, ChampionshipInput{Format: championship.Hybrid, SwissRounds: 2, EliminationSize: 4, Participants: entrants(4)})
		_, err := f.svc.StartChampionship(ctx, c.ID)
		require.NoError(t, err)

		f.playRound(t, c.ID, 1, stronger)
		require.NoError(t, f.store.SetWithdrawn(ctx, f.db, c.ID, carol))
		f.playRound(t, c.ID, 2, stronger)

		got := f.championship(t, c.ID)
		assert.Equal(t, championship.StatusCompleted, got.Status)
		for _, m := range f.roundMatches(t, c.ID, 3) {
			assert.False(t, m.HasPlayers())
		}

		standings, err := f.svc.GetStandings(ctx, c.ID, nil)
		require.NoError(t, err)
		for _, s := range standings {
			assert.NotNil(t, s.FinalPosition)
		}

		report, err := f.svc.Sweep(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, report.Failed)
	})
}

func TestGenerateRoundIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, ChampionshipInput{Format: championship.SwissOnly, Participants: entrants(5)})

	// The bye is written after the round and its matches.
	_, err := f.db.ExecContext(ctx, `CREATE TRIGGER reject_byes BEFORE INSERT ON byes
		BEGIN SELECT RAISE(ABORT, 'byes are read only'); END`)
	require.NoError(t, err)

	_, err = f.svc.GenerateRound(ctx, c.ID, 1)
	require.Error(t, err)

	_, err = f.store.GetRound(ctx, f.db, c.ID, 1)
	assert.ErrorIs(t, err, championship.ErrNotFound)
	assert.Empty(t, f.roundMatches(t, c.ID, 1))

	got := f.championship(t, c.ID)
	assert.Equal(t, 0, got.CurrentRound)
	assert.Equal(t, championship.StatusRegistration, got.Status)

	_, err = f.db.ExecContext(ctx, `DROP TRIGGER reject_byes`)
	require.NoError(t, err)

	result, err := f.svc.GenerateRound(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.False(t, result.AlreadyGenerated)
	assert.Len(t, result.Matches, 2)
	require.NotNil(t, result.Bye)
	assert.Equal(t, eve, result.Bye.ParticipantID)
	assert.Equal(t, 1, f.championship(t, c.ID).CurrentRound)
}
