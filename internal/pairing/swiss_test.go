package pairing

import (
	"fmt"
	"testing"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func players(ids ...int64) []Player {
	out := make([]Player, 0, len(ids))
	for i, id := range ids {
		out = append(out, Player{ID: id, Rank: i + 1})
	}
	return out
}

func playedPairs(pairs ...[2]int64) map[[2]int64]int {
	out := make(map[[2]int64]int)
	for _, p := range pairs {
		out[pairKey(p[0], p[1])]++
	}
	return out
}

func TestSwissFivePlayers(t *testing.T) {
	// A..E in rank order.
	round, err := Swiss(Input{Players: players(1, 2, 3, 4, 5)})
	require.NoError(t, err)

	assert.Equal(t, []Pairing{{White: 1, Black: 2}, {White: 3, Black: 4}}, round.Pairings)
	require.NotNil(t, round.Bye)
	assert.Equal(t, int64(5), *round.Bye)
}

func TestSwissByeGoesToLowestWithoutBye(t *testing.T) {
	ps := players(1, 2, 3, 4, 5)
	ps[4].HadBye = true

	round, err := Swiss(Input{Players: ps})
	require.NoError(t, err)
	require.NotNil(t, round.Bye)
	assert.Equal(t, int64(4), *round.Bye)
	assert.Len(t, round.Pairings, 2)

	for i := range ps {
		ps[i].HadBye = true
	}
	round, err = Swiss(Input{Players: ps})
	require.NoError(t, err)
	assert.Equal(t, int64(5), *round.Bye)
}

func TestSwissAvoidsRepeats(t *testing.T) {
	in := Input{
		Players: players(1, 2, 3, 4),
		Played:  playedPairs([2]int64{1, 2}, [2]int64{3, 4}),
	}

	round, err := Swiss(in)
	require.NoError(t, err)
	require.Len(t, round.Pairings, 2)

	for _, p := range round.Pairings {
		assert.False(t, in.havePlayed(p.White, p.Black), "rematch %d-%d", p.White, p.Black)
	}
}

func TestSwissBacktracksOutOfDeadEnd(t *testing.T) {
	// Greedy nearest pairing would give 1-2 and leave 3-4, who already met.
	in := Input{
		Players: players(1, 2, 3, 4),
		Played:  playedPairs([2]int64{3, 4}),
	}

	round, err := Swiss(in)
	require.NoError(t, err)
	for _, p := range round.Pairings {
		assert.False(t, in.havePlayed(p.White, p.Black))
	}
}

func TestSwissAllowsRematchWhenUnavoidable(t *testing.T) {
	in := Input{
		Players: players(1, 2),
		Played:  playedPairs([2]int64{1, 2}),
	}

	round, err := Swiss(in)
	require.NoError(t, err)
	require.Len(t, round.Pairings, 1)
	assert.Nil(t, round.Bye)
}

func TestSwissInsufficientParticipants(t *testing.T) {
	for _, n := range []int{0, 1} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			ids := make([]int64, n)
			for i := range ids {
				ids[i] = int64(i + 1)
			}
			_, err := Swiss(Input{Players: players(ids...)})
			assert.ErrorIs(t, err, championship.ErrInsufficientParticipants)
		})
	}
}

func TestSwissRoundShape(t *testing.T) {
	for n := 2; n <= 13; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			ids := make([]int64, n)
			for i := range ids {
				ids[i] = int64(100 + i)
			}

			round, err := Swiss(Input{Players: players(ids...)})
			require.NoError(t, err)

			assert.Len(t, round.Pairings, n/2)
			assert.Equal(t, n%2 == 1, round.Bye != nil)

			booked := make(map[int64]int)
			for _, p := range round.Pairings {
				assert.NotEqual(t, p.White, p.Black)
				booked[p.White]++
				booked[p.Black]++
			}
			if round.Bye != nil {
				booked[*round.Bye]++
			}
			assert.Len(t, booked, n)
			for id, count := range booked {
				assert.Equal(t, 1, count, "participant %d booked %d times", id, count)
			}
		})
	}
}

func TestAssignColors(t *testing.T) {
	tests := []struct {
		name     string
		higher   Player
		lower    Player
		expected Pairing
	}{
		{
			name:     "fresh players, higher takes white",
			higher:   Player{ID: 1},
			lower:    Player{ID: 2},
			expected: Pairing{White: 1, Black: 2},
		},
		{
			name:     "higher owes black",
			higher:   Player{ID: 1, Whites: 2, Blacks: 1},
			lower:    Player{ID: 2, Whites: 1, Blacks: 1},
			expected: Pairing{White: 2, Black: 1},
		},
		{
			name:     "lower owes black",
			higher:   Player{ID: 1, Whites: 1, Blacks: 2},
			lower:    Player{ID: 2, Whites: 2, Blacks: 1},
			expected: Pairing{White: 1, Black: 2},
		},
		{
			name:     "balanced, higher had white last",
			higher:   Player{ID: 1, Whites: 1, Blacks: 1, LastColor: White},
			lower:    Player{ID: 2, Whites: 1, Blacks: 1, LastColor: Black},
			expected: Pairing{White: 2, Black: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, assignColors(tt.higher, tt.lower))
		})
	}
}

func TestBuildInput(t *testing.T) {
	ranked := []championship.Standing{
		{ParticipantID: 1, Rank: 1, Points: 1},
		{ParticipantID: 2, Rank: 2, Points: 0.5},
		{ParticipantID: 3, Rank: 3, Points: 0, Withdrawn: true},
		{ParticipantID: 4, Rank: 4, Points: 0},
	}
	matches := []championship.Match{
		{RoundNumber: 1, Player1ID: utils.Ptr(int64(1)), Player2ID: utils.Ptr(int64(4)), Status: championship.MatchCompleted},
		{RoundNumber: 2, Player1ID: utils.Ptr(int64(4)), Player2ID: utils.Ptr(int64(1)), Status: championship.MatchPending},
		{RoundNumber: 3, IsPlaceholder: true},
	}
	byes := []championship.Bye{{RoundNumber: 1, ParticipantID: 2}}

	in := BuildInput(ranked, matches, byes)

	require.Len(t, in.Players, 3)
	assert.Equal(t, []int64{1, 2, 4}, []int64{in.Players[0].ID, in.Players[1].ID, in.Players[2].ID})

	p1, p2, p4 := in.Players[0], in.Players[1], in.Players[2]
	assert.Equal(t, 1, p1.Whites)
	assert.Equal(t, 1, p1.Blacks)
	assert.Equal(t, Black, p1.LastColor)
	assert.Equal(t, White, p4.LastColor)
	assert.True(t, p2.HadBye)
	assert.False(t, p4.HadBye)
	assert.Equal(t, 2, in.Played[pairKey(1, 4)])
	assert.True(t, in.havePlayed(4, 1))
	assert.False(t, in.havePlayed(1, 2))
}
