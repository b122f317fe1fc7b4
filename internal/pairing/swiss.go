// Package pairing builds Swiss pairings and elimination draws.
package pairing

import (
	"fmt"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
)

type Color int

const (
	NoColor Color = iota
	White
	Black
)

// Player is a participant as the Swiss pairing sees them.
type Player struct {
	ID     int64
	Points float64
	Rank   int

	Whites    int
	Blacks    int
	LastColor Color
	HadBye    bool
}

func (p Player) colorBalance() int {
	return p.Whites - p.Blacks
}

type Pairing struct {
	White int64
	Black int64
}

type SwissRound struct {
	Pairings []Pairing
	Bye      *int64
}

type Input struct {
	// Players ordered by rank, best first.
	Players []Player
	Played  map[[2]int64]int
}

// maxBacktrackSteps bounds the search for a repeat-free pairing.
const maxBacktrackSteps = 200000

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (in Input) havePlayed(a, b int64) bool {
	return in.Played[pairKey(a, b)] > 0
}

// BuildInput derives the pairing input from standings and the matches played so far.
// Withdrawn participants are left out.
func BuildInput(ranked []championship.Standing, matches []championship.Match, byes []championship.Bye) Input {
	played := make(map[[2]int64]int)
	whites := make(map[int64]int)
	blacks := make(map[int64]int)
	last := make(map[int64]Color)
	lastRound := make(map[int64]int)

	for i := range matches {
		m := &matches[i]
		if !m.HasPlayers() {
			continue
		}
		p1, p2 := *m.Player1ID, *m.Player2ID
		played[pairKey(p1, p2)]++
		whites[p1]++
		blacks[p2]++
		if m.RoundNumber >= lastRound[p1] {
			lastRound[p1] = m.RoundNumber
			last[p1] = White
		}
		if m.RoundNumber >= lastRound[p2] {
			lastRound[p2] = m.RoundNumber
			last[p2] = Black
		}
	}

	hadBye := make(map[int64]bool)
	for _, b := range byes {
		hadBye[b.ParticipantID] = true
	}

	players := make([]Player, 0, len(ranked))
	for _, s := range ranked {
		if s.Withdrawn {
			continue
		}
		players = append(players, Player{
			ID:        s.ParticipantID,
			Points:    s.Points,
			Rank:      s.Rank,
			Whites:    whites[s.ParticipantID],
			Blacks:    blacks[s.ParticipantID],
			LastColor: last[s.ParticipantID],
			HadBye:    hadBye[s.ParticipantID],
		})
	}
	return Input{Players: players, Played: played}
}

// Swiss pairs every active player for one round. Players are expected in rank
// order, so score groups are contiguous and the odd player of a group floats
// into the next one.
func Swiss(in Input) (*SwissRound, error) {
	if len(in.Players) < 2 {
		return nil, fmt.Errorf("%d active participants: %w", len(in.Players), championship.ErrInsufficientParticipants)
	}

	pool := in.Players
	round := &SwissRound{}

	if len(pool)%2 == 1 {
		idx := byeCandidate(pool)
		id := pool[idx].ID
		round.Bye = &id
		pool = append(append([]Player{}, pool[:idx]...), pool[idx+1:]...)
	}

	pairs, ok := pairWithoutRepeats(in, pool)
	if !ok {
		pairs = pairGreedy(in, pool)
	}

	round.Pairings = make([]Pairing, 0, len(pairs))
	for _, pr := range pairs {
		round.Pairings = append(round.Pairings, assignColors(pr[0], pr[1]))
	}
	return round, nil
}

// byeCandidate picks the lowest-ranked player who has not had a bye yet,
// or the lowest-ranked player if everybody has.
func byeCandidate(pool []Player) int {
	for i := len(pool) - 1; i >= 0; i-- {
		if !pool[i].HadBye {
			return i
		}
	}
	return len(pool) - 1
}

func pairWithoutRepeats(in Input, pool []Player) ([][2]Player, bool) {
	used := make([]bool, len(pool))
	pairs := make([][2]Player, 0, len(pool)/2)
	steps := 0

	var solve func() bool
	solve = func() bool {
		first := -1
		for i := range pool {
			if !used[i] {
				first = i
				break
			}
		}
		if first == -1 {
			return true
		}
		used[first] = true
		for j := first + 1; j < len(pool); j++ {
			if used[j] || in.havePlayed(pool[first].ID, pool[j].ID) {
				continue
			}
			steps++
			if steps > maxBacktrackSteps {
				break
			}
			used[j] = true
			pairs = append(pairs, [2]Player{pool[first], pool[j]})
			if solve() {
				return true
			}
			pairs = pairs[:len(pairs)-1]
			used[j] = false
		}
		used[first] = false
		return false
	}

	if !solve() {
		return nil, false
	}
	return pairs, true
}

// pairGreedy takes the nearest unmet opponent and falls back to a rematch.
func pairGreedy(in Input, pool []Player) [][2]Player {
	used := make([]bool, len(pool))
	pairs := make([][2]Player, 0, len(pool)/2)
	for i := range pool {
		if used[i] {
			continue
		}
		used[i] = true
		pick := -1
		for j := i + 1; j < len(pool); j++ {
			if used[j] {
				continue
			}
			if pick == -1 {
				pick = j
			}
			if !in.havePlayed(pool[i].ID, pool[j].ID) {
				pick = j
				break
			}
		}
		if pick == -1 {
			break
		}
		used[pick] = true
		pairs = append(pairs, [2]Player{pool[i], pool[pick]})
	}
	return pairs
}

// assignColors gives white to the player owed it most. higher is the better-ranked player.
func assignColors(higher, lower Player) Pairing {
	hb, lb := higher.colorBalance(), lower.colorBalance()
	switch {
	case hb < lb:
		return Pairing{White: higher.ID, Black: lower.ID}
	case hb > lb:
		return Pairing{White: lower.ID, Black: higher.ID}
	}
	if higher.LastColor == White && lower.LastColor != White {
		return Pairing{White: lower.ID, Black: higher.ID}
	}
	return Pairing{White: higher.ID, Black: lower.ID}
}
