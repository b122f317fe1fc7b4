package standings

import "github.com/AdamBeresnev/championship-engine/internal/championship"

// Game is one completed match seen from a single participant.
type Game struct {
	Opponent int64
	Score    float64
}

// GamesByParticipant collects the completed games of every participant.
// Matches without two players are skipped.
func GamesByParticipant(matches []championship.Match) map[int64][]Game {
	games := make(map[int64][]Game)
	for i := range matches {
		m := &matches[i]
		if m.Status != championship.MatchCompleted || !m.HasPlayers() {
			continue
		}
		p1, p2 := *m.Player1ID, *m.Player2ID
		games[p1] = append(games[p1], Game{Opponent: p2, Score: m.ScoreFor(p1)})
		games[p2] = append(games[p2], Game{Opponent: p1, Score: m.ScoreFor(p2)})
	}
	return games
}

// Buchholz sums the current points of every opponent met.
func Buchholz(games []Game, points map[int64]float64) float64 {
	var sum float64
	for _, g := range games {
		sum += points[g.Opponent]
	}
	return sum
}

// SonnebornBerger sums the points of beaten opponents plus half the points of drawn ones.
func SonnebornBerger(games []Game, points map[int64]float64) float64 {
	var sum float64
	for _, g := range games {
		switch g.Score {
		case 1:
			sum += points[g.Opponent]
		case 0.5:
			sum += points[g.Opponent] / 2
		}
	}
	return sum
}
