// Package standings ranks participants from completed matches.
//
// Everything here is a pure function of its input: calling Calculate twice on
// the same matches yields the same ordering.
package standings

import (
	"sort"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
)

type Input struct {
	Participants []championship.Participant
	Matches      []championship.Match
	Byes         []championship.Bye

	// AsOfRound limits the calculation to rounds up to and including it. Zero means all rounds.
	AsOfRound int
}

func Calculate(in Input) []championship.Standing {
	matches := in.Matches
	byes := in.Byes
	if in.AsOfRound > 0 {
		matches = filterMatches(in.Matches, in.AsOfRound)
		byes = filterByes(in.Byes, in.AsOfRound)
	}

	games := GamesByParticipant(matches)

	byeCount := make(map[int64]int)
	for _, b := range byes {
		byeCount[b.ParticipantID]++
	}

	points := make(map[int64]float64, len(in.Participants))
	for _, p := range in.Participants {
		total := float64(byeCount[p.ID]) * championship.ByePoints
		for _, g := range games[p.ID] {
			total += g.Score
		}
		points[p.ID] = total
	}

	out := make([]championship.Standing, 0, len(in.Participants))
	for _, p := range in.Participants {
		s := championship.Standing{
			ChampionshipID:    p.ChampionshipID,
			ParticipantID:     p.ID,
			Points:            points[p.ID],
			Played:            len(games[p.ID]),
			Byes:              byeCount[p.ID],
			Buchholz:          Buchholz(games[p.ID], points),
			SonnebornBerger:   SonnebornBerger(games[p.ID], points),
			Rating:            p.Rating,
			Withdrawn:         p.Withdrawn,
			RegistrationOrder: p.RegistrationOrder,
		}
		for _, g := range games[p.ID] {
			switch g.Score {
			case 1:
				s.Wins++
			case 0.5:
				s.Draws++
			default:
				s.Losses++
			}
		}
		out = append(out, s)
	}

	Sort(out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Sort orders standings by points, Buchholz, Sonneborn-Berger and rating, all
// descending. Registration order and id settle anything left so the order is total.
func Sort(s []championship.Standing) {
	sort.SliceStable(s, func(i, j int) bool {
		return Less(s[i], s[j])
	})
}

func Less(a, b championship.Standing) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Buchholz != b.Buchholz {
		return a.Buchholz > b.Buchholz
	}
	if a.SonnebornBerger != b.SonnebornBerger {
		return a.SonnebornBerger > b.SonnebornBerger
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if a.RegistrationOrder != b.RegistrationOrder {
		return a.RegistrationOrder < b.RegistrationOrder
	}
	return a.ParticipantID < b.ParticipantID
}

// TopK returns the ids of the k best-ranked participants that have not withdrawn.
func TopK(ranked []championship.Standing, k int) []int64 {
	out := make([]int64, 0, k)
	for _, s := range ranked {
		if len(out) == k {
			break
		}
		if s.Withdrawn {
			continue
		}
		out = append(out, s.ParticipantID)
	}
	return out
}

func filterMatches(matches []championship.Match, asOf int) []championship.Match {
	out := make([]championship.Match, 0, len(matches))
	for _, m := range matches {
		if m.RoundNumber <= asOf {
			out = append(out, m)
		}
	}
	return out
}

func filterByes(byes []championship.Bye, asOf int) []championship.Bye {
	out := make([]championship.Bye, 0, len(byes))
	for _, b := range byes {
		if b.RoundNumber <= asOf {
			out = append(out, b)
		}
	}
	return out
}
