package pairing

import (
	"fmt"
	"math/bits"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
)

// BracketSize is the smallest draw that seats count players: 5 needs 8.
func BracketSize(count int) int {
	if count <= 1 {
		return max(count, 0)
	}
	return 1 << bits.Len(uint(count-1))
}

// Pairs returns the first-round seed pairs of a k-player draw, 1-indexed and
// in draw order. Seeds 1 and 2 can only meet in the final:
// k=8 gives (1,8) (4,5) (2,7) (3,6).
func Pairs(k int) ([][2]int, error) {
	if k < 2 || !championship.IsPowerOfTwo(k) {
		return nil, fmt.Errorf("bracket of %d seeds: %w", k, championship.ErrInvalidSeedCount)
	}

	order := []int{1}
	for len(order) < k {
		next := make([]int, 0, len(order)*2)
		sum := len(order)*2 + 1

		for _, seed := range order {
			next = append(next, seed, sum-seed)
		}
		order = next
	}

	pairs := make([][2]int, 0, k/2)
	for i := 0; i < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs, nil
}

// ThirdPlacePositions are the semifinal draw slots whose losers meet for third place.
func ThirdPlacePositions() (int, int) {
	return 1, 2
}

// WinnerPositions pairs the winners of draw slots 2i-1 and 2i of the previous round.
func WinnerPositions(matchOrder int) (int, int) {
	return 2*matchOrder - 1, 2 * matchOrder
}
