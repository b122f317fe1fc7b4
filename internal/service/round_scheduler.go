package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/resolver"
	"github.com/AdamBeresnev/championship-engine/internal/store"
	"github.com/AdamBeresnev/championship-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RoundScheduler owns round generation and the locked -> unlocked -> in_progress -> completed
// life cycle of rounds. All writes that touch a championship's rounds take the
// championship row lock first.
type RoundScheduler struct {
	db    *sqlx.DB
	store *store.ChampionshipStore
	now   func() time.Time
}

func NewRoundScheduler(db *sqlx.DB, store *store.ChampionshipStore) *RoundScheduler {
	return &RoundScheduler{db: db, store: store, now: time.Now}
}

type RoundResult struct {
	Round            *championship.Round  `json:"round"`
	Matches          []championship.Match `json:"matches"`
	Bye              *championship.Bye    `json:"bye,omitempty"`
	AlreadyGenerated bool                 `json:"already_generated"`
}

// GenerateRound creates round number for a championship exactly once. Asking
// again for a round that already exists returns it with AlreadyGenerated set.
func (s *RoundScheduler) GenerateRound(ctx context.Context, championshipID uuid.UUID, number int) (*RoundResult, error) {
	result, err := s.generateRound(ctx, championshipID, number)
	if errors.Is(err, championship.ErrDuplicateRoundGeneration) {
		slog.Warn("round generation raced", "championship_id", championshipID, "round", number)
		return s.existingRound(ctx, s.db, championshipID, number)
	}
	return result, err
}

func (s *RoundScheduler) generateRound(ctx context.Context, championshipID uuid.UUID, number int) (*RoundResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.LockChampionship(ctx, tx, championshipID); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(ctx, s.store, tx, championshipID)
	if err != nil {
		return nil, err
	}
	c := snap.championship

	if number >= 1 && number <= c.CurrentRound {
		return s.existingRound(ctx, tx, championshipID, number)
	}
	if c.Status == championship.StatusCompleted {
		return nil, fmt.Errorf("championship %s is completed: %w", championshipID, championship.ErrInvalidRoundOrder)
	}
	if number != c.CurrentRound+1 {
		return nil, fmt.Errorf("round %d requested while current round is %d: %w",
			number, c.CurrentRound, championship.ErrInvalidRoundOrder)
	}

	roundType, err := c.RoundTypeFor(number)
	if err != nil {
		return nil, err
	}

	prevComplete := snap.roundComplete(number - 1)
	if roundType.Stage() == championship.StageSwiss && !prevComplete {
		return nil, fmt.Errorf("round %d is still being played: %w", number-1, championship.ErrInvalidRoundOrder)
	}

	strategy, err := strategyFor(roundType)
	if err != nil {
		return nil, err
	}
	gen, err := strategy(strategyInput{
		championship: c,
		number:       number,
		roundType:    roundType,
		snapshot:     snap,
		now:          s.now(),
	})
	if err != nil {
		return nil, err
	}

	round := &championship.Round{
		ID:             uuid.New(),
		ChampionshipID: championshipID,
		Number:         number,
		Type:           roundType,
		Status:         championship.RoundUnlocked,
	}
	if !prevComplete {
		round.Status = championship.RoundLocked
	}

	if err := s.store.CreateRound(ctx, tx, round); err != nil {
		return nil, err
	}
	if err := s.store.CreateMatches(ctx, tx, gen.matches); err != nil {
		return nil, err
	}
	if gen.bye != nil {
		if err := s.store.CreateBye(ctx, tx, gen.bye); err != nil {
			return nil, err
		}
		snap.byes = append(snap.byes, *gen.bye)
	}
	if err := s.store.UpdateProgress(ctx, tx, championshipID, number, championship.StatusInProgress); err != nil {
		return nil, err
	}
	if err := s.refreshStandings(ctx, tx, snap, false); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("round generated",
		"championship_id", championshipID,
		"round", number,
		"type", roundType,
		"status", round.Status,
		"matches", len(gen.matches),
		"bye", gen.bye != nil)

	return &RoundResult{Round: round, Matches: gen.matches, Bye: gen.bye}, nil
}

func (s *RoundScheduler) existingRound(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, number int) (*RoundResult, error) {
	round, err := s.store.GetRound(ctx, e, championshipID, number)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.ListRoundMatches(ctx, e, championshipID, number)
	if err != nil {
		return nil, err
	}
	byes, err := s.store.ListByes(ctx, e, championshipID)
	if err != nil {
		return nil, err
	}

	result := &RoundResult{Round: round, Matches: matches, AlreadyGenerated: true}
	for i := range byes {
		if byes[i].RoundNumber == number {
			result.Bye = &byes[i]
		}
	}
	return result, nil
}

// IsRoundComplete reports whether every match of the round has completed.
func (s *RoundScheduler) IsRoundComplete(ctx context.Context, championshipID uuid.UUID, number int) (bool, error) {
	matches, err := s.store.ListRoundMatches(ctx, s.db, championshipID, number)
	if err != nil {
		return false, err
	}
	return championship.IsRoundComplete(matches), nil
}

// Advance resolves whatever placeholders have become resolvable and keeps
// generating rounds while the next one is allowed. Swiss rounds wait for the
// previous round to finish, elimination rounds only need it to exist.
func (s *RoundScheduler) Advance(ctx context.Context, championshipID uuid.UUID) error {
	for {
		_, err := s.ResolvePending(ctx, championshipID)
		if errors.Is(err, championship.ErrInsufficientParticipants) {
			slog.Info("too few active participants to fill the bracket, finalizing", "championship_id", championshipID)
			return s.finalize(ctx, championshipID)
		}
		if err != nil {
			return err
		}

		snap, err := loadSnapshot(ctx, s.store, s.db, championshipID)
		if err != nil {
			return err
		}
		c := snap.championship
		if c.Status == championship.StatusCompleted || c.CurrentRound >= c.TotalRounds {
			return nil
		}

		next := c.CurrentRound + 1
		roundType, err := c.RoundTypeFor(next)
		if err != nil {
			return err
		}
		if roundType.Stage() == championship.StageSwiss && !snap.roundComplete(c.CurrentRound) {
			return nil
		}

		_, err = s.GenerateRound(ctx, championshipID, next)
		if errors.Is(err, championship.ErrInsufficientParticipants) {
			slog.Info("too few active participants to pair, finalizing", "championship_id", championshipID, "round", next)
			return s.finalize(ctx, championshipID)
		}
		if err != nil {
			return err
		}
	}
}

// ResolvePending resolves every placeholder whose prerequisites are met and returns how many were resolved.
func (s *RoundScheduler) ResolvePending(ctx context.Context, championshipID uuid.UUID) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := s.store.LockChampionship(ctx, tx, championshipID); err != nil {
		return 0, err
	}
	snap, err := loadSnapshot(ctx, s.store, tx, championshipID)
	if err != nil {
		return 0, err
	}
	if snap.championship.Status == championship.StatusCompleted {
		return 0, nil
	}

	resolved := 0
	for i := range snap.matches {
		m := &snap.matches[i]
		if !m.IsPlaceholder || m.HasPlayers() {
			continue
		}
		res, err := resolver.Resolve(m, snap.resolverInput())
		if err != nil {
			return 0, err
		}
		if !res.Resolved {
			continue
		}
		if err := s.applyResolution(ctx, tx, snap, m, res); err != nil {
			return 0, err
		}
		resolved++
	}

	if resolved == 0 {
		return 0, nil
	}
	return resolved, tx.Commit()
}

// ResolvePlaceholder resolves one placeholder. Resolving twice returns the same pair.
func (s *RoundScheduler) ResolvePlaceholder(ctx context.Context, matchID uuid.UUID) (*resolver.Resolution, error) {
	m, err := s.store.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, err
	}
	if !m.IsPlaceholder {
		return nil, fmt.Errorf("match %s: %w", matchID, championship.ErrNotPlaceholder)
	}
	if m.HasPlayers() {
		return storedResolution(m), nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.LockChampionship(ctx, tx, m.ChampionshipID); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(ctx, s.store, tx, m.ChampionshipID)
	if err != nil {
		return nil, err
	}

	var current *championship.Match
	for i := range snap.matches {
		if snap.matches[i].ID == matchID {
			current = &snap.matches[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("match %s: %w", matchID, store.ErrNotFound)
	}
	if current.HasPlayers() {
		return storedResolution(current), nil
	}

	res, err := resolver.Resolve(current, snap.resolverInput())
	if err != nil {
		return nil, err
	}
	if !res.Resolved {
		return res, nil
	}
	if err := s.applyResolution(ctx, tx, snap, current, res); err != nil {
		return nil, err
	}
	return res, tx.Commit()
}

func storedResolution(m *championship.Match) *resolver.Resolution {
	return &resolver.Resolution{
		MatchID:   m.ID.String(),
		Resolved:  true,
		Player1ID: m.Player1ID,
		Player2ID: m.Player2ID,
	}
}

func (s *RoundScheduler) applyResolution(ctx context.Context, e sqlx.ExtContext, snap *snapshot, m *championship.Match, res *resolver.Resolution) error {
	ok, err := s.store.AssignPlayers(ctx, e, m.ID, *res.Player1ID, *res.Player2ID, snap.championship.DeadlineFrom(s.now()))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m.Player1ID, m.Player2ID = res.Player1ID, res.Player2ID

	if len(res.Qualifiers) > 0 {
		qualified := make(map[int64]bool, len(res.Qualifiers))
		for _, id := range res.Qualifiers {
			qualified[id] = true
		}
		var out []int64
		for _, p := range snap.participants {
			if !qualified[p.ID] && !p.Eliminated {
				out = append(out, p.ID)
			}
		}
		if err := s.store.MarkEliminated(ctx, e, snap.championship.ID, out); err != nil {
			return err
		}
		for i := range snap.participants {
			if !qualified[snap.participants[i].ID] {
				snap.participants[i].Eliminated = true
			}
		}
	}

	slog.Info("placeholder resolved",
		"championship_id", snap.championship.ID,
		"match_id", m.ID,
		"round", m.RoundNumber,
		"round_type", m.RoundType,
		"player1_id", *res.Player1ID,
		"player2_id", *res.Player2ID)
	return nil
}

// afterMatchCompleted moves the round along once a match of it has completed,
// unlocking the next round and completing the championship after its last round.
// It must run inside the transaction that completed the match.
func (s *RoundScheduler) afterMatchCompleted(ctx context.Context, tx *sqlx.Tx, championshipID uuid.UUID, roundNumber int) (roundDone bool, championshipDone bool, err error) {
	snap, err := loadSnapshot(ctx, s.store, tx, championshipID)
	if err != nil {
		return false, false, err
	}
	c := snap.championship

	if !snap.roundComplete(roundNumber) {
		if err := s.store.UpdateRoundStatus(ctx, tx, championshipID, roundNumber, championship.RoundInProgress); err != nil {
			return false, false, err
		}
		return false, false, s.refreshStandings(ctx, tx, snap, false)
	}

	if err := s.store.UpdateRoundStatus(ctx, tx, championshipID, roundNumber, championship.RoundCompleted); err != nil {
		return false, false, err
	}
	for _, r := range snap.rounds {
		if r.Number == roundNumber+1 && r.Status == championship.RoundLocked {
			if err := s.store.UpdateRoundStatus(ctx, tx, championshipID, r.Number, championship.RoundUnlocked); err != nil {
				return false, false, err
			}
		}
	}

	if c.IsLastRound(roundNumber) {
		if err := s.store.UpdateStatus(ctx, tx, championshipID, championship.StatusCompleted); err != nil {
			return false, false, err
		}
		championshipDone = true
	}

	slog.Info("round completed", "championship_id", championshipID, "round", roundNumber, "championship_completed", championshipDone)
	return true, championshipDone, s.refreshStandings(ctx, tx, snap, championshipDone)
}

// finalize completes a championship early, typically when too few players are left to pair.
func (s *RoundScheduler) finalize(ctx context.Context, championshipID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.store.LockChampionship(ctx, tx, championshipID); err != nil {
		return err
	}
	snap, err := loadSnapshot(ctx, s.store, tx, championshipID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, tx, championshipID, championship.StatusCompleted); err != nil {
		return err
	}
	if err := s.refreshStandings(ctx, tx, snap, true); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *RoundScheduler) refreshStandings(ctx context.Context, e sqlx.ExtContext, snap *snapshot, final bool) error {
	ranked := snap.standings(0)
	if final {
		positions := finalPositions(snap, ranked)
		for i := range ranked {
			ranked[i].FinalPosition = utils.Ptr(positions[ranked[i].ParticipantID])
		}
	}
	return s.store.ReplaceStandings(ctx, e, snap.championship.ID, ranked)
}

// finalPositions places the final and third-place results first and the rest by standings.
func finalPositions(snap *snapshot, ranked []championship.Standing) map[int64]int {
	positions := make(map[int64]int, len(ranked))
	next := 1

	place := func(t championship.RoundType) {
		for i := range snap.matches {
			m := &snap.matches[i]
			if m.RoundType != t {
				continue
			}
			loser, ok := m.Loser()
			if !ok {
				return
			}
			positions[*m.WinnerID] = next
			positions[loser] = next + 1
			next += 2
			return
		}
	}
	place(championship.Final)
	place(championship.ThirdPlace)

	for _, s := range ranked {
		if _, ok := positions[s.ParticipantID]; !ok {
			positions[s.ParticipantID] = next
			next++
		}
	}
	return positions
}
