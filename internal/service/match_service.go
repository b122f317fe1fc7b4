package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db        *sqlx.DB
	store     *store.ChampionshipStore
	scheduler *RoundScheduler
	now       func() time.Time
}

func NewMatchService(db *sqlx.DB, store *store.ChampionshipStore, scheduler *RoundScheduler) *MatchService {
	return &MatchService{db: db, store: store, scheduler: scheduler, now: time.Now}
}

// RecordMatchResult completes a match. A second result for the same match fails
// with ErrMatchAlreadyCompleted, no matter how the two calls interleave.
func (s *MatchService) RecordMatchResult(ctx context.Context, matchID uuid.UUID, winnerID *int64, result championship.ResultType) (*championship.Match, error) {
	if !result.Valid() {
		return nil, fmt.Errorf("result type %q: %w", result, championship.ErrInvalidResult)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.lockedMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	if match.Status == championship.MatchCompleted {
		return nil, fmt.Errorf("match %s: %w", matchID, championship.ErrMatchAlreadyCompleted)
	}
	if !match.HasPlayers() {
		return nil, fmt.Errorf("match %s: %w", matchID, championship.ErrMatchNotReady)
	}
	round, err := s.store.GetRound(ctx, tx, match.ChampionshipID, match.RoundNumber)
	if err != nil {
		return nil, err
	}
	if round.Status == championship.RoundLocked {
		return nil, fmt.Errorf("round %d: %w", round.Number, championship.ErrRoundLocked)
	}
	if err := validateResult(match, winnerID, result); err != nil {
		return nil, err
	}

	if err := s.completeMatchTx(ctx, tx, match, winnerID, result); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("match result recorded",
		"championship_id", match.ChampionshipID,
		"match_id", match.ID,
		"round", match.RoundNumber,
		"result", result)

	s.advance(ctx, match.ChampionshipID)
	return match, nil
}

func validateResult(m *championship.Match, winnerID *int64, result championship.ResultType) error {
	if result.NeedsWinner() {
		if winnerID == nil || !m.Involves(*winnerID) {
			return fmt.Errorf("%s needs a winner playing in the match: %w", result, championship.ErrInvalidResult)
		}
		return nil
	}
	if winnerID != nil {
		return fmt.Errorf("%s cannot have a winner: %w", result, championship.ErrInvalidResult)
	}
	if m.RoundType.IsElimination() {
		return fmt.Errorf("%s in an elimination match: %w", result, championship.ErrInvalidResult)
	}
	return nil
}

// lockedMatch takes the championship lock and then reads the match, so the status seen is current.
func (s *MatchService) lockedMatch(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (*championship.Match, error) {
	match, err := s.store.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.store.LockChampionship(ctx, tx, match.ChampionshipID); err != nil {
		return nil, err
	}
	return s.store.GetMatch(ctx, tx, matchID)
}

func (s *MatchService) completeMatchTx(ctx context.Context, tx *sqlx.Tx, match *championship.Match, winnerID *int64, result championship.ResultType) error {
	completedAt := s.now().UTC().Truncate(time.Second)
	match.Status = championship.MatchCompleted
	match.WinnerID = winnerID
	match.ResultType = &result
	match.CompletedAt = &completedAt

	ok, err := s.store.CompleteMatch(ctx, tx, match)
	if err != nil {
		return fmt.Errorf("failed to complete match: %w", err)
	}
	if !ok {
		return fmt.Errorf("match %s: %w", match.ID, championship.ErrMatchAlreadyCompleted)
	}

	if match.RoundType.IsElimination() {
		if loser, ok := match.Loser(); ok {
			if err := s.store.MarkEliminated(ctx, tx, match.ChampionshipID, []int64{loser}); err != nil {
				return fmt.Errorf("failed to eliminate loser: %w", err)
			}
		}
	}

	if _, _, err := s.scheduler.afterMatchCompleted(ctx, tx, match.ChampionshipID, match.RoundNumber); err != nil {
		return fmt.Errorf("failed to update round progress: %w", err)
	}
	return nil
}

// StartMatch marks a match as being played. Starting it twice is harmless.
func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*championship.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.lockedMatch(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	switch match.Status {
	case championship.MatchCompleted:
		return nil, fmt.Errorf("match %s: %w", matchID, championship.ErrMatchAlreadyCompleted)
	case championship.MatchInProgress:
		return match, nil
	}
	if !match.HasPlayers() {
		return nil, fmt.Errorf("match %s: %w", matchID, championship.ErrMatchNotReady)
	}

	round, err := s.store.GetRound(ctx, tx, match.ChampionshipID, match.RoundNumber)
	if err != nil {
		return nil, err
	}
	if round.Status == championship.RoundLocked {
		return nil, fmt.Errorf("round %d: %w", round.Number, championship.ErrRoundLocked)
	}

	if _, err := s.store.StartMatch(ctx, tx, matchID); err != nil {
		return nil, err
	}
	if round.Status == championship.RoundUnlocked {
		if err := s.store.UpdateRoundStatus(ctx, tx, match.ChampionshipID, round.Number, championship.RoundInProgress); err != nil {
			return nil, err
		}
	}
	match.Status = championship.MatchInProgress
	return match, tx.Commit()
}

// WithdrawParticipant removes a participant from further pairings. Any open
// match they have is forfeited to the opponent.
func (s *MatchService) WithdrawParticipant(ctx context.Context, championshipID uuid.UUID, participantID int64) error {
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
	if snap.championship.Status == championship.StatusCompleted || snap.hasEliminationRound() {
		return fmt.Errorf("championship %s: %w", championshipID, championship.ErrWithdrawalClosed)
	}

	var participant *championship.Participant
	for i := range snap.participants {
		if snap.participants[i].ID == participantID {
			participant = &snap.participants[i]
		}
	}
	if participant == nil {
		return fmt.Errorf("participant %d: %w", participantID, store.ErrNotFound)
	}
	if participant.Withdrawn {
		return nil
	}
	if c := snap.championship; c.Format != championship.SwissOnly {
		if left := snap.activeParticipants() - 1; left < c.EliminationSize {
			return fmt.Errorf("withdrawal would leave %d players for a bracket of %d: %w",
				left, c.EliminationSize, championship.ErrWithdrawalClosed)
		}
	}

	if err := s.store.SetWithdrawn(ctx, tx, championshipID, participantID); err != nil {
		return err
	}

	forfeited := 0
	for i := range snap.matches {
		m := &snap.matches[i]
		if m.Status == championship.MatchCompleted || !m.Involves(participantID) {
			continue
		}
		opponent, ok := m.Opponent(participantID)
		if !ok {
			continue
		}
		if err := s.completeMatchTx(ctx, tx, m, &opponent, championship.ResultForfeit); err != nil {
			return err
		}
		forfeited++
	}

	after, err := loadSnapshot(ctx, s.store, tx, championshipID)
	if err != nil {
		return err
	}
	final := after.championship.Status == championship.StatusCompleted
	if err := s.scheduler.refreshStandings(ctx, tx, after, final); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("participant withdrawn",
		"championship_id", championshipID,
		"participant_id", participantID,
		"forfeited_matches", forfeited)

	if snap.championship.Status == championship.StatusInProgress {
		s.advance(ctx, championshipID)
	}
	return nil
}

// ExpireOverdueMatches turns Swiss matches that outlived their deadline into
// double forfeits. Elimination matches need a winner, so they are only reported.
func (s *MatchService) ExpireOverdueMatches(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.ListOverdueMatches(ctx, s.db, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue matches: %w", err)
	}

	expired := 0
	touched := make(map[uuid.UUID]bool)
	for _, m := range overdue {
		if m.RoundType.IsElimination() {
			slog.Warn("elimination match past its deadline",
				"championship_id", m.ChampionshipID,
				"match_id", m.ID,
				"deadline", m.Deadline)
			continue
		}

		done, err := s.expireMatch(ctx, m.ID)
		if err != nil {
			return expired, err
		}
		if done {
			expired++
			touched[m.ChampionshipID] = true
		}
	}

	for id := range touched {
		s.advance(ctx, id)
	}
	return expired, nil
}

func (s *MatchService) expireMatch(ctx context.Context, matchID uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	match, err := s.lockedMatch(ctx, tx, matchID)
	if err != nil {
		return false, err
	}
	if match.Status == championship.MatchCompleted {
		return false, nil
	}
	if err := s.completeMatchTx(ctx, tx, match, nil, championship.ResultDoubleForfeit); err != nil {
		return false, err
	}

	slog.Info("match expired", "championship_id", match.ChampionshipID, "match_id", match.ID, "round", match.RoundNumber)
	return true, tx.Commit()
}

// advance runs after a commit. The result is already stored, so failures are only logged;
// the sweep picks the championship up again.
func (s *MatchService) advance(ctx context.Context, championshipID uuid.UUID) {
	if err := s.scheduler.Advance(ctx, championshipID); err != nil {
		slog.Error("failed to advance championship", "championship_id", championshipID, "error", err)
	}
}
