package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	roundColumns = `id, championship_id, number, type, status, created_at`
	matchColumns = `id, championship_id, round_number, round_type, match_order, player1_id, player2_id,
		is_placeholder, requires_top_k, player1_bracket_position, player2_bracket_position,
		determined_by_round, determined_by, status, winner_id, result_type, deadline, completed_at, created_at`
	byeColumns = `championship_id, round_number, participant_id`

	createRoundQuery = `
		INSERT INTO rounds (id, championship_id, number, type, status)
		VALUES (:id, :championship_id, :number, :type, :status)`
	createMatchesQuery = `
		INSERT INTO matches (id, championship_id, round_number, round_type, match_order, player1_id, player2_id,
			is_placeholder, requires_top_k, player1_bracket_position, player2_bracket_position,
			determined_by_round, determined_by, status, deadline)
		VALUES (:id, :championship_id, :round_number, :round_type, :match_order, :player1_id, :player2_id,
			:is_placeholder, :requires_top_k, :player1_bracket_position, :player2_bracket_position,
			:determined_by_round, :determined_by, :status, :deadline)`
	createByeQuery = `
		INSERT INTO byes (championship_id, round_number, participant_id)
		VALUES (:championship_id, :round_number, :participant_id)`
)

// CreateRound fails with championship.ErrDuplicateRoundGeneration when the round number is taken.
func (s *ChampionshipStore) CreateRound(ctx context.Context, e sqlx.ExtContext, round *championship.Round) error {
	_, err := sqlx.NamedExecContext(ctx, e, createRoundQuery, round)
	if isUniqueViolation(err) {
		return fmt.Errorf("round %d: %w", round.Number, championship.ErrDuplicateRoundGeneration)
	}
	return err
}

func (s *ChampionshipStore) GetRound(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, number int) (*championship.Round, error) {
	var r championship.Round
	query := e.Rebind("SELECT " + roundColumns + " FROM rounds WHERE championship_id = ? AND number = ?")
	if err := sqlx.GetContext(ctx, e, &r, query, championshipID, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("round %d: %w", number, ErrNotFound)
		}
		return nil, err
	}
	return &r, nil
}

func (s *ChampionshipStore) ListRounds(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID) ([]championship.Round, error) {
	var out []championship.Round
	query := e.Rebind("SELECT " + roundColumns + " FROM rounds WHERE championship_id = ? ORDER BY number ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID)
	return out, err
}

func (s *ChampionshipStore) UpdateRoundStatus(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, number int, status championship.RoundStatus) error {
	res, err := e.ExecContext(ctx,
		e.Rebind("UPDATE rounds SET status = ? WHERE championship_id = ? AND number = ?"),
		status, championshipID, number)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, fmt.Errorf("round %d: %w", number, ErrNotFound))
}

func (s *ChampionshipStore) CreateMatches(ctx context.Context, e sqlx.ExtContext, matches []championship.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, e, createMatchesQuery, matches)
	if isUniqueViolation(err) {
		return fmt.Errorf("matches already exist: %w", championship.ErrDuplicateRoundGeneration)
	}
	return err
}

func (s *ChampionshipStore) GetMatch(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) (*championship.Match, error) {
	var m championship.Match
	query := e.Rebind("SELECT " + matchColumns + " FROM matches WHERE id = ?")
	if err := sqlx.GetContext(ctx, e, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (s *ChampionshipStore) ListMatches(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID) ([]championship.Match, error) {
	var out []championship.Match
	query := e.Rebind("SELECT " + matchColumns + " FROM matches WHERE championship_id = ? ORDER BY round_number ASC, match_order ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID)
	return out, err
}

func (s *ChampionshipStore) ListRoundMatches(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, round int) ([]championship.Match, error) {
	var out []championship.Match
	query := e.Rebind("SELECT " + matchColumns + " FROM matches WHERE championship_id = ? AND round_number = ? ORDER BY match_order ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID, round)
	return out, err
}

// ListOverdueMatches returns open matches with both players whose deadline has passed.
func (s *ChampionshipStore) ListOverdueMatches(ctx context.Context, e sqlx.ExtContext, now time.Time) ([]championship.Match, error) {
	var out []championship.Match
	query := e.Rebind(`SELECT ` + matchColumns + ` FROM matches
		WHERE status <> ? AND deadline IS NOT NULL AND deadline < ?
		AND player1_id IS NOT NULL AND player2_id IS NOT NULL
		ORDER BY deadline ASC`)
	err := sqlx.SelectContext(ctx, e, &out, query, championship.MatchCompleted, now.UTC().Truncate(time.Second))
	return out, err
}

// CompleteMatch is a check-and-set on the status column. It reports false when
// the match was already completed by someone else.
func (s *ChampionshipStore) CompleteMatch(ctx context.Context, e sqlx.ExtContext, m *championship.Match) (bool, error) {
	res, err := e.ExecContext(ctx, e.Rebind(`UPDATE matches
		SET status = ?, winner_id = ?, result_type = ?, completed_at = ?
		WHERE id = ? AND status <> ?`),
		championship.MatchCompleted, m.WinnerID, m.ResultType, m.CompletedAt, m.ID, championship.MatchCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *ChampionshipStore) StartMatch(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) (bool, error) {
	res, err := e.ExecContext(ctx,
		e.Rebind("UPDATE matches SET status = ? WHERE id = ? AND status = ?"),
		championship.MatchInProgress, id, championship.MatchPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AssignPlayers writes a resolved pair back onto a placeholder. Only the first write wins.
func (s *ChampionshipStore) AssignPlayers(ctx context.Context, e sqlx.ExtContext, id uuid.UUID, player1, player2 int64, deadline *time.Time) (bool, error) {
	res, err := e.ExecContext(ctx, e.Rebind(`UPDATE matches
		SET player1_id = ?, player2_id = ?, deadline = ?
		WHERE id = ? AND player1_id IS NULL AND player2_id IS NULL`),
		player1, player2, deadline, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *ChampionshipStore) CreateBye(ctx context.Context, e sqlx.ExtContext, bye *championship.Bye) error {
	_, err := sqlx.NamedExecContext(ctx, e, createByeQuery, bye)
	if isUniqueViolation(err) {
		return fmt.Errorf("bye for round %d: %w", bye.RoundNumber, championship.ErrDuplicateRoundGeneration)
	}
	return err
}

func (s *ChampionshipStore) ListByes(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID) ([]championship.Bye, error) {
	var out []championship.Bye
	query := e.Rebind("SELECT " + byeColumns + " FROM byes WHERE championship_id = ? ORDER BY round_number ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID)
	return out, err
}
