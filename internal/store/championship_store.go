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

// ChampionshipStore persists championships and everything hanging off them.
// Every method takes the executor explicitly so callers decide what runs inside a transaction.
type ChampionshipStore struct {
	db *sqlx.DB
}

func NewChampionshipStore(db *sqlx.DB) *ChampionshipStore {
	return &ChampionshipStore{db: db}
}

const (
	championshipColumns = `id, name, format, status, swiss_rounds, elimination_size, third_place_match,
		total_rounds, current_round, matches_per_player_per_round, match_window_hours, created_at, updated_at`
	participantColumns = `championship_id, id, name, rating, registration_order, withdrawn, eliminated`
	standingColumns    = `championship_id, participant_id, rank, points, played, wins, draws, losses, byes,
		buchholz, sonneborn_berger, rating, withdrawn, final_position`

	createChampionshipQuery = `
		INSERT INTO championships (id, name, format, status, swiss_rounds, elimination_size, third_place_match,
			total_rounds, current_round, matches_per_player_per_round, match_window_hours)
		VALUES (:id, :name, :format, :status, :swiss_rounds, :elimination_size, :third_place_match,
			:total_rounds, :current_round, :matches_per_player_per_round, :match_window_hours)`
	createParticipantsQuery = `
		INSERT INTO participants (championship_id, id, name, rating, registration_order, withdrawn, eliminated)
		VALUES (:championship_id, :id, :name, :rating, :registration_order, :withdrawn, :eliminated)`
	createStandingsQuery = `
		INSERT INTO standings (` + standingColumns + `)
		VALUES (:championship_id, :participant_id, :rank, :points, :played, :wins, :draws, :losses, :byes,
			:buchholz, :sonneborn_berger, :rating, :withdrawn, :final_position)`
)

func (s *ChampionshipStore) CreateChampionship(ctx context.Context, e sqlx.ExtContext, c *championship.Championship) error {
	_, err := sqlx.NamedExecContext(ctx, e, createChampionshipQuery, c)
	return err
}

func (s *ChampionshipStore) GetChampionship(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) (*championship.Championship, error) {
	var c championship.Championship
	query := e.Rebind("SELECT " + championshipColumns + " FROM championships WHERE id = ?")
	if err := sqlx.GetContext(ctx, e, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("championship %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (s *ChampionshipStore) ListChampionshipsByStatus(ctx context.Context, e sqlx.ExtContext, status championship.Status) ([]championship.Championship, error) {
	var out []championship.Championship
	query := e.Rebind("SELECT " + championshipColumns + " FROM championships WHERE status = ? ORDER BY created_at ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, status)
	return out, err
}

// LockChampionship takes the championship row for the rest of the transaction.
// The touch-update grabs the write lock on sqlite and a row lock on postgres alike.
func (s *ChampionshipStore) LockChampionship(ctx context.Context, e sqlx.ExtContext, id uuid.UUID) error {
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE championships SET updated_at = ? WHERE id = ?"), time.Now().UTC(), id)
	if err != nil {
		if IsBusy(err) {
			return fmt.Errorf("lock championship %s: %w", id, ErrConflict)
		}
		return err
	}
	return checkAffectedRows(res, fmt.Errorf("championship %s: %w", id, ErrNotFound))
}

func (s *ChampionshipStore) UpdateProgress(ctx context.Context, e sqlx.ExtContext, id uuid.UUID, currentRound int, status championship.Status) error {
	res, err := e.ExecContext(ctx,
		e.Rebind("UPDATE championships SET current_round = ?, status = ?, updated_at = ? WHERE id = ?"),
		currentRound, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, fmt.Errorf("championship %s: %w", id, ErrNotFound))
}

func (s *ChampionshipStore) UpdateStatus(ctx context.Context, e sqlx.ExtContext, id uuid.UUID, status championship.Status) error {
	res, err := e.ExecContext(ctx,
		e.Rebind("UPDATE championships SET status = ?, updated_at = ? WHERE id = ?"),
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, fmt.Errorf("championship %s: %w", id, ErrNotFound))
}

func (s *ChampionshipStore) CreateParticipants(ctx context.Context, e sqlx.ExtContext, participants []championship.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, e, createParticipantsQuery, participants)
	if isUniqueViolation(err) {
		return fmt.Errorf("duplicate participant id: %w", championship.ErrInvalidConfig)
	}
	return err
}

func (s *ChampionshipStore) ListParticipants(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID) ([]championship.Participant, error) {
	var out []championship.Participant
	query := e.Rebind("SELECT " + participantColumns + " FROM participants WHERE championship_id = ? ORDER BY registration_order ASC, id ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID)
	return out, err
}

func (s *ChampionshipStore) SetWithdrawn(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, participantID int64) error {
	res, err := e.ExecContext(ctx,
		e.Rebind("UPDATE participants SET withdrawn = ? WHERE championship_id = ? AND id = ?"),
		true, championshipID, participantID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, fmt.Errorf("participant %d: %w", participantID, ErrNotFound))
}

func (s *ChampionshipStore) MarkEliminated(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, participantIDs []int64) error {
	if len(participantIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE participants SET eliminated = ? WHERE championship_id = ? AND id IN (?)",
		true, championshipID, participantIDs)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, e.Rebind(query), args...)
	return err
}

// ReplaceStandings rewrites the cached standings of a championship.
func (s *ChampionshipStore) ReplaceStandings(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID, rows []championship.Standing) error {
	if _, err := e.ExecContext(ctx, e.Rebind("DELETE FROM standings WHERE championship_id = ?"), championshipID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].ChampionshipID = championshipID
	}
	_, err := sqlx.NamedExecContext(ctx, e, createStandingsQuery, rows)
	return err
}

func (s *ChampionshipStore) ListCachedStandings(ctx context.Context, e sqlx.ExtContext, championshipID uuid.UUID) ([]championship.Standing, error) {
	var out []championship.Standing
	query := e.Rebind("SELECT " + standingColumns + " FROM standings WHERE championship_id = ? ORDER BY rank ASC")
	err := sqlx.SelectContext(ctx, e, &out, query, championshipID)
	return out, err
}

func checkAffectedRows(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
