package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/pairing"
	"github.com/AdamBeresnev/championship-engine/internal/resolver"
	"github.com/AdamBeresnev/championship-engine/internal/standings"
	"github.com/AdamBeresnev/championship-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ChampionshipService is the entry point used by the transport layer.
type ChampionshipService struct {
	db        *sqlx.DB
	store     *store.ChampionshipStore
	scheduler *RoundScheduler
	matches   *MatchService
}

func NewChampionshipService(db *sqlx.DB, store *store.ChampionshipStore) *ChampionshipService {
	scheduler := NewRoundScheduler(db, store)
	return &ChampionshipService{
		db:        db,
		store:     store,
		scheduler: scheduler,
		matches:   NewMatchService(db, store, scheduler),
	}
}

type ParticipantInput struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

type ChampionshipInput struct {
	Name                     string              `json:"name"`
	Format                   championship.Format `json:"format"`
	SwissRounds              int                 `json:"swiss_rounds"`
	EliminationSize          int                 `json:"elimination_size"`
	ThirdPlaceMatch          bool                `json:"third_place_match"`
	MatchesPerPlayerPerRound int                 `json:"matches_per_player_per_round"`
	MatchWindowHours         int                 `json:"match_window_hours"`
	Participants             []ParticipantInput  `json:"participants"`
}

// plan validates the input and fills in the defaults of the round plan.
func (in ChampionshipInput) plan() (*championship.Championship, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", championship.ErrInvalidConfig)
	}
	n := len(in.Participants)
	if n < 2 {
		return nil, fmt.Errorf("%d participants registered: %w", n, championship.ErrInsufficientParticipants)
	}
	seen := make(map[int64]bool, n)
	for _, p := range in.Participants {
		if seen[p.ID] {
			return nil, fmt.Errorf("participant id %d registered twice: %w", p.ID, championship.ErrInvalidConfig)
		}
		seen[p.ID] = true
	}

	perRound := in.MatchesPerPlayerPerRound
	if perRound == 0 {
		perRound = 1
	}
	if perRound != 1 {
		return nil, fmt.Errorf("matches_per_player_per_round must be 1, got %d: %w", perRound, championship.ErrInvalidConfig)
	}
	if in.MatchWindowHours < 0 {
		return nil, fmt.Errorf("match_window_hours must not be negative: %w", championship.ErrInvalidConfig)
	}

	swissRounds, size := in.SwissRounds, in.EliminationSize
	defaultSwiss := int(math.Ceil(math.Log2(float64(n))))

	switch in.Format {
	case championship.SwissOnly:
		if size != 0 {
			return nil, fmt.Errorf("swiss championships have no elimination stage: %w", championship.ErrInvalidConfig)
		}
		if swissRounds == 0 {
			swissRounds = defaultSwiss
		}
	case championship.EliminationOnly:
		if swissRounds != 0 {
			return nil, fmt.Errorf("elimination championships have no swiss stage: %w", championship.ErrInvalidConfig)
		}
		if size == 0 {
			size = n
		}
	case championship.Hybrid:
		if swissRounds == 0 {
			swissRounds = defaultSwiss
		}
		if size == 0 {
			return nil, fmt.Errorf("hybrid championships need an elimination size: %w", championship.ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("unknown format %q: %w", in.Format, championship.ErrInvalidConfig)
	}

	if swissRounds < 0 {
		return nil, fmt.Errorf("swiss_rounds must not be negative: %w", championship.ErrInvalidConfig)
	}
	if in.Format != championship.SwissOnly {
		if size < 2 {
			return nil, fmt.Errorf("elimination size %d: %w", size, championship.ErrInvalidSeedCount)
		}
		if !championship.IsPowerOfTwo(size) {
			return nil, fmt.Errorf("elimination size %d does not fill a draw, the next bracket is %d: %w",
				size, pairing.BracketSize(size), championship.ErrInvalidSeedCount)
		}
		if size > n {
			return nil, fmt.Errorf("elimination size %d with %d participants: %w", size, n, championship.ErrInsufficientParticipants)
		}
	}

	return &championship.Championship{
		ID:                       uuid.New(),
		Name:                     name,
		Format:                   in.Format,
		Status:                   championship.StatusRegistration,
		SwissRounds:              swissRounds,
		EliminationSize:          size,
		ThirdPlaceMatch:          in.ThirdPlaceMatch && size >= 4,
		TotalRounds:              swissRounds + championship.EliminationRounds(size),
		MatchesPerPlayerPerRound: perRound,
		MatchWindowHours:         in.MatchWindowHours,
	}, nil
}

func (s *ChampionshipService) CreateChampionship(ctx context.Context, in ChampionshipInput) (*championship.Championship, error) {
	c, err := in.plan()
	if err != nil {
		return nil, err
	}

	participants := make([]championship.Participant, 0, len(in.Participants))
	for i, p := range in.Participants {
		participants = append(participants, championship.Participant{
			ChampionshipID:    c.ID,
			ID:                p.ID,
			Name:              strings.TrimSpace(p.Name),
			Rating:            p.Rating,
			RegistrationOrder: i + 1,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateChampionship(ctx, tx, c); err != nil {
		return nil, fmt.Errorf("failed to create championship: %w", err)
	}
	if err := s.store.CreateParticipants(ctx, tx, participants); err != nil {
		return nil, fmt.Errorf("failed to create participants: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("championship created",
		"championship_id", c.ID,
		"format", c.Format,
		"participants", len(participants),
		"swiss_rounds", c.SwissRounds,
		"elimination_size", c.EliminationSize)

	return s.store.GetChampionship(ctx, s.db, c.ID)
}

// StartChampionship generates round 1 and whatever can follow it straight away.
func (s *ChampionshipService) StartChampionship(ctx context.Context, championshipID uuid.UUID) (*RoundResult, error) {
	result, err := s.scheduler.GenerateRound(ctx, championshipID, 1)
	if err != nil {
		return nil, err
	}
	if err := s.scheduler.Advance(ctx, championshipID); err != nil {
		return nil, err
	}
	return s.reloadRound(ctx, result)
}

// GenerateRound is idempotent: asking for a round that exists returns it with AlreadyGenerated set.
func (s *ChampionshipService) GenerateRound(ctx context.Context, championshipID uuid.UUID, number int) (*RoundResult, error) {
	result, err := s.scheduler.GenerateRound(ctx, championshipID, number)
	if err != nil {
		return nil, err
	}
	if _, err := s.scheduler.ResolvePending(ctx, championshipID); err != nil {
		return nil, err
	}
	return s.reloadRound(ctx, result)
}

// reloadRound reads the round back so resolved players show up in the result.
func (s *ChampionshipService) reloadRound(ctx context.Context, result *RoundResult) (*RoundResult, error) {
	fresh, err := s.scheduler.existingRound(ctx, s.db, result.Round.ChampionshipID, result.Round.Number)
	if err != nil {
		return nil, err
	}
	fresh.AlreadyGenerated = result.AlreadyGenerated
	return fresh, nil
}

func (s *ChampionshipService) RecordMatchResult(ctx context.Context, matchID uuid.UUID, winnerID *int64, result championship.ResultType) (*championship.Match, error) {
	return s.matches.RecordMatchResult(ctx, matchID, winnerID, result)
}

func (s *ChampionshipService) StartMatch(ctx context.Context, matchID uuid.UUID) (*championship.Match, error) {
	return s.matches.StartMatch(ctx, matchID)
}

func (s *ChampionshipService) WithdrawParticipant(ctx context.Context, championshipID uuid.UUID, participantID int64) error {
	return s.matches.WithdrawParticipant(ctx, championshipID, participantID)
}

func (s *ChampionshipService) ResolvePlaceholder(ctx context.Context, matchID uuid.UUID) (*resolver.Resolution, error) {
	return s.scheduler.ResolvePlaceholder(ctx, matchID)
}

// GetStandings computes standings from the stored matches. A nil asOfRound means
// everything played so far; final positions are attached once the championship is over.
func (s *ChampionshipService) GetStandings(ctx context.Context, championshipID uuid.UUID, asOfRound *int) ([]championship.Standing, error) {
	snap, err := loadSnapshot(ctx, s.store, s.db, championshipID)
	if err != nil {
		return nil, err
	}

	ranked := snap.standings(0)
	if asOfRound != nil {
		switch n := *asOfRound; {
		case n < 0 || n > snap.championship.CurrentRound:
			return nil, fmt.Errorf("standings as of round %d, current round is %d: %w",
				n, snap.championship.CurrentRound, championship.ErrInvalidRoundOrder)
		case n == 0:
			// Before round 1 only ratings and registration order count.
			ranked = standings.Calculate(standings.Input{Participants: snap.participants})
		default:
			ranked = snap.standings(n)
		}
	}

	if asOfRound == nil && snap.championship.Status == championship.StatusCompleted {
		cached, err := s.store.ListCachedStandings(ctx, s.db, championshipID)
		if err != nil {
			return nil, err
		}
		positions := make(map[int64]*int, len(cached))
		for _, c := range cached {
			positions[c.ParticipantID] = c.FinalPosition
		}
		for i := range ranked {
			ranked[i].FinalPosition = positions[ranked[i].ParticipantID]
		}
	}
	return ranked, nil
}

func (s *ChampionshipService) GetChampionship(ctx context.Context, championshipID uuid.UUID) (*championship.Championship, error) {
	return s.store.GetChampionship(ctx, s.db, championshipID)
}

func (s *ChampionshipService) ListParticipants(ctx context.Context, championshipID uuid.UUID) ([]championship.Participant, error) {
	if _, err := s.store.GetChampionship(ctx, s.db, championshipID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, s.db, championshipID)
}

func (s *ChampionshipService) ListRounds(ctx context.Context, championshipID uuid.UUID) ([]championship.Round, error) {
	if _, err := s.store.GetChampionship(ctx, s.db, championshipID); err != nil {
		return nil, err
	}
	return s.store.ListRounds(ctx, s.db, championshipID)
}

func (s *ChampionshipService) ListMatches(ctx context.Context, championshipID uuid.UUID) ([]championship.Match, error) {
	if _, err := s.store.GetChampionship(ctx, s.db, championshipID); err != nil {
		return nil, err
	}
	return s.store.ListMatches(ctx, s.db, championshipID)
}

func (s *ChampionshipService) GetMatch(ctx context.Context, matchID uuid.UUID) (*championship.Match, error) {
	return s.store.GetMatch(ctx, s.db, matchID)
}

type SweepReport struct {
	Expired  int `json:"expired"`
	Advanced int `json:"advanced"`
	Failed   int `json:"failed"`
}

// Sweep expires overdue matches and advances every running championship.
// A championship that fails to advance is logged and skipped.
func (s *ChampionshipService) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	report := &SweepReport{}

	expired, err := s.matches.ExpireOverdueMatches(ctx, now)
	report.Expired = expired
	if err != nil {
		return report, err
	}

	running, err := s.store.ListChampionshipsByStatus(ctx, s.db, championship.StatusInProgress)
	if err != nil {
		return report, fmt.Errorf("failed to list running championships: %w", err)
	}
	for _, c := range running {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.scheduler.Advance(ctx, c.ID); err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			slog.Error("sweep failed to advance championship", "championship_id", c.ID, "error", err)
			report.Failed++
			continue
		}
		report.Advanced++
	}
	return report, nil
}
