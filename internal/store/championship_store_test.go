package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/db"
	"github.com/AdamBeresnev/championship-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a throwaway SQLite database and applies the embedded migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		filepath.Join(t.TempDir(), "test.db"))
	database, err := db.InitDB(db.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

func seedChampionship(t *testing.T, database *sqlx.DB, store *ChampionshipStore, n int) *championship.Championship {
	t.Helper()
	ctx := context.Background()

	c := &championship.Championship{
		ID:                       uuid.New(),
		Name:                     "Spring Open",
		Format:                   championship.Hybrid,
		Status:                   championship.StatusRegistration,
		SwissRounds:              2,
		EliminationSize:          4,
		ThirdPlaceMatch:          true,
		TotalRounds:              4,
		MatchesPerPlayerPerRound: 1,
		MatchWindowHours:         24,
	}
	require.NoError(t, store.CreateChampionship(ctx, database, c))

	participants := make([]championship.Participant, 0, n)
	for i := 1; i <= n; i++ {
		participants = append(participants, championship.Participant{
			ChampionshipID:    c.ID,
			ID:                int64(i),
			Name:              fmt.Sprintf("Player %d", i),
			Rating:            2000 - i*10,
			RegistrationOrder: i,
		})
	}
	require.NoError(t, store.CreateParticipants(ctx, database, participants))
	return c
}

func TestCreateChampionship(t *testing.T) {
	database := setupTestDB(t)
	store := NewChampionshipStore(database)
	ctx := context.Background()

	c := seedChampionship(t, database, store, 4)

	fetched, err := store.GetChampionship(ctx, database, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, fetched.ID)
	assert.Equal(t, c.Name, fetched.Name)
	assert.Equal(t, championship.Hybrid, fetched.Format)
	assert.Equal(t, championship.StatusRegistration, fetched.Status)
	assert.Equal(t, 2, fetched.SwissRounds)
	assert.Equal(t, 4, fetched.EliminationSize)
	assert.True(t, fetched.ThirdPlaceMatch)
	assert.Equal(t, 0, fetched.CurrentRound)
	assert.WithinDuration(t, time.Now().UTC(), fetched.CreatedAt, time.Minute)

	_, err = store.GetChampionship(ctx, database, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, championship.ErrNotFound)

	require.NoError(t, store.UpdateProgress(ctx, database, c.ID, 1, championship.StatusInProgress))
	running, err := store.ListChampionshipsByStatus(ctx, database, championship.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, 1, running[0].CurrentRound)

	assert.ErrorIs(t, store.LockChampionship(ctx, database, uuid.New()), ErrNotFound)
}

func TestParticipants(t *testing.T) {
	database := setupTestDB(t)
	store := NewChampionshipStore(database)
	ctx := context.Background()

	c := seedChampionship(t, database, store, 4)

	participants, err := store.ListParticipants(ctx, database, c.ID)
	require.NoError(t, err)
	require.Len(t, participants, 4)
	for i, p := range participants {
		assert.Equal(t, int64(i+1), p.ID)
		assert.Equal(t, i+1, p.RegistrationOrder)
		assert.False(t, p.Withdrawn)
	}

	err = store.CreateParticipants(ctx, database, []championship.Participant{{ChampionshipID: c.ID, ID: 2, Name: "Again", RegistrationOrder: 5}})
	assert.ErrorIs(t, err, championship.ErrInvalidConfig)

	require.NoError(t, store.SetWithdrawn(ctx, database, c.ID, 3))
	require.NoError(t, store.MarkEliminated(ctx, database, c.ID, []int64{1, 4}))
	assert.ErrorIs(t, store.SetWithdrawn(ctx, database, c.ID, 99), ErrNotFound)

	participants, err = store.ListParticipants(ctx, database, c.ID)
	require.NoError(t, err)
	assert.True(t, participants[0].Eliminated)
	assert.False(t, participants[1].Eliminated)
	assert.True(t, participants[2].Withdrawn)
	assert.True(t, participants[3].Eliminated)
}

func TestReplaceStandings(t *testing.T) {
	database := setupTestDB(t)
	store := NewChampionshipStore(database)
	ctx := context.Background()

	c := seedChampionship(t, database, store, 2)

	rows := []championship.Standing{
		{ParticipantID: 1, Rank: 1, Points: 1, Played: 1, Wins: 1},
		{ParticipantID: 2, Rank: 2, Points: 0, Played: 1, Losses: 1},
	}
	require.NoError(t, store.ReplaceStandings(ctx, database, c.ID, rows))

	rows[0].FinalPosition = utils.Ptr(1)
	rows[1].FinalPosition = utils.Ptr(2)
	require.NoError(t, store.ReplaceStandings(ctx, database, c.ID, rows))

	cached, err := store.ListCachedStandings(ctx, database, c.ID)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, int64(1), cached[0].ParticipantID)
	assert.Equal(t, 1.0, cached[0].Points)
	require.NotNil(t, cached[1].FinalPosition)
	assert.Equal(t, 2, *cached[1].FinalPosition)
}
