//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/guildstats/activity-service/internal/domain"
)

func setupPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("guildstats"),
		postgrescontainer.WithUsername("guildstats"),
		postgrescontainer.WithPassword("guildstats"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newGameCandidate(discordID string) domain.Game {
	now := time.Now().UTC()
	return domain.Game{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		Icon:      "icon.png",
		Aliases:   []string{"Game X"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGameFindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	games := NewGameRepository(pool)

	first, created, err := games.FindOrCreate(ctx, newGameCandidate("gameX"))
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, first)

	second, created, err := games.FindOrCreate(ctx, newGameCandidate("gameX"))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE discord_id='gameX'`).Scan(&count))
	require.Equal(t, 1, count)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type='game.created'`).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount, "only the creating call should enqueue an event")

	found, err := games.FindByDiscordID(ctx, "gameX")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, first.ID, found.ID)

	missing, err := games.FindByDiscordID(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestGameFindOrCreateDefaultsNilAliases(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	games := NewGameRepository(pool)

	candidate := newGameCandidate("gameZ")
	candidate.Aliases = nil

	game, created, err := games.FindOrCreate(ctx, candidate)
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, game.Aliases)
	require.Empty(t, game.Aliases)
}

func TestUserCreateDefaultsNilAliases(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	users := NewUserRepository(pool)

	now := time.Now().UTC()
	require.NoError(t, users.Create(ctx, domain.User{
		ID:        uuid.NewString(),
		DiscordID: "u1",
		Username:  "player-one",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	user, err := users.FindByDiscordID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, user.Aliases)
	require.Empty(t, user.Aliases)
}

func TestActivityFindOrCreateAndGuildMerge(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	games := NewGameRepository(pool)
	activities := NewActivityRepository(pool)

	game, _, err := games.FindOrCreate(ctx, newGameCandidate("gameX"))
	require.NoError(t, err)

	now := time.Now().UTC()
	candidate := domain.Activity{
		ID:            uuid.NewString(),
		DiscordUserID: "u1",
		Guilds:        []string{},
		Start:         now,
		GameID:        game.ID,
		Verified:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	activity, created, err := activities.FindOrCreate(ctx, candidate)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := activities.FindOrCreate(ctx, candidate)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, activity.ID, again.ID)

	merged, err := activities.MergeGuild(ctx, activity.ID, "g1", true)
	require.NoError(t, err)
	require.NotNil(t, merged)
	require.Equal(t, []string{"g1"}, merged.Guilds)

	merged, err = activities.MergeGuild(ctx, activity.ID, "g2", true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"g1", "g2"}, merged.Guilds)

	merged, err = activities.MergeGuild(ctx, activity.ID, "g1", true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"g1", "g2"}, merged.Guilds, "merging a known guild must not duplicate it")

	missing, err := activities.MergeGuild(ctx, uuid.NewString(), "g1", true)
	require.NoError(t, err)
	require.Nil(t, missing)

	found, err := activities.FindByUserAndGame(ctx, "u1", game.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, activity.ID, found.ID)

	none, err := activities.FindByUserAndGame(ctx, "u2", game.ID)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestActivityFindOrCreateWithoutGame(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	activities := NewActivityRepository(pool)

	now := time.Now().UTC()
	candidate := domain.Activity{
		ID:            uuid.NewString(),
		DiscordUserID: "u1",
		Start:         now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	activity, created, err := activities.FindOrCreate(ctx, candidate)
	require.NoError(t, err)
	require.True(t, created)
	require.Empty(t, activity.GameID)
	require.NotNil(t, activity.Guilds)

	candidate.ID = uuid.NewString()
	again, created, err := activities.FindOrCreate(ctx, candidate)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, activity.ID, again.ID)

	found, err := activities.FindByUserAndGame(ctx, "u1", "")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, activity.ID, found.ID)
}

func TestActivityDeleteEnqueuesEvent(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(t, ctx)
	games := NewGameRepository(pool)
	activities := NewActivityRepository(pool)

	game, _, err := games.FindOrCreate(ctx, newGameCandidate("gameY"))
	require.NoError(t, err)

	now := time.Now().UTC()
	activity, _, err := activities.FindOrCreate(ctx, domain.Activity{
		ID:            uuid.NewString(),
		DiscordUserID: "u1",
		Guilds:        []string{},
		Start:         now,
		GameID:        game.ID,
		Verified:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	deleted, err := activities.Delete(ctx, activity.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = activities.Delete(ctx, activity.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE event_type='activity.deleted' AND aggregate_id=$1`, activity.ID).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
