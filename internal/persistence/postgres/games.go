package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildstats/activity-service/internal/domain"
	"github.com/guildstats/activity-service/internal/events"
	"github.com/guildstats/activity-service/internal/observability"
	"github.com/guildstats/activity-service/internal/persistence"
)

const gameColumns = `game_id, discord_id, icon, aliases, created_at, updated_at`

var gameSortColumns = map[string]string{
	"discordId": "discord_id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// GameRepository provides Postgres-backed persistence for games.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository constructs a GameRepository.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

func scanGame(row pgx.Row) (*domain.Game, error) {
	var game domain.Game
	if err := row.Scan(&game.ID, &game.DiscordID, &game.Icon, &game.Aliases, &game.CreatedAt, &game.UpdatedAt); err != nil {
		return nil, err
	}
	return &game, nil
}

// FindByDiscordID returns the game with the given external identifier, or nil.
func (r *GameRepository) FindByDiscordID(ctx context.Context, discordID string) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE discord_id=$1`

	game, err := scanGame(r.pool.QueryRow(ctx, query, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

// FindOrCreate inserts the candidate unless a game with the same discord_id
// exists, then returns the stored row. The unique index on discord_id keeps
// concurrent callers from creating duplicates.
func (r *GameRepository) FindOrCreate(ctx context.Context, candidate domain.Game) (*domain.Game, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO games (game_id, discord_id, icon, aliases, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (discord_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insert,
		candidate.ID,
		candidate.DiscordID,
		candidate.Icon,
		emptyIfNil(candidate.Aliases),
		candidate.CreatedAt,
		candidate.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	created := tag.RowsAffected() == 1

	if created {
		err = insertOutbox(ctx, tx, "game", candidate.ID, "game.created", candidate.ID, events.GameCreated{
			GameID:    candidate.ID,
			DiscordID: candidate.DiscordID,
			Icon:      candidate.Icon,
			Aliases:   candidate.Aliases,
			CreatedAt: candidate.CreatedAt,
		})
		if err != nil {
			return nil, false, err
		}
	}

	game, err := scanGame(tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE discord_id=$1`, candidate.DiscordID))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	if created {
		observability.RecordGameCreated()
	}
	return game, created, nil
}

// Create persists a game and records the creation event in one transaction.
func (r *GameRepository) Create(ctx context.Context, game domain.Game) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO games (game_id, discord_id, icon, aliases, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)`

	if _, err := tx.Exec(ctx, insert, game.ID, game.DiscordID, game.Icon, emptyIfNil(game.Aliases), game.CreatedAt, game.UpdatedAt); err != nil {
		return err
	}

	err = insertOutbox(ctx, tx, "game", game.ID, "game.created", game.ID, events.GameCreated{
		GameID:    game.ID,
		DiscordID: game.DiscordID,
		Icon:      game.Icon,
		Aliases:   game.Aliases,
		CreatedAt: game.CreatedAt,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordGameCreated()
	return nil
}

// Get retrieves a game by ID.
func (r *GameRepository) Get(ctx context.Context, id string) (*domain.Game, error) {
	game, err := scanGame(r.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

// Update applies a partial update and returns the new row, or nil when the
// game does not exist.
func (r *GameRepository) Update(ctx context.Context, id string, patch domain.GamePatch) (*domain.Game, error) {
	sets := make([]string, 0, 3)
	args := []interface{}{id}

	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	if patch.DiscordID != nil {
		sets = append(sets, fmt.Sprintf("discord_id = $%d", arg(*patch.DiscordID)))
	}
	if patch.Icon != nil {
		sets = append(sets, fmt.Sprintf("icon = $%d", arg(*patch.Icon)))
	}
	if patch.AddAlias != nil {
		n := arg(*patch.AddAlias)
		sets = append(sets, fmt.Sprintf("aliases = CASE WHEN $%d = ANY(aliases) THEN aliases ELSE array_append(aliases, $%d) END", n, n))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE games SET ` + strings.Join(sets, ", ") + ` WHERE game_id = $1 RETURNING ` + gameColumns

	game, err := scanGame(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

// Delete removes a game by ID. Returns false when no row matched.
func (r *GameRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM games WHERE game_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Query returns one page of games matching the filter, with totals.
func (r *GameRepository) Query(ctx context.Context, filter domain.GameFilter, opts domain.PageOptions) (domain.Page[domain.Game], error) {
	var zero domain.Page[domain.Game]

	args := make([]interface{}, 0, 3)
	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	condition := ""
	if len(filter.DiscordIDs) > 0 {
		condition = fmt.Sprintf(" WHERE discord_id = ANY($%d)", arg(filter.DiscordIDs))
	}

	orderBy, err := persistence.ParseSort(opts.SortBy, gameSortColumns, "created_at DESC")
	if err != nil {
		return zero, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`+condition, args...).Scan(&total); err != nil {
		return zero, err
	}

	query := fmt.Sprintf(`SELECT %s FROM games%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		gameColumns, condition, orderBy, arg(opts.Limit), arg(opts.Offset()))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	results := make([]domain.Game, 0, opts.Limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return zero, err
		}
		results = append(results, *game)
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}

	return domain.NewPage(results, opts, total), nil
}
