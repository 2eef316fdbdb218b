// Package postgres provides pgx-backed repositories for the activity service.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildstats/activity-service/internal/domain"
	"github.com/guildstats/activity-service/internal/events"
	"github.com/guildstats/activity-service/internal/observability"
	"github.com/guildstats/activity-service/internal/persistence"
)

const activityColumns = `activity_id, discord_user_id, guilds, start_time, stop_time, game_id, verified, created_at, updated_at`

var activitySortColumns = map[string]string{
	"start":     "start_time",
	"stop":      "stop_time",
	"verified":  "verified",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ActivityRepository provides Postgres-backed persistence for activities.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var activity domain.Activity
	var gameID *string
	if err := row.Scan(&activity.ID, &activity.DiscordUserID, &activity.Guilds, &activity.Start, &activity.Stop, &gameID, &activity.Verified, &activity.CreatedAt, &activity.UpdatedAt); err != nil {
		return nil, err
	}
	if gameID != nil {
		activity.GameID = *gameID
	}
	return &activity, nil
}

// FindByUserAndGame returns the activity for the (user, game) pair, or nil.
func (r *ActivityRepository) FindByUserAndGame(ctx context.Context, discordUserID, gameID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE discord_user_id=$1 AND game_id IS NOT DISTINCT FROM $2`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, discordUserID, nullIfEmpty(gameID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// FindOrCreate inserts the candidate unless a row for the same
// (discord_user_id, game_id) pair exists, then returns the stored row. The
// insert relies on the unique index, so concurrent callers racing on the
// same pair create at most one row.
func (r *ActivityRepository) FindOrCreate(ctx context.Context, candidate domain.Activity) (*domain.Activity, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO activities (activity_id, discord_user_id, guilds, start_time, stop_time, game_id, verified, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (discord_user_id, game_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insert,
		candidate.ID,
		candidate.DiscordUserID,
		emptyIfNil(candidate.Guilds),
		candidate.Start,
		candidate.Stop,
		nullIfEmpty(candidate.GameID),
		candidate.Verified,
		candidate.CreatedAt,
		candidate.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	created := tag.RowsAffected() == 1

	if created {
		err = insertOutbox(ctx, tx, "activity", candidate.ID, "activity.started", candidate.DiscordUserID, events.ActivityStarted{
			ActivityID:    candidate.ID,
			DiscordUserID: candidate.DiscordUserID,
			GameID:        candidate.GameID,
			Start:         candidate.Start,
			Verified:      candidate.Verified,
		})
		if err != nil {
			return nil, false, err
		}
	}

	// IS NOT DISTINCT FROM matches the nullIfEmpty used on insert, so an
	// empty GameID round-trips instead of never matching NULL.
	query := `SELECT ` + activityColumns + ` FROM activities WHERE discord_user_id=$1 AND game_id IS NOT DISTINCT FROM $2`
	activity, err := scanActivity(tx.QueryRow(ctx, query, candidate.DiscordUserID, nullIfEmpty(candidate.GameID)))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return activity, created, nil
}

// MergeGuild adds guildID to the guild set and stores the verified flag in a
// single statement. The array append is guarded inside the UPDATE, so two
// concurrent merges for the same activity cannot lose each other's guild.
func (r *ActivityRepository) MergeGuild(ctx context.Context, id, guildID string, verified bool) (*domain.Activity, error) {
	const query = `UPDATE activities
        SET guilds = CASE WHEN $2 = ANY(guilds) THEN guilds ELSE array_append(guilds, $2) END,
            verified = $3,
            updated_at = NOW()
        WHERE activity_id = $1
        RETURNING ` + activityColumns

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id, guildID, verified))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	observability.RecordActivityMerged(activity.UpdatedAt)
	return activity, nil
}

// Get retrieves an activity by ID.
func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Update applies a partial update and returns the new row, or nil when the
// activity does not exist.
func (r *ActivityRepository) Update(ctx context.Context, id string, patch domain.ActivityPatch) (*domain.Activity, error) {
	sets := make([]string, 0, 5)
	args := []interface{}{id}

	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	if patch.DiscordUserID != nil {
		sets = append(sets, fmt.Sprintf("discord_user_id = $%d", arg(*patch.DiscordUserID)))
	}
	if patch.AddGuild != nil {
		n := arg(*patch.AddGuild)
		sets = append(sets, fmt.Sprintf("guilds = CASE WHEN $%d = ANY(guilds) THEN guilds ELSE array_append(guilds, $%d) END", n, n))
	}
	if patch.GameID != nil {
		sets = append(sets, fmt.Sprintf("game_id = $%d", arg(nullIfEmpty(*patch.GameID))))
	}
	if patch.Verified != nil {
		sets = append(sets, fmt.Sprintf("verified = $%d", arg(*patch.Verified)))
	}
	if patch.Stop != nil {
		sets = append(sets, fmt.Sprintf("stop_time = $%d", arg(*patch.Stop)))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE activities SET ` + strings.Join(sets, ", ") + ` WHERE activity_id = $1 RETURNING ` + activityColumns

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Delete removes an activity and records the deletion event in the same
// transaction. Returns false when no row matched.
func (r *ActivityRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var discordUserID string
	row := tx.QueryRow(ctx, `DELETE FROM activities WHERE activity_id=$1 RETURNING discord_user_id`, id)
	if err := row.Scan(&discordUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	err = insertOutbox(ctx, tx, "activity", id, "activity.deleted", discordUserID, events.ActivityDeleted{
		ActivityID:    id,
		DiscordUserID: discordUserID,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Query returns one page of activities matching the filter, with totals.
func (r *ActivityRepository) Query(ctx context.Context, filter domain.ActivityFilter, opts domain.PageOptions) (domain.Page[domain.Activity], error) {
	var zero domain.Page[domain.Activity]

	where := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	if len(filter.UserIDs) > 0 {
		where = append(where, fmt.Sprintf("discord_user_id = ANY($%d)", arg(filter.UserIDs)))
	}
	if len(filter.GameIDs) > 0 {
		where = append(where, fmt.Sprintf("game_id = ANY($%d)", arg(filter.GameIDs)))
	}
	if len(filter.Guilds) > 0 {
		where = append(where, fmt.Sprintf("guilds && $%d", arg(filter.Guilds)))
	}
	if filter.Start != nil {
		where = append(where, fmt.Sprintf("start_time >= $%d", arg(*filter.Start)))
	}
	if filter.Stop != nil {
		where = append(where, fmt.Sprintf("stop_time <= $%d", arg(*filter.Stop)))
	}

	condition := ""
	if len(where) > 0 {
		condition = " WHERE " + strings.Join(where, " AND ")
	}

	orderBy, err := persistence.ParseSort(opts.SortBy, activitySortColumns, "created_at DESC")
	if err != nil {
		return zero, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities`+condition, args...).Scan(&total); err != nil {
		return zero, err
	}

	query := fmt.Sprintf(`SELECT %s FROM activities%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		activityColumns, condition, orderBy, arg(opts.Limit), arg(opts.Offset()))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, opts.Limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return zero, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}

	return domain.NewPage(results, opts, total), nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// emptyIfNil keeps nil slices out of NOT NULL array columns, where pgx
// would otherwise encode them as SQL NULL.
func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
