package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildstats/activity-service/internal/domain"
	"github.com/guildstats/activity-service/internal/persistence"
)

const userColumns = `user_id, discord_id, username, aliases, created_at, updated_at`

var userSortColumns = map[string]string{
	"username":  "username",
	"discordId": "discord_id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// UserRepository provides Postgres-backed persistence for users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.DiscordID, &user.Username, &user.Aliases, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByDiscordID returns the user with the given external identifier, or nil.
func (r *UserRepository) FindByDiscordID(ctx context.Context, discordID string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE discord_id=$1`, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create persists a user.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	const insert = `INSERT INTO users (user_id, discord_id, username, aliases, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := r.pool.Exec(ctx, insert, user.ID, user.DiscordID, user.Username, emptyIfNil(user.Aliases), user.CreatedAt, user.UpdatedAt)
	return err
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies a partial update and returns the new row, or nil when the
// user does not exist.
func (r *UserRepository) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	sets := make([]string, 0, 2)
	args := []interface{}{id}

	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	if patch.Username != nil {
		sets = append(sets, fmt.Sprintf("username = $%d", arg(*patch.Username)))
	}
	if patch.AddAlias != nil {
		n := arg(*patch.AddAlias)
		sets = append(sets, fmt.Sprintf("aliases = CASE WHEN $%d = ANY(aliases) THEN aliases ELSE array_append(aliases, $%d) END", n, n))
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE user_id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user by ID. Returns false when no row matched.
func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Query returns one page of users matching the filter, with totals.
func (r *UserRepository) Query(ctx context.Context, filter domain.UserFilter, opts domain.PageOptions) (domain.Page[domain.User], error) {
	var zero domain.Page[domain.User]

	args := make([]interface{}, 0, 3)
	arg := func(value interface{}) int {
		args = append(args, value)
		return len(args)
	}

	condition := ""
	if len(filter.DiscordIDs) > 0 {
		condition = fmt.Sprintf(" WHERE discord_id = ANY($%d)", arg(filter.DiscordIDs))
	}

	orderBy, err := persistence.ParseSort(opts.SortBy, userSortColumns, "created_at DESC")
	if err != nil {
		return zero, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+condition, args...).Scan(&total); err != nil {
		return zero, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, condition, orderBy, arg(opts.Limit), arg(opts.Offset()))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	results := make([]domain.User, 0, opts.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return zero, err
		}
		results = append(results, *user)
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}

	return domain.NewPage(results, opts, total), nil
}
