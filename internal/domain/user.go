package domain

import (
	"context"
	"time"
)

// User is the reference record for a Discord user observed by the tracker.
type User struct {
	ID        string
	DiscordID string
	Username  string
	Aliases   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPatch carries the optional fields of a partial user update.
type UserPatch struct {
	Username *string
	AddAlias *string
}

// UserFilter narrows user queries.
type UserFilter struct {
	DiscordIDs []string
}

// UserRepository captures persistence operations for users.
type UserRepository interface {
	FindByDiscordID(ctx context.Context, discordID string) (*User, error)
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*User, error)
	Delete(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, filter UserFilter, opts PageOptions) (Page[User], error)
}
