package domain

import (
	"context"
	"time"
)

// Game is the reference record for a playable title. DiscordID is the
// external identifier minted by Discord; it is empty for placeholder games
// created from activity reports that carried no game reference.
type Game struct {
	ID        string
	DiscordID string
	Icon      string
	Aliases   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GamePatch carries the optional fields of a partial game update. AddAlias
// appends a display name to the alias list.
type GamePatch struct {
	DiscordID *string
	Icon      *string
	AddAlias  *string
}

// GameFilter narrows game queries.
type GameFilter struct {
	DiscordIDs []string
}

// GameRepository captures persistence operations for games.
type GameRepository interface {
	// FindByDiscordID returns the game with the given external identifier,
	// or nil when none exists.
	FindByDiscordID(ctx context.Context, discordID string) (*Game, error)
	// FindOrCreate inserts the candidate unless a game with the same
	// DiscordID already exists, and returns the stored row. The second
	// return value reports whether the candidate was inserted. Must be safe
	// under concurrent callers racing on the same DiscordID.
	FindOrCreate(ctx context.Context, candidate Game) (*Game, bool, error)
	Create(ctx context.Context, game Game) error
	Get(ctx context.Context, id string) (*Game, error)
	Update(ctx context.Context, id string, patch GamePatch) (*Game, error)
	Delete(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, filter GameFilter, opts PageOptions) (Page[Game], error)
}
