package domain

import (
	"context"
	"time"
)

// Activity is a recorded session of a user playing a game. Guilds holds the
// set of Discord guilds the session was observed in; membership only accrues.
// Stop stays nil until a stop event is reported.
type Activity struct {
	ID            string
	DiscordUserID string
	Guilds        []string
	Start         time.Time
	Stop          *time.Time
	GameID        string
	Verified      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActivityPatch carries the optional fields of a partial activity update.
// AddGuild merges a guild into the set rather than replacing it.
type ActivityPatch struct {
	DiscordUserID *string
	AddGuild      *string
	GameID        *string
	Verified      *bool
	Stop          *time.Time
}

// ActivityFilter narrows activity queries. All slices are OR-ed within a
// field and AND-ed across fields.
type ActivityFilter struct {
	UserIDs []string
	GameIDs []string
	Guilds  []string
	Start   *time.Time
	Stop    *time.Time
}

// ActivityRepository captures persistence operations for activities.
type ActivityRepository interface {
	// FindByUserAndGame returns the activity for the (user, game) pair, or
	// nil when none exists.
	FindByUserAndGame(ctx context.Context, discordUserID, gameID string) (*Activity, error)
	// FindOrCreate inserts the candidate unless an activity for the same
	// (DiscordUserID, GameID) pair already exists, and returns the stored
	// row plus whether the candidate was inserted.
	FindOrCreate(ctx context.Context, candidate Activity) (*Activity, bool, error)
	// MergeGuild adds guildID to the activity's guild set if absent and
	// stores the verified flag, in a single atomic statement. Returns nil
	// when the activity no longer exists.
	MergeGuild(ctx context.Context, id, guildID string, verified bool) (*Activity, error)
	Get(ctx context.Context, id string) (*Activity, error)
	Update(ctx context.Context, id string, patch ActivityPatch) (*Activity, error)
	Delete(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, filter ActivityFilter, opts PageOptions) (Page[Activity], error)
}
