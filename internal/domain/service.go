// Package domain defines the business logic for the activity service.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrGameNotFound is returned when a game cannot be located.
	ErrGameNotFound = errors.New("game not found")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
)

// Service orchestrates activity, game, and user workflows.
type Service struct {
	activities ActivityRepository
	games      GameRepository
	users      UserRepository
}

// NewService constructs a Service with explicit store dependencies.
func NewService(activities ActivityRepository, games GameRepository, users UserRepository) *Service {
	return &Service{activities: activities, games: games, users: users}
}

// StartActivityInput captures an activity-start report from the API layer.
// DiscordGameID, GameName, and GameIcon are empty when the reporter could
// not resolve the title.
type StartActivityInput struct {
	DiscordUserID  string
	DiscordGuildID string
	Start          time.Time
	DiscordGameID  string
	GameName       string
	GameIcon       string
}

// RecordActivityStart resolves or creates the game, resolves or creates the
// activity for the (user, game) pair, merges the reporting guild into the
// activity's guild set, and recomputes the verified flag. The guild merge is
// a single atomic store statement, so concurrent reports for the same pair
// cannot lose guild memberships to each other.
func (s *Service) RecordActivityStart(ctx context.Context, input StartActivityInput) (*Activity, error) {
	now := time.Now().UTC()

	aliases := []string{}
	if input.GameName != "" {
		aliases = append(aliases, input.GameName)
	}
	game, _, err := s.games.FindOrCreate(ctx, Game{
		ID:        uuid.NewString(),
		DiscordID: input.DiscordGameID,
		Icon:      input.GameIcon,
		Aliases:   aliases,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	activity, _, err := s.activities.FindOrCreate(ctx, Activity{
		ID:            uuid.NewString(),
		DiscordUserID: input.DiscordUserID,
		Guilds:        []string{},
		Start:         input.Start.UTC(),
		GameID:        game.ID,
		Verified:      game.DiscordID != "",
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	merged, err := s.activities.MergeGuild(ctx, activity.ID, input.DiscordGuildID, game.DiscordID != "")
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, ErrActivityNotFound
	}
	return merged, nil
}

// GetActivityByUserAndGame fetches the activity for a (user, game) pair.
func (s *Service) GetActivityByUserAndGame(ctx context.Context, discordUserID, gameID string) (*Activity, error) {
	activity, err := s.activities.FindByUserAndGame(ctx, discordUserID, gameID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// QueryActivities fetches a page of activities matching the filter.
func (s *Service) QueryActivities(ctx context.Context, filter ActivityFilter, opts PageOptions) (Page[Activity], error) {
	return s.activities.Query(ctx, filter, opts.Normalize())
}

// GetActivity fetches an activity by ID.
func (s *Service) GetActivity(ctx context.Context, id string) (*Activity, error) {
	activity, err := s.activities.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// UpdateActivity applies a partial update to an activity.
func (s *Service) UpdateActivity(ctx context.Context, id string, patch ActivityPatch) (*Activity, error) {
	activity, err := s.activities.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// DeleteActivity removes an activity by ID.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	deleted, err := s.activities.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrActivityNotFound
	}
	return nil
}

// CreateGame stores a new game record.
func (s *Service) CreateGame(ctx context.Context, discordID, name, icon string) (*Game, error) {
	now := time.Now().UTC()
	game := Game{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		Icon:      icon,
		Aliases:   []string{name},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.games.Create(ctx, game); err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGameByDiscordID fetches a game by its external identifier.
func (s *Service) GetGameByDiscordID(ctx context.Context, discordID string) (*Game, error) {
	game, err := s.games.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// QueryGames fetches a page of games matching the filter.
func (s *Service) QueryGames(ctx context.Context, filter GameFilter, opts PageOptions) (Page[Game], error) {
	return s.games.Query(ctx, filter, opts.Normalize())
}

// GetGame fetches a game by ID.
func (s *Service) GetGame(ctx context.Context, id string) (*Game, error) {
	game, err := s.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// UpdateGame applies a partial update to a game. The verified flag of
// activities linked to the game is not re-derived here; it only changes the
// next time an activity start is reconciled.
func (s *Service) UpdateGame(ctx context.Context, id string, patch GamePatch) (*Game, error) {
	game, err := s.games.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// DeleteGame removes a game by ID.
func (s *Service) DeleteGame(ctx context.Context, id string) error {
	deleted, err := s.games.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrGameNotFound
	}
	return nil
}

// CreateUser stores a new user record.
func (s *Service) CreateUser(ctx context.Context, discordID, username string, aliases []string) (*User, error) {
	if aliases == nil {
		aliases = []string{}
	}
	now := time.Now().UTC()
	user := User{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		Username:  username,
		Aliases:   aliases,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByDiscordID fetches a user by its external identifier.
func (s *Service) GetUserByDiscordID(ctx context.Context, discordID string) (*User, error) {
	user, err := s.users.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// QueryUsers fetches a page of users matching the filter.
func (s *Service) QueryUsers(ctx context.Context, filter UserFilter, opts PageOptions) (Page[User], error) {
	return s.users.Query(ctx, filter, opts.Normalize())
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateUser applies a partial update to a user.
func (s *Service) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteUser removes a user by ID.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}
	return nil
}
