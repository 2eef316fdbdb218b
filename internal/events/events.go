// Package events defines the payloads published to downstream consumers.
package events

import "time"

// ActivityStarted is emitted when a new activity record is created for a
// (user, game) pair.
type ActivityStarted struct {
	ActivityID    string    `json:"activity_id"`
	DiscordUserID string    `json:"discord_user_id"`
	GameID        string    `json:"game_id"`
	Start         time.Time `json:"start"`
	Verified      bool      `json:"verified"`
}

// ActivityDeleted is emitted when an activity record is removed.
type ActivityDeleted struct {
	ActivityID    string    `json:"activity_id"`
	DiscordUserID string    `json:"discord_user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// GameCreated is emitted when a previously unseen game is stored.
type GameCreated struct {
	GameID    string    `json:"game_id"`
	DiscordID string    `json:"discord_id"`
	Icon      string    `json:"icon"`
	Aliases   []string  `json:"aliases"`
	CreatedAt time.Time `json:"created_at"`
}
