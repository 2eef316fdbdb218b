package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memGames struct {
	mu    sync.Mutex
	rows  map[string]Game
	byExt map[string]string
}

func newMemGames() *memGames {
	return &memGames{rows: make(map[string]Game), byExt: make(map[string]string)}
}

func (m *memGames) FindByDiscordID(_ context.Context, discordID string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExt[discordID]; ok {
		game := m.rows[id]
		return &game, nil
	}
	return nil, nil
}

func (m *memGames) FindOrCreate(_ context.Context, candidate Game) (*Game, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExt[candidate.DiscordID]; ok {
		game := m.rows[id]
		return &game, false, nil
	}
	m.rows[candidate.ID] = candidate
	m.byExt[candidate.DiscordID] = candidate.ID
	return &candidate, true, nil
}

func (m *memGames) Create(_ context.Context, game Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[game.ID] = game
	m.byExt[game.DiscordID] = game.ID
	return nil
}

func (m *memGames) Get(_ context.Context, id string) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if game, ok := m.rows[id]; ok {
		return &game, nil
	}
	return nil, nil
}

func (m *memGames) Update(_ context.Context, id string, patch GamePatch) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	if patch.DiscordID != nil {
		delete(m.byExt, game.DiscordID)
		game.DiscordID = *patch.DiscordID
		m.byExt[game.DiscordID] = game.ID
	}
	if patch.Icon != nil {
		game.Icon = *patch.Icon
	}
	if patch.AddAlias != nil {
		game.Aliases = append(game.Aliases, *patch.AddAlias)
	}
	m.rows[id] = game
	return &game, nil
}

func (m *memGames) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	delete(m.byExt, game.DiscordID)
	delete(m.rows, id)
	return true, nil
}

func (m *memGames) Query(_ context.Context, _ GameFilter, opts PageOptions) (Page[Game], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]Game, 0, len(m.rows))
	for _, game := range m.rows {
		results = append(results, game)
	}
	return NewPage(results, opts, len(results)), nil
}

type memActivities struct {
	mu   sync.Mutex
	rows map[string]Activity
}

func newMemActivities() *memActivities {
	return &memActivities{rows: make(map[string]Activity)}
}

func (m *memActivities) FindByUserAndGame(_ context.Context, userID, gameID string) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, activity := range m.rows {
		if activity.DiscordUserID == userID && activity.GameID == gameID {
			found := activity
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memActivities) FindOrCreate(_ context.Context, candidate Activity) (*Activity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, activity := range m.rows {
		if activity.DiscordUserID == candidate.DiscordUserID && activity.GameID == candidate.GameID {
			found := activity
			return &found, false, nil
		}
	}
	m.rows[candidate.ID] = candidate
	return &candidate, true, nil
}

func (m *memActivities) MergeGuild(_ context.Context, id, guildID string, verified bool) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	activity, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	present := false
	for _, guild := range activity.Guilds {
		if guild == guildID {
			present = true
			break
		}
	}
	if !present {
		activity.Guilds = append(activity.Guilds, guildID)
	}
	activity.Verified = verified
	m.rows[id] = activity
	return &activity, nil
}

func (m *memActivities) Get(_ context.Context, id string) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if activity, ok := m.rows[id]; ok {
		return &activity, nil
	}
	return nil, nil
}

func (m *memActivities) Update(_ context.Context, id string, patch ActivityPatch) (*Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	activity, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	if patch.DiscordUserID != nil {
		activity.DiscordUserID = *patch.DiscordUserID
	}
	if patch.AddGuild != nil {
		present := false
		for _, guild := range activity.Guilds {
			if guild == *patch.AddGuild {
				present = true
				break
			}
		}
		if !present {
			activity.Guilds = append(activity.Guilds, *patch.AddGuild)
		}
	}
	if patch.GameID != nil {
		activity.GameID = *patch.GameID
	}
	if patch.Verified != nil {
		activity.Verified = *patch.Verified
	}
	if patch.Stop != nil {
		stop := *patch.Stop
		activity.Stop = &stop
	}
	m.rows[id] = activity
	return &activity, nil
}

func (m *memActivities) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memActivities) Query(_ context.Context, _ ActivityFilter, opts PageOptions) (Page[Activity], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]Activity, 0, len(m.rows))
	for _, activity := range m.rows {
		results = append(results, activity)
	}
	return NewPage(results, opts, len(results)), nil
}

type memUsers struct {
	mu   sync.Mutex
	rows map[string]User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[string]User)}
}

func (m *memUsers) FindByDiscordID(_ context.Context, discordID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.rows {
		if user.DiscordID == discordID {
			found := user
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Create(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[user.ID] = user
	return nil
}

func (m *memUsers) Get(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.rows[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (m *memUsers) Update(_ context.Context, id string, patch UserPatch) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.AddAlias != nil {
		user.Aliases = append(user.Aliases, *patch.AddAlias)
	}
	m.rows[id] = user
	return &user, nil
}

func (m *memUsers) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memUsers) Query(_ context.Context, _ UserFilter, opts PageOptions) (Page[User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]User, 0, len(m.rows))
	for _, user := range m.rows {
		results = append(results, user)
	}
	return NewPage(results, opts, len(results)), nil
}

func newTestService() (*Service, *memActivities, *memGames) {
	activities := newMemActivities()
	games := newMemGames()
	return NewService(activities, games, newMemUsers()), activities, games
}

func TestRecordActivityStartResolvesGameOnce(t *testing.T) {
	ctx := context.Background()
	service, _, games := newTestService()

	first, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
		DiscordGameID:  "gameX",
		GameName:       "Game X",
		GameIcon:       "icon.png",
	})
	require.NoError(t, err)

	second, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u2",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(2000),
		DiscordGameID:  "gameX",
	})
	require.NoError(t, err)

	require.Equal(t, first.GameID, second.GameID)
	require.Len(t, games.rows, 1)
}

func TestRecordActivityStartMergesGuildsAcrossCalls(t *testing.T) {
	orders := [][2]string{{"g1", "g2"}, {"g2", "g1"}}
	for _, order := range orders {
		ctx := context.Background()
		service, activities, _ := newTestService()

		_, err := service.RecordActivityStart(ctx, StartActivityInput{
			DiscordUserID:  "u1",
			DiscordGuildID: order[0],
			Start:          time.UnixMilli(1000),
			DiscordGameID:  "gameX",
			GameIcon:       "icon.png",
		})
		require.NoError(t, err)

		merged, err := service.RecordActivityStart(ctx, StartActivityInput{
			DiscordUserID:  "u1",
			DiscordGuildID: order[1],
			Start:          time.UnixMilli(2000),
			DiscordGameID:  "gameX",
		})
		require.NoError(t, err)

		require.Len(t, activities.rows, 1)
		require.ElementsMatch(t, []string{"g1", "g2"}, merged.Guilds)
	}
}

func TestRecordActivityStartGuildMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	input := StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
		DiscordGameID:  "gameX",
	}
	_, err := service.RecordActivityStart(ctx, input)
	require.NoError(t, err)

	merged, err := service.RecordActivityStart(ctx, input)
	require.NoError(t, err)
	require.Equal(t, []string{"g1"}, merged.Guilds)
}

func TestRecordActivityStartVerifiedTracksExternalID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	verified, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
		DiscordGameID:  "gameX",
	})
	require.NoError(t, err)
	require.True(t, verified.Verified)

	unverified, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u2",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
	})
	require.NoError(t, err)
	require.False(t, unverified.Verified)
}

func TestRecordActivityStartFirstEncounterCreatesActivity(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	start := time.UnixMilli(1000)
	activity, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          start,
		DiscordGameID:  "gameX",
	})
	require.NoError(t, err)
	require.Equal(t, "u1", activity.DiscordUserID)
	require.Equal(t, start.UTC(), activity.Start)
	require.Nil(t, activity.Stop)
	require.Equal(t, []string{"g1"}, activity.Guilds)
}

func TestGetActivityUnknownID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	_, err := service.GetActivity(ctx, "missing")
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDeleteActivity(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	require.ErrorIs(t, service.DeleteActivity(ctx, "missing"), ErrActivityNotFound)

	activity, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
	})
	require.NoError(t, err)

	require.NoError(t, service.DeleteActivity(ctx, activity.ID))
	_, err = service.GetActivity(ctx, activity.ID)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestUpdateActivityMergesGuildSet(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	activity, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
	})
	require.NoError(t, err)

	guild := "g1"
	updated, err := service.UpdateActivity(ctx, activity.ID, ActivityPatch{AddGuild: &guild})
	require.NoError(t, err)
	require.Equal(t, []string{"g1"}, updated.Guilds)

	other := "g2"
	updated, err = service.UpdateActivity(ctx, activity.ID, ActivityPatch{AddGuild: &other})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"g1", "g2"}, updated.Guilds)
}

func TestRecordActivityStartWithoutGameNameStoresEmptyAliases(t *testing.T) {
	ctx := context.Background()
	service, activities, games := newTestService()

	activity, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g2",
		Start:          time.UnixMilli(2000),
		DiscordGameID:  "gameX",
	})
	require.NoError(t, err)
	require.True(t, activity.Verified)

	require.Len(t, games.rows, 1)
	for _, game := range games.rows {
		require.NotNil(t, game.Aliases)
		require.Empty(t, game.Aliases)
	}
	for _, stored := range activities.rows {
		require.NotNil(t, stored.Guilds)
	}
}

func TestGetActivityByUserAndGame(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	activity, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
		DiscordGameID:  "gameX",
	})
	require.NoError(t, err)

	found, err := service.GetActivityByUserAndGame(ctx, "u1", activity.GameID)
	require.NoError(t, err)
	require.Equal(t, activity.ID, found.ID)

	_, err = service.GetActivityByUserAndGame(ctx, "u2", activity.GameID)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestGetGameByDiscordID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	_, err := service.RecordActivityStart(ctx, StartActivityInput{
		DiscordUserID:  "u1",
		DiscordGuildID: "g1",
		Start:          time.UnixMilli(1000),
		DiscordGameID:  "gameX",
		GameName:       "Game X",
	})
	require.NoError(t, err)

	game, err := service.GetGameByDiscordID(ctx, "gameX")
	require.NoError(t, err)
	require.Equal(t, "gameX", game.DiscordID)
	require.Equal(t, []string{"Game X"}, game.Aliases)

	_, err = service.GetGameByDiscordID(ctx, "unknown")
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestCreateUserDefaultsNilAliases(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	user, err := service.CreateUser(ctx, "u1", "player-one", nil)
	require.NoError(t, err)
	require.NotNil(t, user.Aliases)
	require.Empty(t, user.Aliases)
}

func TestGetUserByDiscordID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	created, err := service.CreateUser(ctx, "u1", "player-one", []string{"p1"})
	require.NoError(t, err)

	user, err := service.GetUserByDiscordID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = service.GetUserByDiscordID(ctx, "unknown")
	require.ErrorIs(t, err, ErrUserNotFound)
}
