package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// mapCache is a JSONCache kept in memory, round-tripping values through JSON like Redis does.
type mapCache struct {
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: map[string][]byte{}} }

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

type MockJSONCache struct {
	mock.Mock
}

func (m *MockJSONCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockJSONCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockJSONCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func seedBoard(t *testing.T, e *testEnv) {
	t.Helper()
	ctx := context.Background()
	people := []struct {
		id, state, district string
		role                models.Role
		score               int
	}{
		{"a", "Punjab", "Ludhiana", models.RoleFarmer, 120},
		{"b", "Punjab", "Amritsar", models.RoleFarmer, 340},
		{"admin", "Punjab", "Ludhiana", models.RoleAdmin, 9000},
		{"c", "Haryana", "Karnal", models.RoleFarmer, 500},
		{"d", "Punjab", "Ludhiana", models.RoleFarmer, 75},
	}
	for _, p := range people {
		u := &models.User{Base: models.Base{ID: p.id}, Name: p.id, Role: p.role, State: p.state, District: p.district}
		require.NoError(t, e.store.Users().Create(ctx, u))
		require.NoError(t, e.store.Users().AddPoints(ctx, p.id, p.score))
	}
}

func entryIDs(b *services.Leaderboard) []string {
	ids := make([]string, len(b.Entries))
	for i, en := range b.Entries {
		ids[i] = en.UserID
	}
	return ids
}

func TestLeaderboard_Scopes(t *testing.T) {
	e := newTestEnv(t)
	seedBoard(t, e)
	svc := services.NewLeaderboardService(e.store, nil, 0, e.clock, zap.NewNop())
	ctx := context.Background()

	board, err := svc.GetLeaderboard(ctx, store.ScopeGlobal, "ignored", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a", "d"}, entryIDs(board))
	assert.Empty(t, board.Value)
	for i, en := range board.Entries {
		assert.Equal(t, i+1, en.Rank)
	}
	assert.Equal(t, models.LevelFor(500).Number, board.Entries[0].Level)
	assert.Equal(t, testStart, board.GeneratedAt)

	board, err = svc.GetLeaderboard(ctx, store.ScopeState, "Punjab", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, entryIDs(board))

	board, err = svc.GetLeaderboard(ctx, store.ScopeDistrict, "Ludhiana", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, entryIDs(board))
	assert.Equal(t, 2, board.Entries[1].Rank)

	board, err = svc.GetLeaderboard(ctx, store.ScopeVillage, "Nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, board.Entries)
}

func TestLeaderboard_Validation(t *testing.T) {
	e := newTestEnv(t)
	svc := services.NewLeaderboardService(e.store, nil, 0, e.clock, zap.NewNop())
	ctx := context.Background()

	_, err := svc.GetLeaderboard(ctx, store.Scope("planet"), "earth", 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.GetLeaderboard(ctx, store.ScopeDistrict, "", 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLeaderboard_Cache(t *testing.T) {
	e := newTestEnv(t)
	seedBoard(t, e)
	ctx := context.Background()

	t.Run("miss then store", func(t *testing.T) {
		c := new(MockJSONCache)
		c.On("Get", mock.Anything, "leaderboard:state:Punjab:100", mock.Anything).Return(false, nil)
		c.On("Set", mock.Anything, "leaderboard:state:Punjab:100", mock.AnythingOfType("*services.Leaderboard"), time.Minute).Return(nil)

		svc := services.NewLeaderboardService(e.store, c, time.Minute, e.clock, zap.NewNop())
		board, err := svc.GetLeaderboard(ctx, store.ScopeState, "Punjab", 500)
		require.NoError(t, err)
		assert.Len(t, board.Entries, 3)
		c.AssertExpectations(t)
	})

	t.Run("hit", func(t *testing.T) {
		c := new(MockJSONCache)
		c.On("Get", mock.Anything, "leaderboard:global::10", mock.Anything).
			Run(func(args mock.Arguments) {
				dest := args.Get(2).(*services.Leaderboard)
				dest.Entries = []services.LeaderboardEntry{{Rank: 1, UserID: "cached"}}
			}).Return(true, nil)

		svc := services.NewLeaderboardService(e.store, c, time.Minute, e.clock, zap.NewNop())
		board, err := svc.GetLeaderboard(ctx, store.ScopeGlobal, "", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"cached"}, entryIDs(board))
		c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache failure falls through", func(t *testing.T) {
		c := new(MockJSONCache)
		c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
		c.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		svc := services.NewLeaderboardService(e.store, c, time.Minute, e.clock, zap.NewNop())
		board, err := svc.GetLeaderboard(ctx, store.ScopeGlobal, "", 10)
		require.NoError(t, err)
		assert.Len(t, board.Entries, 4)
	})
}

func TestLeaderboard_CacheKeepsScopeSpelling(t *testing.T) {
	e := newTestEnv(t)
	seedBoard(t, e)
	ctx := context.Background()
	c := newMapCache()
	svc := services.NewLeaderboardService(e.store, c, time.Minute, e.clock, zap.NewNop())

	lower, err := svc.GetLeaderboard(ctx, store.ScopeState, "punjab", 10)
	require.NoError(t, err)
	assert.Empty(t, lower.Entries)

	exact, err := svc.GetLeaderboard(ctx, store.ScopeState, "Punjab", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "d"}, entryIDs(exact))
	assert.Equal(t, "Punjab", exact.Value)

	again, err := svc.GetLeaderboard(ctx, store.ScopeState, "punjab", 10)
	require.NoError(t, err)
	assert.Empty(t, again.Entries)
	assert.Len(t, c.entries, 2)
}
