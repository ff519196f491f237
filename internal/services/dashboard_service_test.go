package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.addFarmer(t, "f1", "Wheat")
	ctx := context.Background()
	completeMission(t, e, "f1", "Soil Health")

	_, err := e.missions.Assign(ctx, "f1", "Wheat", nil)
	require.NoError(t, err)
	_, err = e.streaks.CheckIn(ctx, "f1")
	require.NoError(t, err)

	svc := services.NewDashboardService(e.store, services.NewActivityService(e.store, e.ledger, e.clock, zap.NewNop()))
	d, err := svc.GetDashboard(ctx, "f1")
	require.NoError(t, err)

	u := e.user(t, "f1")
	assert.Equal(t, "f1", d.UserID)
	assert.Equal(t, u.EcoScore, d.EcoScore)
	assert.Equal(t, models.LevelFor(u.EcoScore), d.Level)
	assert.Equal(t, 1, d.CurrentStreakDays)
	assert.Equal(t, len(u.Badges), d.BadgeCount)
	assert.Equal(t, 1, d.Missions[models.StatusCompleted])
	assert.Equal(t, 1, d.Missions[models.StatusActive])
	assert.NotEmpty(t, d.RecentActivity)
	assert.LessOrEqual(t, len(d.RecentActivity), 10)

	_, err = svc.GetDashboard(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type MockActivity struct {
	mock.Mock
}

func (m *MockActivity) Record(ctx context.Context, userID string, kind services.ActivityKind, value int) error {
	return m.Called(ctx, userID, kind, value).Error(0)
}

func (m *MockActivity) Recent(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityLogEntry), args.Error(1)
}

func TestDashboard_RecentActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("latest recorded events", func(t *testing.T) {
		e := newTestEnv(t)
		e.addFarmer(t, "f1", "Wheat")
		activity := services.NewActivityService(e.store, e.ledger, e.clock, zap.NewNop())
		for i := 0; i < 12; i++ {
			require.NoError(t, activity.Record(ctx, "f1", services.KindCommunityPost, 0))
		}
		require.NoError(t, activity.Record(ctx, "f1", services.KindQuiz, 80))

		d, err := services.NewDashboardService(e.store, activity).GetDashboard(ctx, "f1")
		require.NoError(t, err)
		require.Len(t, d.RecentActivity, 10)
		assert.Equal(t, models.ActivityQuiz, d.RecentActivity[0].Type)
	})

	t.Run("activity error fails the dashboard", func(t *testing.T) {
		e := newTestEnv(t)
		e.addFarmer(t, "f1", "Wheat")
		activity := new(MockActivity)
		activity.On("Recent", mock.Anything, "f1", 10).Return(nil, errors.New("activity log unavailable"))

		_, err := services.NewDashboardService(e.store, activity).GetDashboard(ctx, "f1")
		assert.EqualError(t, err, "activity log unavailable")
		activity.AssertExpectations(t)
	})

	t.Run("empty log", func(t *testing.T) {
		e := newTestEnv(t)
		e.addFarmer(t, "f1", "Wheat")
		activity := new(MockActivity)
		activity.On("Recent", mock.Anything, "f1", 10).Return(nil, nil)

		d, err := services.NewDashboardService(e.store, activity).GetDashboard(ctx, "f1")
		require.NoError(t, err)
		assert.NotNil(t, d.RecentActivity)
		assert.Empty(t, d.RecentActivity)
	})
}
