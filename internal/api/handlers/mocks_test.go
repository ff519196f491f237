package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// --- Mocks ---

// MockMissionService
type MockMissionService struct {
	mock.Mock
}

func (m *MockMissionService) mission(args mock.Arguments) (*models.Mission, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *MockMissionService) missions(args mock.Arguments) ([]models.Mission, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Mission), args.Error(1)
}

func (m *MockMissionService) Assign(ctx context.Context, userID, crop string, draft *models.MissionDraft) (*models.Mission, error) {
	return m.mission(m.Called(ctx, userID, crop, draft))
}
func (m *MockMissionService) AssignTo(ctx context.Context, assignerID, targetUserID, crop string, draft models.MissionDraft) (*models.Mission, error) {
	return m.mission(m.Called(ctx, assignerID, targetUserID, crop, draft))
}
func (m *MockMissionService) Get(ctx context.Context, missionID, userID string, role models.Role) (*models.Mission, error) {
	return m.mission(m.Called(ctx, missionID, userID, role))
}
func (m *MockMissionService) List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error) {
	return m.missions(m.Called(ctx, f))
}
func (m *MockMissionService) Pending(ctx context.Context, limit int) ([]models.Mission, error) {
	return m.missions(m.Called(ctx, limit))
}
func (m *MockMissionService) Submit(ctx context.Context, userID, missionID string, image []byte, note string) (*models.Mission, error) {
	return m.mission(m.Called(ctx, userID, missionID, image, note))
}
func (m *MockMissionService) Verify(ctx context.Context, missionID string) (*models.Mission, error) {
	return m.mission(m.Called(ctx, missionID))
}
func (m *MockMissionService) Approve(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error) {
	return m.mission(m.Called(ctx, missionID, adminID, reason))
}
func (m *MockMissionService) Reject(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error) {
	return m.mission(m.Called(ctx, missionID, adminID, reason))
}
func (m *MockMissionService) Delete(ctx context.Context, missionID, userID string, role models.Role) error {
	return m.Called(ctx, missionID, userID, role).Error(0)
}
func (m *MockMissionService) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Int(0), args.Error(1)
}

// MockStreakService
type MockStreakService struct {
	mock.Mock
}

func (m *MockStreakService) CheckIn(ctx context.Context, userID string) (*services.StreakResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StreakResult), args.Error(1)
}

// MockActivityService
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Record(ctx context.Context, userID string, kind services.ActivityKind, value int) error {
	return m.Called(ctx, userID, kind, value).Error(0)
}
func (m *MockActivityService) Recent(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityLogEntry), args.Error(1)
}

// MockBadgeService
type MockBadgeService struct {
	mock.Mock
}

func (m *MockBadgeService) Evaluate(ctx context.Context, userID string) ([]models.Badge, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Badge), args.Error(1)
}
func (m *MockBadgeService) GetBadges(ctx context.Context, userID string) (*services.BadgeSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BadgeSummary), args.Error(1)
}

// MockDashboardService
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) GetDashboard(ctx context.Context, userID string) (*services.Dashboard, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Dashboard), args.Error(1)
}

// MockLeaderboardService
type MockLeaderboardService struct {
	mock.Mock
}

func (m *MockLeaderboardService) GetLeaderboard(ctx context.Context, scope store.Scope, value string, limit int) (*services.Leaderboard, error) {
	args := m.Called(ctx, scope, value, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Leaderboard), args.Error(1)
}

// MockFraudService implements the admin-facing part of services.IFraudService; the rest panics.
type MockFraudService struct {
	services.IFraudService
	mock.Mock
}

func (m *MockFraudService) Flag(ctx context.Context, userID, reason string, severity models.Severity) (*services.FraudReport, error) {
	args := m.Called(ctx, userID, reason, severity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FraudReport), args.Error(1)
}
func (m *MockFraudService) Report(ctx context.Context, userID string) (*services.FraudReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FraudReport), args.Error(1)
}
