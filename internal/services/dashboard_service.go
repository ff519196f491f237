package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

const dashboardRecentActivity = 10

type Dashboard struct {
	UserID            string                       `json:"userId"`
	Name              string                       `json:"name"`
	EcoScore          int                          `json:"ecoScore"`
	Credits           int                          `json:"credits"`
	Level             models.Level                 `json:"level"`
	CurrentStreakDays int                          `json:"currentStreakDays"`
	LongestStreakDays int                          `json:"longestStreakDays"`
	BadgeCount        int                          `json:"badgeCount"`
	Crops             []models.CropEntry           `json:"crops"`
	Missions          map[models.MissionStatus]int `json:"missions"`
	RecentActivity    []models.ActivityLogEntry    `json:"recentActivity"`
}

type IDashboardService interface {
	GetDashboard(ctx context.Context, userID string) (*Dashboard, error)
}

type dashboardService struct {
	store    store.Store
	activity IActivityService
}

func NewDashboardService(st store.Store, activity IActivityService) IDashboardService {
	return &dashboardService{store: st, activity: activity}
}

func (s *dashboardService) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	var (
		user     *models.User
		counts   map[models.MissionStatus]int
		activity []models.ActivityLogEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.store.Users().Get(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.store.Missions().CountByStatus(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		activity, err = s.activity.Recent(gctx, userID, dashboardRecentActivity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if activity == nil {
		activity = []models.ActivityLogEntry{}
	}
	return &Dashboard{
		UserID:            user.ID,
		Name:              user.Name,
		EcoScore:          user.EcoScore,
		Credits:           user.Credits,
		Level:             models.LevelFor(user.EcoScore),
		CurrentStreakDays: user.CurrentStreakDays,
		LongestStreakDays: user.LongestStreakDays,
		BadgeCount:        len(user.Badges),
		Crops:             user.Crops,
		Missions:          counts,
		RecentActivity:    activity,
	}, nil
}
