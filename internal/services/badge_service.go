package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// Legend badge thresholds.
const (
	legendStreakDays = 100
	legendEcoScore   = 1000
)

// BadgeProgress is one catalog badge as seen by a user.
type BadgeProgress struct {
	models.Badge
	Earned   bool `json:"earned"`
	Progress int  `json:"progress"`
}

// BadgeSummary answers get-badges.
type BadgeSummary struct {
	Earned []BadgeProgress `json:"earned"`
	Locked []BadgeProgress `json:"locked"`
	Total  int             `json:"total"`
}

type IBadgeService interface {
	// Evaluate grants every newly qualifying badge and returns those granted by this call.
	Evaluate(ctx context.Context, userID string) ([]models.Badge, error)
	GetBadges(ctx context.Context, userID string) (*BadgeSummary, error)
}

type badgeService struct {
	store   store.Store
	catalog *catalog.Catalog
	clock   clockwork.Clock
	logger  *zap.Logger
}

func NewBadgeService(st store.Store, cat *catalog.Catalog, clock clockwork.Clock, logger *zap.Logger) IBadgeService {
	return &badgeService{store: st, catalog: cat, clock: clock, logger: logger}
}

// aggregates is the freshly queried state badge criteria are judged on.
type aggregates struct {
	user       *models.User
	byCategory map[string]int
	completed  int
}

func (s *badgeService) load(ctx context.Context, userID string) (*aggregates, error) {
	agg := &aggregates{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.Users().Get(gctx, userID)
		agg.user = u
		return err
	})
	g.Go(func() error {
		counts, err := s.store.Missions().CompletedByCategory(gctx, userID)
		agg.byCategory = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, n := range agg.byCategory {
		agg.completed += n
	}
	return agg, nil
}

// completedIn counts completed missions whose category contains the given one.
func (a *aggregates) completedIn(category string) int {
	want := models.CropKey(category)
	total := 0
	for c, n := range a.byCategory {
		if strings.Contains(models.CropKey(c), want) {
			total += n
		}
	}
	return total
}

// progress returns the value the badge threshold is compared against.
func (a *aggregates) progress(c models.BadgeCriteria) int {
	u := a.user
	switch c.Type {
	case models.CriteriaMissionCount:
		if c.Category != "" {
			return a.completedIn(c.Category)
		}
		return a.completed
	case models.CriteriaStreak:
		return u.CurrentStreakDays
	case models.CriteriaCommunityPosts:
		return u.Stats.CommunityPosts
	case models.CriteriaCommunityReplies:
		return u.Stats.CommunityReplies
	case models.CriteriaLearningModules:
		return u.Stats.LearningModulesCompleted
	case models.CriteriaLevel:
		return models.LevelNumber(u.EcoScore)
	case models.CriteriaEcoScoreGain:
		return u.EcoScore
	case models.CriteriaQuizScore:
		return u.Stats.BestQuizScore
	case models.CriteriaLegendStatus:
		if u.CurrentStreakDays >= legendStreakDays && u.EcoScore >= legendEcoScore {
			return 1
		}
	}
	return 0
}

func (a *aggregates) qualifies(c models.BadgeCriteria) bool {
	threshold := c.Threshold
	if c.Type == models.CriteriaLegendStatus {
		threshold = 1
	}
	return a.progress(c) >= threshold
}

func (s *badgeService) Evaluate(ctx context.Context, userID string) ([]models.Badge, error) {
	agg, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Badge
	for _, b := range s.catalog.Badges() {
		if !agg.user.HasBadge(b.ID) && agg.qualifies(b.Criteria) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var granted []models.Badge
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		granted = nil
		// Re-read inside the transaction so a concurrent evaluation cannot log a badge twice.
		user, err := s.store.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(candidates))
		for _, b := range candidates {
			if !user.HasBadge(b.ID) {
				granted = append(granted, b)
				ids = append(ids, b.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		if err := s.store.Users().AddBadges(ctx, userID, ids); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		for _, b := range granted {
			err := s.store.Activities().Append(ctx, &models.ActivityLogEntry{
				Base:        models.NewBase(),
				UserID:      userID,
				Type:        models.ActivityBadgeEarned,
				Description: fmt.Sprintf("Earned badge: %s", b.Name),
				CreatedAt:   now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant badges to %s: %w", userID, err)
	}
	for _, b := range granted {
		s.logger.Info("Badge earned", zap.String("userID", userID), zap.String("badgeID", b.ID))
	}
	return granted, nil
}

func (s *badgeService) GetBadges(ctx context.Context, userID string) (*BadgeSummary, error) {
	agg, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges := s.catalog.Badges()
	summary := &BadgeSummary{Earned: []BadgeProgress{}, Locked: []BadgeProgress{}, Total: len(badges)}
	for _, b := range badges {
		p := BadgeProgress{Badge: b, Progress: agg.progress(b.Criteria)}
		// Earned badges stay earned whatever the metric does now.
		if agg.user.HasBadge(b.ID) {
			p.Earned = true
			summary.Earned = append(summary.Earned, p)
		} else {
			summary.Locked = append(summary.Locked, p)
		}
	}
	return summary, nil
}
