package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// StreakResult reports what a check-in changed.
type StreakResult struct {
	CurrentStreakDays int  `json:"currentStreakDays"`
	LongestStreakDays int  `json:"longestStreakDays"`
	PointsAwarded     int  `json:"pointsAwarded"`
	BonusAwarded      bool `json:"bonusAwarded"`
	AlreadyCheckedIn  bool `json:"alreadyCheckedIn"`
}

type IStreakService interface {
	// CheckIn records the first activity of the calendar day.
	CheckIn(ctx context.Context, userID string) (*StreakResult, error)
}

type streakService struct {
	store   store.Store
	ledger  ILedgerService
	rewards config.Rewards
	loc     *time.Location
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewStreakService counts calendar days in loc.
func NewStreakService(st store.Store, ledger ILedgerService, rewards config.Rewards, loc *time.Location, clock clockwork.Clock, logger *zap.Logger) IStreakService {
	if loc == nil {
		loc = time.UTC
	}
	return &streakService{store: st, ledger: ledger, rewards: rewards, loc: loc, clock: clock, logger: logger}
}

// nextStreak returns the streak after a check-in on today, or ok=false for a repeat check-in.
func nextStreak(current int, last *time.Time, today time.Time, loc *time.Location) (next int, ok bool) {
	if last == nil {
		return 1, true
	}
	lastDay := dateOnly(*last, loc)
	switch {
	case lastDay.Equal(today):
		return current, false
	case lastDay.Equal(today.AddDate(0, 0, -1)):
		return current + 1, true
	default:
		return 1, true
	}
}

func (s *streakService) CheckIn(ctx context.Context, userID string) (*StreakResult, error) {
	today := dateOnly(s.clock.Now(), s.loc)
	var res StreakResult

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		res = StreakResult{}
		user, err := s.store.Users().Get(ctx, userID)
		if err != nil {
			return err
		}
		current, changed := nextStreak(user.CurrentStreakDays, user.LastCheckInDate, today, s.loc)
		res.CurrentStreakDays = current
		res.LongestStreakDays = max(user.LongestStreakDays, current)
		if !changed {
			res.AlreadyCheckedIn = true
			return nil
		}
		if err := s.store.Users().SetStreak(ctx, userID, current, res.LongestStreakDays, today); err != nil {
			return err
		}

		_, err = s.ledger.Credit(ctx, Award{
			UserID:      userID,
			Points:      s.rewards.DailyCheckInPoints,
			Type:        models.ActivityDailyCheckIn,
			Description: fmt.Sprintf("Daily check-in (day %d)", current),
		})
		if err != nil {
			return err
		}
		res.PointsAwarded = s.rewards.DailyCheckInPoints

		if current%s.rewards.StreakBonusPeriod == 0 {
			_, err = s.ledger.Credit(ctx, Award{
				UserID:      userID,
				Points:      s.rewards.StreakBonusPoints,
				Type:        models.ActivityStreakBonus,
				Description: fmt.Sprintf("%d-day streak bonus", current),
			})
			if err != nil {
				return err
			}
			res.PointsAwarded += s.rewards.StreakBonusPoints
			res.BonusAwarded = true
		}
		return nil
	})
	if err != nil {
		return nil, ledgerError(err)
	}

	if !res.AlreadyCheckedIn {
		s.logger.Info("Streak updated",
			zap.String("userID", userID),
			zap.Int("current", res.CurrentStreakDays),
			zap.Bool("bonus", res.BonusAwarded))
		s.ledger.EvaluateBadgesLater(ctx, userID)
	}
	return &res, nil
}
