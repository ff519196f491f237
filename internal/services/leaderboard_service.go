package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/cache"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	leaderboardOverFetch    = 3
)

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	EcoScore   int    `json:"ecoScore"`
	Level      int    `json:"level"`
	Title      string `json:"title"`
	BadgeCount int    `json:"badgeCount"`
	State      string `json:"state,omitempty"`
	District   string `json:"district,omitempty"`
	Village    string `json:"village,omitempty"`
}

type Leaderboard struct {
	Scope       store.Scope        `json:"scope"`
	Value       string             `json:"value,omitempty"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

type ILeaderboardService interface {
	// GetLeaderboard ranks farmers by ecoScore within the scope. Equal scores keep the store's
	// order.
	GetLeaderboard(ctx context.Context, scope store.Scope, value string, limit int) (*Leaderboard, error)
}

type leaderboardService struct {
	store  store.Store
	cache  cache.JSONCache
	ttl    time.Duration
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewLeaderboardService caches boards for ttl when jsonCache is non-nil.
func NewLeaderboardService(st store.Store, jsonCache cache.JSONCache, ttl time.Duration, clock clockwork.Clock, logger *zap.Logger) ILeaderboardService {
	return &leaderboardService{store: st, cache: jsonCache, ttl: ttl, clock: clock, logger: logger}
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, scope store.Scope, value string, limit int) (*Leaderboard, error) {
	if !scope.Valid() {
		return nil, apperr.Validation("invalid leaderboard scope %q", scope)
	}
	if scope != store.ScopeGlobal && value == "" {
		return nil, apperr.Validation("a value is required for scope %q", scope)
	}
	if scope == store.ScopeGlobal {
		value = ""
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	key := cache.Key("leaderboard", scopeKey(scope), scopeValueKey(scope, value), strconv.Itoa(limit))
	if s.cache != nil && s.ttl > 0 {
		var cached Leaderboard
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Leaderboard cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	users, err := s.store.Users().TopByScore(ctx, scope, value, limit*leaderboardOverFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	board := &Leaderboard{Scope: scope, Value: value, Entries: rank(users, limit), GeneratedAt: s.clock.Now().UTC()}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, board, s.ttl); err != nil {
			s.logger.Warn("Leaderboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return board, nil
}

func scopeKey(scope store.Scope) string {
	if scope == store.ScopeGlobal {
		return "global"
	}
	return string(scope)
}

// scopeValueKey folds the value only for the crop scope, the one scope the stores match
// case-insensitively. Geographic values must keep their spelling or two boards share an entry.
func scopeValueKey(scope store.Scope, value string) string {
	if scope == store.ScopeCrop {
		return models.CropKey(value)
	}
	return value
}

// rank keeps farmers only, truncates to limit and numbers the result from 1.
func rank(users []models.User, limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, min(len(users), limit))
	for _, u := range users {
		if u.Role != models.RoleFarmer {
			continue
		}
		if len(entries) == limit {
			break
		}
		lvl := models.LevelFor(u.EcoScore)
		entries = append(entries, LeaderboardEntry{
			Rank:       len(entries) + 1,
			UserID:     u.ID,
			Name:       u.Name,
			EcoScore:   u.EcoScore,
			Level:      lvl.Number,
			Title:      lvl.Title,
			BadgeCount: len(u.Badges),
			State:      u.State,
			District:   u.District,
			Village:    u.Village,
		})
	}
	return entries
}
