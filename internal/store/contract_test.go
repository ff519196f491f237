package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// runContract exercises behaviour every Store implementation must share.
func runContract(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("user not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Users().Get(context.Background(), "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &models.User{Name: "Asha", Role: models.RoleFarmer}
		require.NoError(t, s.Users().Create(ctx, u))

		boom := errors.New("boom")
		err := s.WithTransaction(ctx, func(tx context.Context) error {
			require.NoError(t, s.Users().AddPoints(tx, u.ID, 50))
			require.NoError(t, s.Activities().Append(tx, &models.ActivityLogEntry{UserID: u.ID, PointsAwarded: 50}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Users().Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.EcoScore)
		sum, err := s.Activities().SumPoints(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, sum)
	})

	t.Run("transaction commits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &models.User{Name: "Ravi", Role: models.RoleFarmer}
		require.NoError(t, s.Users().Create(ctx, u))

		require.NoError(t, s.WithTransaction(ctx, func(tx context.Context) error {
			if err := s.Users().AddPoints(tx, u.ID, 30); err != nil {
				return err
			}
			return s.Activities().Append(tx, &models.ActivityLogEntry{UserID: u.ID, PointsAwarded: 30, CreatedAt: time.Now()})
		}))

		got, err := s.Users().Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got.EcoScore)
		assert.Equal(t, 30, got.Credits)
		entries, err := s.Activities().ListByUser(ctx, u.ID, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("conditional mission update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m := &models.Mission{UserID: "u1", Title: "Mulch", Status: models.StatusActive, CreatedAt: time.Now()}
		require.NoError(t, s.Missions().Create(ctx, m))

		m.Status = models.StatusSubmitted
		require.NoError(t, s.Missions().Update(ctx, m, models.StatusAssigned, models.StatusActive))

		err := s.Missions().Update(ctx, m, models.StatusAssigned, models.StatusActive)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)

		err = s.Missions().Delete(ctx, m.ID, models.StatusAssigned, models.StatusActive)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)

		ghost := &models.Mission{Base: models.Base{ID: "ghost"}}
		assert.ErrorIs(t, s.Missions().Update(ctx, ghost), apperr.ErrNotFound)
	})

	t.Run("mission queries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		sub := base.Add(10 * time.Minute)
		for i, st := range []models.MissionStatus{models.StatusCompleted, models.StatusCompleted, models.StatusSubmitted, models.StatusActive} {
			m := &models.Mission{
				UserID:    "u1",
				Crop:      "Wheat",
				Category:  []string{"soil", "water", "soil", "pest"}[i],
				Status:    st,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if st == models.StatusSubmitted {
				m.SubmittedAt = &sub
			}
			require.NoError(t, s.Missions().Create(ctx, m))
		}

		counts, err := s.Missions().CountByStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, counts[models.StatusCompleted])
		assert.Equal(t, 1, counts[models.StatusActive])

		cats, err := s.Missions().CompletedByCategory(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"soil": 1, "water": 1}, cats)

		list, err := s.Missions().List(ctx, models.MissionFilter{UserID: "u1", Crop: "wheat", Limit: 2})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "pest", list[0].Category)

		stale, err := s.Missions().ListSubmittedBefore(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Len(t, stale, 1)
		stale, err = s.Missions().ListSubmittedBefore(ctx, base, 10)
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("crop stage advances once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &models.User{Role: models.RoleFarmer, Crops: []models.CropEntry{{Name: "Wheat"}}}
		require.NoError(t, s.Users().Create(ctx, u))

		moved, err := s.Users().AdvanceCropStage(ctx, u.ID, "Wheat", 1, time.Now())
		require.NoError(t, err)
		assert.True(t, moved)

		moved, err = s.Users().AdvanceCropStage(ctx, u.ID, "Wheat", 1, time.Now())
		require.NoError(t, err)
		assert.False(t, moved)

		got, err := s.Users().Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Crops[0].StageIndex())
		assert.NotNil(t, got.Crops[0].LastMissionDate)
	})

	t.Run("badges and stats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &models.User{Role: models.RoleFarmer, Badges: []string{"first-mission"}}
		require.NoError(t, s.Users().Create(ctx, u))

		require.NoError(t, s.Users().AddBadges(ctx, u.ID, []string{"first-mission", "week-warrior"}))
		require.NoError(t, s.Users().IncrementStat(ctx, u.ID, store.StatCommunityPosts, 2))
		require.NoError(t, s.Users().RaiseStat(ctx, u.ID, store.StatBestQuizScore, 70))
		require.NoError(t, s.Users().RaiseStat(ctx, u.ID, store.StatBestQuizScore, 40))

		got, err := s.Users().Get(ctx, u.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"first-mission", "week-warrior"}, got.Badges)
		assert.Equal(t, 2, got.Stats.CommunityPosts)
		assert.Equal(t, 70, got.Stats.BestQuizScore)
	})

	t.Run("leaderboard scope", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i, st := range []string{"Punjab", "Bihar", "Punjab", "Punjab"} {
			u := &models.User{Name: fmt.Sprintf("u%d", i), Role: models.RoleFarmer, State: st, EcoScore: i * 10,
				Crops: []models.CropEntry{{Name: "Cotton"}}}
			require.NoError(t, s.Users().Create(ctx, u))
		}
		top, err := s.Users().TopByScore(ctx, store.ScopeState, "Punjab", 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, 30, top[0].EcoScore)
		assert.Equal(t, 20, top[1].EcoScore)

		top, err = s.Users().TopByScore(ctx, store.ScopeCrop, "cotton", 10)
		require.NoError(t, err)
		assert.Len(t, top, 4)
	})

	t.Run("fraud record keeps bounded history", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Fraud().Get(ctx, "u1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		now := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 5; i++ {
			rec := models.SubmissionRecord{MissionID: fmt.Sprint(i), Timestamp: now.Add(time.Duration(i) * time.Second)}
			require.NoError(t, s.Fraud().AppendSubmission(ctx, "u1", rec, 3))
		}
		require.NoError(t, s.Fraud().IncrementRejections(ctx, "u1"))
		require.NoError(t, s.Fraud().AddFlag(ctx, "u1", models.FraudFlag{Reason: "dup", Severity: models.SeverityHigh, Timestamp: now}))
		require.NoError(t, s.Fraud().SetScore(ctx, "u1", 42, now))
		require.NoError(t, s.Fraud().SetSuspendedUntil(ctx, "u1", now.Add(time.Hour)))

		rec, err := s.Fraud().Get(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, rec.Submissions, 3)
		assert.Equal(t, "2", rec.Submissions[0].MissionID)
		assert.Equal(t, 5, rec.TotalSubmissions)
		assert.Equal(t, 1, rec.RejectionCount)
		assert.Len(t, rec.Flags, 1)
		assert.Equal(t, 42, rec.FraudScore)
		assert.True(t, rec.SuspendedAt(now))
	})

	t.Run("concurrent awards serialise", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := &models.User{Role: models.RoleFarmer}
		require.NoError(t, s.Users().Create(ctx, u))
		m := &models.Mission{UserID: u.ID, Status: models.StatusSubmitted, Points: 50}
		require.NoError(t, s.Missions().Create(ctx, m))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.WithTransaction(ctx, func(tx context.Context) error {
					cur, err := s.Missions().Get(tx, m.ID)
					if err != nil {
						return err
					}
					if cur.Status == models.StatusCompleted {
						return nil
					}
					cur.Status = models.StatusCompleted
					if err := s.Missions().Update(tx, cur, models.StatusSubmitted); err != nil {
						return err
					}
					return s.Users().AddPoints(tx, u.ID, cur.Points)
				})
			}()
		}
		wg.Wait()

		got, err := s.Users().Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, got.EcoScore)
	})

	t.Run("image hashes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.ImageHashes().FindByHash(ctx, "abc")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		require.NoError(t, s.ImageHashes().Add(ctx, &models.ImageHashEntry{Hash: "abc", UserID: "u1", MissionID: "m1", UploadedAt: time.Now()}))
		e, err := s.ImageHashes().FindByHash(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "m1", e.MissionID)
	})
}
