// Package store is the document-store boundary of the engine. Services are written against
// these interfaces; MongoDB and an in-memory implementation satisfy them.
package store

import (
	"context"
	"time"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

// Store groups the repositories and the transaction primitive. Repository calls made with the
// context handed to fn by WithTransaction take part in that transaction.
type Store interface {
	Users() UserRepository
	Missions() MissionRepository
	Activities() ActivityRepository
	Fraud() FraudRepository
	ImageHashes() ImageHashRepository

	// WithTransaction runs fn atomically. When fn returns an error no write made through the
	// transaction context is kept. Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}

// StatField names a counter in models.ActivityStats.
type StatField string

const (
	StatCommunityPosts   StatField = "communityPosts"
	StatCommunityReplies StatField = "communityReplies"
	StatLearningModules  StatField = "learningModulesCompleted"
	StatBestQuizScore    StatField = "bestQuizScore"
)

func (f StatField) Valid() bool {
	switch f {
	case StatCommunityPosts, StatCommunityReplies, StatLearningModules, StatBestQuizScore:
		return true
	}
	return false
}

// Scope restricts a leaderboard to users sharing a field value. The zero value is global.
type Scope string

const (
	ScopeGlobal      Scope = ""
	ScopeState       Scope = "state"
	ScopeDistrict    Scope = "district"
	ScopeSubDistrict Scope = "subDistrict"
	ScopeVillage     Scope = "village"
	ScopeCrop        Scope = "crop"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeState, ScopeDistrict, ScopeSubDistrict, ScopeVillage, ScopeCrop:
		return true
	}
	return false
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	// AddPoints increments ecoScore and credits by points.
	AddPoints(ctx context.Context, id string, points int) error
	SetStreak(ctx context.Context, id string, current, longest int, checkIn time.Time) error
	// AddBadges unions ids into the badge set.
	AddBadges(ctx context.Context, id string, badgeIDs []string) error
	// AdvanceCropStage moves the named crop from stage `from` to from+1, provided it is still at
	// `from` (an unset index counts as 1). It reports whether the stage moved.
	AdvanceCropStage(ctx context.Context, id, crop string, from int, at time.Time) (bool, error)
	IncrementStat(ctx context.Context, id string, field StatField, delta int) error
	// RaiseStat sets field to value if value is larger.
	RaiseStat(ctx context.Context, id string, field StatField, value int) error
	// TopByScore returns up to limit users matching the scope, highest ecoScore first.
	TopByScore(ctx context.Context, scope Scope, value string, limit int) ([]models.User, error)
}

type MissionRepository interface {
	Create(ctx context.Context, m *models.Mission) error
	Get(ctx context.Context, id string) (*models.Mission, error)
	// Update replaces the stored mission if its current status is one of from (any status when
	// from is empty). A status mismatch yields apperr.ErrInvalidState.
	Update(ctx context.Context, m *models.Mission, from ...models.MissionStatus) error
	// Delete removes the mission under the same status condition as Update.
	Delete(ctx context.Context, id string, from ...models.MissionStatus) error
	// List returns matching missions, newest first.
	List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error)
	// ListSubmittedBefore returns SUBMITTED missions submitted before t, oldest first.
	ListSubmittedBefore(ctx context.Context, t time.Time, limit int) ([]models.Mission, error)
	CountByStatus(ctx context.Context, userID string) (map[models.MissionStatus]int, error)
	// CompletedByCategory counts COMPLETED missions per category.
	CompletedByCategory(ctx context.Context, userID string) (map[string]int, error)
}

type ActivityRepository interface {
	Append(ctx context.Context, e *models.ActivityLogEntry) error
	// ListByUser returns the most recent entries first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error)
	SumPoints(ctx context.Context, userID string) (int, error)
}

// FraudRepository writes upsert the per-user record, creating it on first use.
type FraudRepository interface {
	Get(ctx context.Context, userID string) (*models.FraudRecord, error)
	// AppendSubmission pushes rec, keeping only the newest keep entries, and bumps the lifetime
	// submission counter.
	AppendSubmission(ctx context.Context, userID string, rec models.SubmissionRecord, keep int) error
	AddFlag(ctx context.Context, userID string, flag models.FraudFlag) error
	IncrementRejections(ctx context.Context, userID string) error
	SetScore(ctx context.Context, userID string, score int, at time.Time) error
	SetSuspendedUntil(ctx context.Context, userID string, until time.Time) error
}

type ImageHashRepository interface {
	// FindByHash returns the first upload with this hash, or apperr.ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*models.ImageHashEntry, error)
	Add(ctx context.Context, e *models.ImageHashEntry) error
}

func statusIn(s models.MissionStatus, from []models.MissionStatus) bool {
	if len(from) == 0 {
		return true
	}
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}
