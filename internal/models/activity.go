package models

import "time"

// ActivityType classifies ledger and audit entries.
type ActivityType string

const (
	ActivityMissionComplete ActivityType = "mission_complete"
	ActivityDailyCheckIn    ActivityType = "daily_checkin"
	ActivityStreakBonus     ActivityType = "streak_bonus"
	ActivityBadgeEarned     ActivityType = "badge_earned"
	ActivityCommunityPost   ActivityType = "community_post"
	ActivityCommunityReply  ActivityType = "community_reply"
	ActivityLearningModule  ActivityType = "learning_module"
	ActivityQuiz            ActivityType = "quiz"
)

// ActivityLogEntry is an immutable audit record. Write-once.
type ActivityLogEntry struct {
	Base          `bson:",inline"`
	UserID        string       `bson:"userId" json:"userId"`
	MissionID     string       `bson:"missionId,omitempty" json:"missionId,omitempty"`
	Type          ActivityType `bson:"type" json:"type"`
	Description   string       `bson:"description" json:"description"`
	PointsAwarded int          `bson:"pointsAwarded" json:"pointsAwarded"`
	CreatedAt     time.Time    `bson:"createdAt" json:"createdAt"`
}
