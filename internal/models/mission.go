package models

import "time"

// MissionStatus is a node in the mission state machine.
type MissionStatus string

const (
	StatusAssigned  MissionStatus = "ASSIGNED"
	StatusActive    MissionStatus = "ACTIVE"
	StatusSubmitted MissionStatus = "SUBMITTED"
	StatusVerified  MissionStatus = "VERIFIED"
	StatusRejected  MissionStatus = "REJECTED"
	StatusCompleted MissionStatus = "COMPLETED"
)

func (s MissionStatus) Valid() bool {
	switch s {
	case StatusAssigned, StatusActive, StatusSubmitted, StatusVerified, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// AwaitingProof is true for the two equivalent pre-submission states.
func (s MissionStatus) AwaitingProof() bool {
	return s == StatusAssigned || s == StatusActive
}

// CanSubmit reports whether proof may be (re)submitted from this state.
func (s MissionStatus) CanSubmit() bool {
	return s.AwaitingProof() || s == StatusRejected
}

// MissionSource records how a mission came to exist.
type MissionSource string

const (
	SourcePipeline    MissionSource = "pipeline"
	SourceAI          MissionSource = "ai"
	SourceTemplate    MissionSource = "template"
	SourceManual      MissionSource = "manual"
	SourceInstitution MissionSource = "institution"
)

// Mission is one assigned, provable task instance.
type Mission struct {
	Base                   `bson:",inline"`
	UserID                 string        `bson:"userId" json:"userId"`
	Title                  string        `bson:"title" json:"title"`
	Task                   string        `bson:"task,omitempty" json:"task,omitempty"`
	Description            string        `bson:"description" json:"description"`
	VerificationText       string        `bson:"verificationText,omitempty" json:"verificationText,omitempty"`
	Crop                   string        `bson:"crop,omitempty" json:"crop,omitempty"`
	Category               string        `bson:"category" json:"category"`
	Difficulty             string        `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Points                 int           `bson:"points" json:"points"`
	PipelineStageID        int           `bson:"pipelineStageId,omitempty" json:"pipelineStageId,omitempty"`
	WeatherAdvisory        string        `bson:"weatherAdvisory,omitempty" json:"weatherAdvisory,omitempty"`
	Source                 MissionSource `bson:"source" json:"source"`
	AssignedBy             string        `bson:"assignedBy,omitempty" json:"assignedBy,omitempty"`
	Status                 MissionStatus `bson:"status" json:"status"`
	RequiresProof          bool          `bson:"requiresProof" json:"requiresProof"`
	ImageURL               string        `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ImageRef               string        `bson:"imageRef,omitempty" json:"-"`
	ImageResourceType      string        `bson:"imageResourceType,omitempty" json:"imageResourceType,omitempty"`
	Note                   string        `bson:"note,omitempty" json:"note,omitempty"`
	AIVerified             *bool         `bson:"aiVerified,omitempty" json:"aiVerified,omitempty"`
	VerificationReason     string        `bson:"verificationReason,omitempty" json:"verificationReason,omitempty"`
	VerificationConfidence float64       `bson:"verificationConfidence,omitempty" json:"verificationConfidence,omitempty"`
	VerificationError      string        `bson:"verificationError,omitempty" json:"verificationError,omitempty"`
	ReviewedBy             string        `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	PointsAwarded          bool          `bson:"pointsAwarded" json:"pointsAwarded"`
	CreatedAt              time.Time     `bson:"createdAt" json:"createdAt"`
	SubmittedAt            *time.Time    `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	VerifiedAt             *time.Time    `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	CompletedAt            *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// MissionDraft is an externally supplied mission payload (AI-generated or manually written).
type MissionDraft struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Task             string `json:"task,omitempty"`
	VerificationText string `json:"verificationText,omitempty"`
	Category         string `json:"category"`
	Difficulty       string `json:"difficulty,omitempty"`
	Points           int    `json:"points,omitempty"`
}

// MissionFilter narrows mission listings.
type MissionFilter struct {
	UserID          string
	Statuses        []MissionStatus
	Crop            string
	PipelineStageID int
	Limit           int
}
