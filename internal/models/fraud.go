package models

import "time"

// Severity of a fraud flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// SubmissionRecord is one entry in a user's bounded submission history.
type SubmissionRecord struct {
	MissionID    string    `bson:"missionId" json:"missionId"`
	ImageHash    string    `bson:"imageHash" json:"imageHash"`
	Camera       string    `bson:"camera" json:"camera"`
	HasGPS       bool      `bson:"hasGPS" json:"hasGPS"`
	HasTimestamp bool      `bson:"hasTimestamp" json:"hasTimestamp"`
	Timestamp    time.Time `bson:"timestamp" json:"timestamp"`
}

// MissingMetadata is true when no capture device was recorded.
func (s SubmissionRecord) MissingMetadata() bool {
	return s.Camera == "" || s.Camera == "unknown"
}

type FraudFlag struct {
	Reason    string    `bson:"reason" json:"reason"`
	Severity  Severity  `bson:"severity" json:"severity"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// FraudRecord is the per-user trust document. Never deleted.
type FraudRecord struct {
	UserID           string             `bson:"_id" json:"userId"`
	Submissions      []SubmissionRecord `bson:"submissions" json:"submissions"`
	TotalSubmissions int                `bson:"totalSubmissions" json:"totalSubmissions"`
	Flags            []FraudFlag        `bson:"flags" json:"flags"`
	FraudScore       int                `bson:"fraudScore" json:"fraudScore"`
	LastScoreUpdate  *time.Time         `bson:"lastScoreUpdate,omitempty" json:"lastScoreUpdate,omitempty"`
	RejectionCount   int                `bson:"rejectionCount" json:"rejectionCount"`
	SuspendedUntil   *time.Time         `bson:"suspendedUntil,omitempty" json:"suspendedUntil,omitempty"`
	LastSubmission   *time.Time         `bson:"lastSubmission,omitempty" json:"lastSubmission,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}

// SuspendedAt reports whether the record is suspended at t.
func (r *FraudRecord) SuspendedAt(t time.Time) bool {
	return r != nil && r.SuspendedUntil != nil && t.Before(*r.SuspendedUntil)
}

// ImageHashEntry is one row of the global duplicate-image index.
type ImageHashEntry struct {
	Base       `bson:",inline"`
	Hash       string    `bson:"hash" json:"hash"`
	UserID     string    `bson:"userId" json:"userId"`
	MissionID  string    `bson:"missionId" json:"missionId"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}
