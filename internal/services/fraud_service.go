package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/geo"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/imaging"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// Sub-score weights and windows.
const (
	rapidWindow        = time.Hour
	rapidPerSubmission = 5
	rapidCap           = 30
	rejectionWeight    = 25
	metadataWeight     = 20
	flagWindow         = 7 * 24 * time.Hour
	flagPerFlag        = 10
	flagCap            = 25
	maxFraudScore      = 100
	flagsToSuspend     = 3
)

// FraudOptions tunes the scorer.
type FraudOptions struct {
	SubmissionHistory int
	SuspensionDays    int
	MaxFarmDistanceKm float64
}

// RiskLevel buckets a fraud score for reviewers.
func RiskLevel(score int) string {
	switch {
	case score > 70:
		return "high"
	case score > 40:
		return "medium"
	}
	return "low"
}

// FraudScore computes the bounded risk score of rec as of now.
func FraudScore(rec *models.FraudRecord, now time.Time) int {
	if rec == nil || len(rec.Submissions) == 0 {
		return 0
	}
	score := 0.0

	rapid := 0
	for _, sub := range rec.Submissions {
		if sub.Timestamp.After(now.Add(-rapidWindow)) {
			rapid++
		}
	}
	score += math.Min(float64(rapid*rapidPerSubmission), rapidCap)

	total := max(rec.TotalSubmissions, len(rec.Submissions))
	score += math.Min(float64(rec.RejectionCount)/float64(total), 1) * rejectionWeight

	missing := 0
	for _, sub := range rec.Submissions {
		if sub.MissingMetadata() {
			missing++
		}
	}
	score += float64(missing) / float64(len(rec.Submissions)) * metadataWeight

	recentFlags := 0
	for _, f := range rec.Flags {
		if f.Timestamp.After(now.Add(-flagWindow)) {
			recentFlags++
		}
	}
	score += math.Min(float64(recentFlags*flagPerFlag), flagCap)

	return int(math.Round(math.Min(score, maxFraudScore)))
}

// FraudReport is the reviewer's view of one user.
type FraudReport struct {
	UserID           string             `json:"userId"`
	FraudScore       int                `json:"fraudScore"`
	RiskLevel        string             `json:"riskLevel"`
	Flags            []models.FraudFlag `json:"flags"`
	FlagCount        int                `json:"flagCount"`
	IsSuspended      bool               `json:"isSuspended"`
	SuspendedUntil   *time.Time         `json:"suspendedUntil,omitempty"`
	TotalSubmissions int                `json:"totalSubmissions"`
	RejectionCount   int                `json:"rejectionCount"`
	LastSubmission   *time.Time         `json:"lastSubmission,omitempty"`
}

// LocationCheck is the outcome of comparing photo GPS against the registered farm.
type LocationCheck struct {
	Checked    bool    `json:"checked"`
	DistanceKm float64 `json:"distanceKm"`
	TooFar     bool    `json:"tooFar"`
}

type IFraudService interface {
	// CheckSuspended returns an apperr SuspendedError while the user is suspended.
	CheckSuspended(ctx context.Context, userID string) error
	// FindDuplicate returns an earlier upload of the same image, or nil.
	FindDuplicate(ctx context.Context, hash string) (*models.ImageHashEntry, error)
	// CheckLocation flags photos taken too far from the user's farm.
	CheckLocation(ctx context.Context, user *models.User, meta imaging.Metadata) (*LocationCheck, error)
	// TrackSubmission records a submission in the history and the global hash index, then rescores.
	TrackSubmission(ctx context.Context, userID, missionID string, a *imaging.Analysis) error
	// Flag records a flag and suspends on a high-severity flag or an accumulation of flags.
	Flag(ctx context.Context, userID, reason string, severity models.Severity) (*FraudReport, error)
	RecordRejection(ctx context.Context, userID string) error
	Recalculate(ctx context.Context, userID string) (int, error)
	Report(ctx context.Context, userID string) (*FraudReport, error)
}

type fraudService struct {
	store  store.Store
	opts   FraudOptions
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewFraudService returns the scorer. Fraud writes are not transactional; each is a single
// atomic upsert.
func NewFraudService(st store.Store, opts FraudOptions, clock clockwork.Clock, logger *zap.Logger) IFraudService {
	if opts.SubmissionHistory <= 0 {
		opts.SubmissionHistory = 50
	}
	if opts.SuspensionDays <= 0 {
		opts.SuspensionDays = 7
	}
	if opts.MaxFarmDistanceKm <= 0 {
		opts.MaxFarmDistanceKm = 5
	}
	return &fraudService{store: st, opts: opts, clock: clock, logger: logger}
}

func (s *fraudService) record(ctx context.Context, userID string) (*models.FraudRecord, error) {
	rec, err := s.store.Fraud().Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *fraudService) CheckSuspended(ctx context.Context, userID string) error {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read fraud record: %w", err)
	}
	if rec.SuspendedAt(s.clock.Now()) {
		return apperr.Suspended(*rec.SuspendedUntil)
	}
	return nil
}

func (s *fraudService) FindDuplicate(ctx context.Context, hash string) (*models.ImageHashEntry, error) {
	entry, err := s.store.ImageHashes().FindByHash(ctx, hash)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image hashes: %w", err)
	}
	return entry, nil
}

func (s *fraudService) CheckLocation(ctx context.Context, user *models.User, meta imaging.Metadata) (*LocationCheck, error) {
	if user.FarmLocation == nil || meta.GPS == nil {
		return &LocationCheck{}, nil
	}
	d := geo.DistanceKm(*user.FarmLocation, *meta.GPS)
	check := &LocationCheck{Checked: true, DistanceKm: d, TooFar: d > s.opts.MaxFarmDistanceKm}
	if check.TooFar {
		reason := fmt.Sprintf("photo taken %.1f km from registered farm", d)
		if _, err := s.Flag(ctx, user.ID, reason, models.SeverityHigh); err != nil {
			return check, err
		}
	}
	return check, nil
}

func (s *fraudService) TrackSubmission(ctx context.Context, userID, missionID string, a *imaging.Analysis) error {
	now := s.clock.Now().UTC()
	rec := models.SubmissionRecord{
		MissionID:    missionID,
		ImageHash:    a.Hash,
		Camera:       a.Metadata.Camera(),
		HasGPS:       a.Metadata.GPS != nil,
		HasTimestamp: a.Metadata.Timestamp != nil,
		Timestamp:    now,
	}
	if err := s.store.Fraud().AppendSubmission(ctx, userID, rec, s.opts.SubmissionHistory); err != nil {
		return fmt.Errorf("failed to track submission: %w", err)
	}
	err := s.store.ImageHashes().Add(ctx, &models.ImageHashEntry{
		Base:       models.NewBase(),
		Hash:       a.Hash,
		UserID:     userID,
		MissionID:  missionID,
		UploadedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to index image hash: %w", err)
	}
	_, err = s.Recalculate(ctx, userID)
	return err
}

func (s *fraudService) Flag(ctx context.Context, userID, reason string, severity models.Severity) (*FraudReport, error) {
	if reason == "" {
		return nil, apperr.Validation("flag reason is required")
	}
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !severity.Valid() {
		return nil, apperr.Validation("invalid severity %q", severity)
	}
	now := s.clock.Now().UTC()
	if err := s.store.Fraud().AddFlag(ctx, userID, models.FraudFlag{Reason: reason, Severity: severity, Timestamp: now}); err != nil {
		return nil, fmt.Errorf("failed to flag user: %w", err)
	}
	s.logger.Warn("User flagged", zap.String("userID", userID), zap.String("reason", reason), zap.String("severity", string(severity)))

	rec, err := s.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	if severity == models.SeverityHigh || len(rec.Flags) >= flagsToSuspend {
		until := now.AddDate(0, 0, s.opts.SuspensionDays)
		if err := s.store.Fraud().SetSuspendedUntil(ctx, userID, until); err != nil {
			return nil, fmt.Errorf("failed to suspend user: %w", err)
		}
		s.logger.Warn("User suspended", zap.String("userID", userID), zap.Time("until", until))
	}
	if _, err := s.Recalculate(ctx, userID); err != nil {
		return nil, err
	}
	return s.Report(ctx, userID)
}

func (s *fraudService) RecordRejection(ctx context.Context, userID string) error {
	if err := s.store.Fraud().IncrementRejections(ctx, userID); err != nil {
		return fmt.Errorf("failed to count rejection: %w", err)
	}
	_, err := s.Recalculate(ctx, userID)
	return err
}

func (s *fraudService) Recalculate(ctx context.Context, userID string) (int, error) {
	rec, err := s.record(ctx, userID)
	if err != nil || rec == nil {
		return 0, err
	}
	now := s.clock.Now().UTC()
	score := FraudScore(rec, now)
	if err := s.store.Fraud().SetScore(ctx, userID, score, now); err != nil {
		return 0, fmt.Errorf("failed to store fraud score: %w", err)
	}
	return score, nil
}

func (s *fraudService) Report(ctx context.Context, userID string) (*FraudReport, error) {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	report := &FraudReport{UserID: userID, RiskLevel: RiskLevel(0), Flags: []models.FraudFlag{}}
	if rec == nil {
		return report, nil
	}
	report.FraudScore = rec.FraudScore
	report.RiskLevel = RiskLevel(rec.FraudScore)
	if rec.Flags != nil {
		report.Flags = rec.Flags
	}
	report.FlagCount = len(rec.Flags)
	report.IsSuspended = rec.SuspendedAt(s.clock.Now())
	report.SuspendedUntil = rec.SuspendedUntil
	report.TotalSubmissions = rec.TotalSubmissions
	report.RejectionCount = rec.RejectionCount
	report.LastSubmission = rec.LastSubmission
	return report, nil
}
