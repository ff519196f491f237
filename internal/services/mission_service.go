package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/ai"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/imaging"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/storage"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/weather"
)

const institutionCategory = "Institute Special"

// MissionOptions bounds proof uploads.
type MissionOptions struct {
	ImageMaxDimension int
	ImageMaxBytes     int
}

// MissionDeps are the mission service's collaborators. Verifier, Generator and Weather may be
// nil: missions then wait for manual review, fall back to templates, and carry no advisory.
type MissionDeps struct {
	Store     store.Store
	Catalog   *catalog.Catalog
	Ledger    ILedgerService
	Fraud     IFraudService
	Objects   storage.ObjectStore
	Verifier  ai.Verifier
	Generator ai.Generator
	Weather   weather.Client
	Queue     TaskQueue
	Rewards   config.Rewards
	Options   MissionOptions
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// IMissionService drives a mission from assignment to point award.
type IMissionService interface {
	// Assign creates the next mission for one of the user's crops.
	Assign(ctx context.Context, userID, crop string, draft *models.MissionDraft) (*models.Mission, error)
	// AssignTo creates an institution-authored mission for another user.
	AssignTo(ctx context.Context, assignerID, targetUserID, crop string, draft models.MissionDraft) (*models.Mission, error)
	Get(ctx context.Context, missionID, userID string, role models.Role) (*models.Mission, error)
	List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error)
	Pending(ctx context.Context, limit int) ([]models.Mission, error)
	// Submit stores proof and queues verification. It does not wait for a verdict.
	Submit(ctx context.Context, userID, missionID string, image []byte, note string) (*models.Mission, error)
	// Verify asks the verifier about a SUBMITTED mission and applies its verdict.
	Verify(ctx context.Context, missionID string) (*models.Mission, error)
	Approve(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error)
	Reject(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error)
	Delete(ctx context.Context, missionID, userID string, role models.Role) error
	// RequeueStale re-enqueues verification for missions stuck in SUBMITTED.
	RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type missionService struct {
	MissionDeps
}

func NewMissionService(deps MissionDeps) IMissionService {
	if deps.Options.ImageMaxDimension <= 0 {
		deps.Options.ImageMaxDimension = 2048
	}
	return &missionService{MissionDeps: deps}
}

func (s *missionService) now() time.Time {
	return s.Clock.Now().UTC()
}

func (s *missionService) Assign(ctx context.Context, userID, crop string, draft *models.MissionDraft) (*models.Mission, error) {
	crop = strings.TrimSpace(crop)
	if crop == "" {
		return nil, apperr.Validation("crop is required")
	}
	user, err := s.Store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := user.FindCrop(crop)
	if i < 0 {
		return nil, apperr.NotFound("crop %q is not in your profile", crop)
	}
	entry := user.Crops[i]

	cond, trigger := s.conditions(ctx, user)

	m := &models.Mission{
		Base:          models.NewBase(),
		UserID:        userID,
		Crop:          entry.Name,
		Status:        models.StatusActive,
		RequiresProof: true,
		CreatedAt:     s.now(),
	}
	if stage, ok := s.Catalog.Stage(crop, entry.StageIndex()); ok {
		m.Title = stage.Title
		m.Task = stage.Task
		m.Description = stage.Description
		m.VerificationText = stage.Verification
		m.Category = stage.Category
		m.Difficulty = stage.Difficulty
		m.Points = stage.Points
		m.PipelineStageID = stage.ID
		m.Source = models.SourcePipeline
	} else {
		d, source, err := s.draftFor(ctx, user, entry, draft, cond, trigger)
		if err != nil {
			return nil, err
		}
		applyDraft(m, d)
		m.Source = source
	}
	if trigger != nil {
		m.WeatherAdvisory = trigger.Advisory()
	}
	s.fillPoints(m)

	if err := s.Store.Missions().Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	s.Logger.Info("Mission assigned",
		zap.String("missionID", m.ID),
		zap.String("userID", userID),
		zap.String("crop", m.Crop),
		zap.String("source", string(m.Source)),
		zap.Int("stage", m.PipelineStageID))
	return m, nil
}

// draftFor picks the mission content when the crop has no pipeline stage left: the caller's
// payload, then the generator, then a template.
func (s *missionService) draftFor(ctx context.Context, user *models.User, entry models.CropEntry, draft *models.MissionDraft, cond *weather.Conditions, trigger *weather.Trigger) (models.MissionDraft, models.MissionSource, error) {
	if draft != nil {
		if strings.TrimSpace(draft.Title) == "" {
			return models.MissionDraft{}, "", apperr.Validation("mission title is required")
		}
		return *draft, models.SourceManual, nil
	}
	if s.Generator != nil {
		req := ai.GenerateRequest{Crop: entry.Name, Stage: entry.Stage, Location: locationName(user)}
		if req.Stage == "" {
			req.Stage = fmt.Sprintf("stage %d", entry.StageIndex())
		}
		if cond != nil {
			req.Weather = cond.Summary()
		}
		if trigger != nil {
			req.Trigger = trigger.Advisory()
		}
		d, err := s.Generator.Generate(ctx, req)
		if err == nil {
			return *d, models.SourceAI, nil
		}
		s.Logger.Warn("Mission generation failed, using template", zap.String("userID", user.ID), zap.Error(err))
	}
	seed := int(s.now().Unix() / 86400)
	return ai.Template(entry.Name, seed), models.SourceTemplate, nil
}

func applyDraft(m *models.Mission, d models.MissionDraft) {
	m.Title = strings.TrimSpace(d.Title)
	m.Task = d.Task
	m.Description = d.Description
	m.VerificationText = d.VerificationText
	m.Category = d.Category
	m.Difficulty = d.Difficulty
	m.Points = d.Points
}

func (s *missionService) fillPoints(m *models.Mission) {
	if m.Category == "" {
		m.Category = s.Rewards.DefaultCategory
	}
	if m.Points <= 0 {
		m.Points = s.Rewards.PointsFor(m.Category)
	}
}

// conditions looks up the weather at the user's farm. Failures only cost the advisory.
func (s *missionService) conditions(ctx context.Context, user *models.User) (*weather.Conditions, *weather.Trigger) {
	if s.Weather == nil {
		return nil, nil
	}
	place, err := s.Weather.Resolve(ctx, user.FarmLocation, locationName(user))
	if err != nil {
		s.Logger.Warn("Weather location lookup failed", zap.String("userID", user.ID), zap.Error(err))
		return nil, nil
	}
	cond, err := s.Weather.Current(ctx, place)
	if err != nil {
		s.Logger.Warn("Weather lookup failed", zap.String("userID", user.ID), zap.Error(err))
		return nil, nil
	}
	return cond, weather.TriggerFor(*cond)
}

func locationName(u *models.User) string {
	var parts []string
	for _, p := range []string{u.Village, u.District, u.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *missionService) AssignTo(ctx context.Context, assignerID, targetUserID, crop string, draft models.MissionDraft) (*models.Mission, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, apperr.Validation("mission title is required")
	}
	user, err := s.Store.Users().Get(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if crop = strings.TrimSpace(crop); crop != "" {
		i := user.FindCrop(crop)
		if i < 0 {
			return nil, apperr.NotFound("crop %q is not in the farmer's profile", crop)
		}
		crop = user.Crops[i].Name
	}
	if draft.Category == "" {
		draft.Category = institutionCategory
	}
	m := &models.Mission{
		Base:          models.NewBase(),
		UserID:        targetUserID,
		Crop:          crop,
		Source:        models.SourceInstitution,
		AssignedBy:    assignerID,
		Status:        models.StatusAssigned,
		RequiresProof: true,
		CreatedAt:     s.now(),
	}
	applyDraft(m, draft)
	s.fillPoints(m)
	if err := s.Store.Missions().Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	s.Logger.Info("Mission assigned by institution",
		zap.String("missionID", m.ID),
		zap.String("userID", targetUserID),
		zap.String("assignedBy", assignerID))
	return m, nil
}

func (s *missionService) Get(ctx context.Context, missionID, userID string, role models.Role) (*models.Mission, error) {
	m, err := s.Store.Missions().Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID && role != models.RoleAdmin {
		return nil, apperr.Forbidden("you can only view your own missions")
	}
	return m, nil
}

func (s *missionService) List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error) {
	if len(f.Statuses) == 0 {
		f.Statuses = []models.MissionStatus{models.StatusAssigned, models.StatusActive, models.StatusSubmitted, models.StatusRejected}
	}
	return s.Store.Missions().List(ctx, f)
}

func (s *missionService) Pending(ctx context.Context, limit int) ([]models.Mission, error) {
	return s.Store.Missions().List(ctx, models.MissionFilter{
		Statuses: []models.MissionStatus{models.StatusSubmitted},
		Limit:    limit,
	})
}

func (s *missionService) Submit(ctx context.Context, userID, missionID string, image []byte, note string) (*models.Mission, error) {
	if err := s.Fraud.CheckSuspended(ctx, userID); err != nil {
		return nil, err
	}
	m, err := s.Store.Missions().Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, apperr.Forbidden("you can only submit proof for your own missions")
	}
	if !m.Status.CanSubmit() {
		return nil, apperr.InvalidState("mission already submitted or completed")
	}
	if len(image) == 0 {
		return nil, apperr.Validation("proof image is required")
	}
	if s.Options.ImageMaxBytes > 0 && len(image) > s.Options.ImageMaxBytes {
		return nil, apperr.Validation("proof image exceeds %d bytes", s.Options.ImageMaxBytes)
	}

	now := s.now()
	analysis, err := imaging.Analyze(image, now)
	if err != nil {
		return nil, apperr.Validation("proof image could not be read")
	}

	dup, err := s.Fraud.FindDuplicate(ctx, analysis.Hash)
	if err != nil {
		return nil, err
	}
	if dup != nil && !(dup.UserID == userID && dup.MissionID == m.ID) {
		reason := fmt.Sprintf("duplicate image, first submitted for mission %s", dup.MissionID)
		if _, ferr := s.Fraud.Flag(ctx, userID, reason, models.SeverityHigh); ferr != nil {
			s.Logger.Warn("Failed to flag duplicate image", zap.String("userID", userID), zap.Error(ferr))
		}
		return nil, apperr.Validation("this image has already been submitted")
	}

	user, err := s.Store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Fraud.CheckLocation(ctx, user, analysis.Metadata); err != nil {
		s.Logger.Warn("Location check failed", zap.String("userID", userID), zap.Error(err))
	}
	// Stock indicators only raise the image risk score; plain phone photos trip them too often to flag.
	if analysis.LikelyStock {
		s.Logger.Info("Proof image looks like a stock photo",
			zap.String("userID", userID),
			zap.String("missionID", m.ID),
			zap.Strings("indicators", analysis.StockIndicators))
	}

	normalized, err := imaging.Normalize(image, s.Options.ImageMaxDimension)
	if err != nil {
		return nil, apperr.Validation("proof image could not be processed")
	}
	upload, err := s.Objects.Upload(ctx, storage.ProofKey(m.Crop, userID), normalized, "image/jpeg")
	if err != nil {
		return nil, apperr.External("proof upload", err)
	}

	previous := m.ImageRef
	from := m.Status
	m.Status = models.StatusSubmitted
	m.ImageURL = upload.URL
	m.ImageRef = upload.Ref
	m.ImageResourceType = upload.ResourceType
	m.Note = strings.TrimSpace(note)
	m.SubmittedAt = &now
	m.AIVerified = nil
	m.VerificationReason = ""
	m.VerificationConfidence = 0
	m.VerificationError = ""
	if err := s.Store.Missions().Update(ctx, m, from); err != nil {
		s.deleteProof(ctx, upload.Ref)
		return nil, err
	}
	if previous != "" && previous != upload.Ref {
		s.deleteProof(ctx, previous)
	}

	if err := s.Fraud.TrackSubmission(ctx, userID, m.ID, analysis); err != nil {
		s.Logger.Warn("Failed to track submission", zap.String("missionID", m.ID), zap.Error(err))
	}
	if err := s.Queue.EnqueueVerification(ctx, m.ID); err != nil {
		// The sweeper picks up SUBMITTED missions that never got a verification task.
		s.Logger.Warn("Failed to enqueue verification", zap.String("missionID", m.ID), zap.Error(err))
	}
	s.Logger.Info("Proof submitted", zap.String("missionID", m.ID), zap.String("userID", userID), zap.Int("imageRisk", analysis.RiskScore))
	return m, nil
}

func (s *missionService) deleteProof(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.Objects.Delete(ctx, ref); err != nil {
		s.Logger.Warn("Failed to delete proof", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *missionService) Verify(ctx context.Context, missionID string) (*models.Mission, error) {
	m, err := s.Store.Missions().Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusSubmitted {
		return nil, apperr.InvalidState("mission is %s, not awaiting verification", m.Status)
	}
	if s.Verifier == nil {
		s.Logger.Info("No verifier configured, mission awaiting manual review", zap.String("missionID", m.ID))
		return m, nil
	}

	description := m.Description
	if m.VerificationText != "" {
		description += "\nRequired proof: " + m.VerificationText
	}
	verdict, err := s.Verifier.Verify(ctx, ai.VerifyRequest{ImageURL: m.ImageURL, Title: m.Title, Description: description})
	if err != nil {
		m.VerificationError = err.Error()
		if uerr := s.Store.Missions().Update(ctx, m, models.StatusSubmitted); uerr != nil {
			s.Logger.Warn("Failed to record verification error", zap.String("missionID", m.ID), zap.Error(uerr))
		}
		return nil, apperr.External("proof verification", err)
	}

	approved := verdict.Approved
	if approved {
		return s.complete(ctx, m.ID, func(m *models.Mission) error {
			m.AIVerified = &approved
			m.VerificationReason = verdict.Reason
			m.VerificationConfidence = verdict.Confidence
			m.VerificationError = ""
			return nil
		}, models.StatusSubmitted)
	}

	m.Status = models.StatusRejected
	m.AIVerified = &approved
	m.VerificationReason = verdict.Reason
	m.VerificationConfidence = verdict.Confidence
	m.VerificationError = ""
	if err := s.Store.Missions().Update(ctx, m, models.StatusSubmitted); err != nil {
		return nil, err
	}
	if err := s.Fraud.RecordRejection(ctx, m.UserID); err != nil {
		s.Logger.Warn("Failed to record rejection", zap.String("userID", m.UserID), zap.Error(err))
	}
	s.Logger.Info("Mission rejected by verifier", zap.String("missionID", m.ID), zap.String("reason", verdict.Reason))
	return m, nil
}

func (s *missionService) Approve(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Approved by admin"
	}
	return s.complete(ctx, missionID, func(m *models.Mission) error {
		// An admin rejection deletes the proof, leaving nothing to approve.
		if m.Status == models.StatusRejected && m.ImageRef == "" {
			return apperr.InvalidState("mission proof was removed on rejection; the farmer must resubmit")
		}
		m.ReviewedBy = adminID
		m.VerificationReason = reason
		m.VerificationError = ""
		return nil
	}, models.StatusSubmitted, models.StatusRejected)
}

// complete moves a mission to COMPLETED and awards its points in one transaction. A mission
// that is already completed yields ErrInvalidState and no award.
func (s *missionService) complete(ctx context.Context, missionID string, apply func(*models.Mission) error, from ...models.MissionStatus) (*models.Mission, error) {
	var done *models.Mission
	err := s.Store.WithTransaction(ctx, func(ctx context.Context) error {
		m, err := s.Store.Missions().Get(ctx, missionID)
		if err != nil {
			return err
		}
		if m.Status == models.StatusCompleted || m.PointsAwarded {
			return apperr.InvalidState("mission already completed")
		}
		if !statusAllowed(m.Status, from) {
			return apperr.InvalidState("mission is %s and cannot be approved", m.Status)
		}
		if err := apply(m); err != nil {
			return err
		}
		now := s.now()
		s.fillPoints(m)
		m.Status = models.StatusCompleted
		m.VerifiedAt = &now
		m.CompletedAt = &now
		_, err = s.Ledger.Credit(ctx, Award{
			UserID:      m.UserID,
			Points:      m.Points,
			Type:        models.ActivityMissionComplete,
			Description: "Completed mission: " + m.Title,
			Mission:     m,
			MissionFrom: from,
		})
		if err != nil {
			return err
		}
		done = m
		return nil
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	s.Logger.Info("Mission completed",
		zap.String("missionID", done.ID),
		zap.String("userID", done.UserID),
		zap.Int("points", done.Points))

	s.Ledger.EvaluateBadgesLater(ctx, done.UserID)
	s.unlockStage(ctx, done)
	return done, nil
}

func statusAllowed(s models.MissionStatus, from []models.MissionStatus) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

// unlockStage advances the user's crop pipeline past the mission's stage. It only moves a crop
// that is still at that stage, so a repeated approval cannot skip one.
func (s *missionService) unlockStage(ctx context.Context, m *models.Mission) {
	if m.Crop == "" || m.Source == models.SourceInstitution {
		return
	}
	user, err := s.Store.Users().Get(ctx, m.UserID)
	if err != nil {
		s.Logger.Warn("Stage unlock skipped", zap.String("missionID", m.ID), zap.Error(err))
		return
	}
	i := user.FindCrop(m.Crop)
	if i < 0 {
		return
	}
	from := m.PipelineStageID
	if from == 0 {
		from = user.Crops[i].StageIndex()
	}
	moved, err := s.Store.Users().AdvanceCropStage(ctx, m.UserID, user.Crops[i].Name, from, s.now())
	if err != nil {
		s.Logger.Warn("Stage unlock failed", zap.String("missionID", m.ID), zap.Error(err))
		return
	}
	if moved {
		s.Logger.Info("Pipeline stage unlocked", zap.String("userID", m.UserID), zap.String("crop", m.Crop), zap.Int("stage", from+1))
	}
}

func (s *missionService) Reject(ctx context.Context, missionID, adminID, reason string) (*models.Mission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}
	m, err := s.Store.Missions().Get(ctx, missionID)
	if err != nil {
		return nil, err
	}
	from := m.Status
	if from != models.StatusSubmitted && from != models.StatusRejected {
		if from == models.StatusCompleted {
			return nil, apperr.InvalidState("mission already completed")
		}
		return nil, apperr.InvalidState("mission is %s and has no proof to reject", from)
	}

	ref := m.ImageRef
	m.Status = models.StatusRejected
	m.ReviewedBy = adminID
	m.VerificationReason = reason
	m.VerificationError = ""
	m.ImageURL = ""
	m.ImageRef = ""
	m.ImageResourceType = ""
	if err := s.Store.Missions().Update(ctx, m, from); err != nil {
		return nil, err
	}
	// A verifier rejection was already counted.
	if from == models.StatusSubmitted {
		if err := s.Fraud.RecordRejection(ctx, m.UserID); err != nil {
			s.Logger.Warn("Failed to record rejection", zap.String("userID", m.UserID), zap.Error(err))
		}
	}
	s.deleteProof(ctx, ref)
	s.Logger.Info("Mission rejected", zap.String("missionID", m.ID), zap.String("reviewedBy", adminID))
	return m, nil
}

func (s *missionService) Delete(ctx context.Context, missionID, userID string, role models.Role) error {
	m, err := s.Store.Missions().Get(ctx, missionID)
	if err != nil {
		return err
	}
	if m.UserID != userID && role != models.RoleAdmin {
		return apperr.Forbidden("you can only delete your own missions")
	}
	if !m.Status.AwaitingProof() {
		return apperr.Forbidden("missions cannot be deleted once proof has been submitted")
	}
	err = s.Store.Missions().Delete(ctx, missionID, models.StatusAssigned, models.StatusActive)
	if errors.Is(err, apperr.ErrInvalidState) {
		return apperr.Forbidden("missions cannot be deleted once proof has been submitted")
	}
	if err != nil {
		return err
	}
	s.Logger.Info("Mission deleted", zap.String("missionID", missionID), zap.String("by", userID))
	return nil
}

func (s *missionService) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.Store.Missions().ListSubmittedBefore(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale submissions: %w", err)
	}
	queued := 0
	for _, m := range stale {
		if err := s.Queue.EnqueueVerification(ctx, m.ID); err != nil {
			s.Logger.Warn("Failed to requeue verification", zap.String("missionID", m.ID), zap.Error(err))
			continue
		}
		queued++
	}
	return queued, nil
}
