// Package tasks runs the engine's background work on asynq: automatic proof verification and
// badge evaluation, plus a gocron sweeper that re-enqueues verifications left behind.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

// Task types.
const (
	TypeMissionVerify = "mission:verify"
	TypeBadgeEvaluate = "badge:evaluate"
)

// Queue names and their priorities on the worker.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// RedisOpt derives the asynq connection from an existing go-redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueOptions configures verification tasks.
type QueueOptions struct {
	VerifyMaxRetry int
	VerifyTimeout  time.Duration
	// VerifyUnique is how long a pending verification blocks another for the same mission.
	VerifyUnique time.Duration
}

// Queue implements services.TaskQueue on asynq.
type Queue struct {
	client Enqueuer
	opts   QueueOptions
	logger *zap.Logger
}

var _ services.TaskQueue = (*Queue)(nil)

func NewQueue(client Enqueuer, opts QueueOptions, logger *zap.Logger) *Queue {
	if opts.VerifyMaxRetry <= 0 {
		opts.VerifyMaxRetry = 5
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = time.Minute
	}
	if opts.VerifyUnique <= 0 {
		opts.VerifyUnique = time.Hour
	}
	return &Queue{client: client, opts: opts, logger: logger}
}

type MissionVerifyPayload struct {
	MissionID string `json:"mission_id"`
}

type BadgeEvaluatePayload struct {
	UserID string `json:"user_id"`
}

// EnqueueVerification schedules automatic verification. A verification already pending for the
// mission absorbs the request.
func (q *Queue) EnqueueVerification(ctx context.Context, missionID string) error {
	payload, err := json.Marshal(MissionVerifyPayload{MissionID: missionID})
	if err != nil {
		return fmt.Errorf("failed to encode verify payload: %w", err)
	}
	task := asynq.NewTask(TypeMissionVerify, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(q.opts.VerifyMaxRetry),
		asynq.Timeout(q.opts.VerifyTimeout),
		asynq.Unique(q.opts.VerifyUnique),
	)
	info, err := q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		q.logger.Debug("Verification already pending", zap.String("missionID", missionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue verification: %w", err)
	}
	q.logger.Debug("Verification enqueued", zap.String("missionID", missionID), zap.String("taskID", info.ID))
	return nil
}

func (q *Queue) EnqueueBadgeEvaluation(ctx context.Context, userID string) error {
	payload, err := json.Marshal(BadgeEvaluatePayload{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to encode badge payload: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeBadgeEvaluate, payload, asynq.Queue(QueueDefault))); err != nil {
		return fmt.Errorf("failed to enqueue badge evaluation: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	missions services.IMissionService
	badges   services.IBadgeService
	logger   *zap.Logger
}

func NewTaskProcessor(missions services.IMissionService, badges services.IBadgeService, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{missions: missions, badges: badges, logger: logger}
}

// Mux routes every task type to its handler.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMissionVerify, p.HandleMissionVerifyTask)
	mux.HandleFunc(TypeBadgeEvaluate, p.HandleBadgeEvaluateTask)
	return mux
}

// SetupServer configures an asynq server. The caller starts it with srv.Start(processor.Mux())
// and stops it with Shutdown.
func SetupServer(opt asynq.RedisClientOpt, concurrency int, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("Task failed",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Int("retried", retried),
				zap.Int("maxRetry", maxRetry),
				zap.Error(err))
		}),
	})
}

// --- Task Handlers ---

// HandleMissionVerifyTask runs automatic verification for one mission.
func (p *TaskProcessor) HandleMissionVerifyTask(ctx context.Context, t *asynq.Task) error {
	var payload MissionVerifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal verify payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.MissionID == "" {
		return fmt.Errorf("verify payload has no mission id: %w", asynq.SkipRetry)
	}

	m, err := p.missions.Verify(ctx, payload.MissionID)
	if err != nil {
		return p.outcome("verify", zap.String("missionID", payload.MissionID), err)
	}
	p.logger.Info("Mission verified", zap.String("missionID", m.ID), zap.String("status", string(m.Status)))
	return nil
}

// HandleBadgeEvaluateTask grants any badges a user now qualifies for.
func (p *TaskProcessor) HandleBadgeEvaluateTask(ctx context.Context, t *asynq.Task) error {
	var payload BadgeEvaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal badge payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" {
		return fmt.Errorf("badge payload has no user id: %w", asynq.SkipRetry)
	}

	granted, err := p.badges.Evaluate(ctx, payload.UserID)
	if err != nil {
		return p.outcome("badge evaluation", zap.String("userID", payload.UserID), err)
	}
	for _, b := range granted {
		p.logger.Info("Badge granted", zap.String("userID", payload.UserID), zap.String("badge", b.ID))
	}
	return nil
}

// outcome maps service errors onto asynq retry semantics.
func (p *TaskProcessor) outcome(op string, subject zap.Field, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidState):
		p.logger.Info("Task no longer applies", zap.String("op", op), subject, zap.Error(err))
		return nil
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrForbidden):
		p.logger.Warn("Task dropped", zap.String("op", op), subject, zap.Error(err))
		return fmt.Errorf("%s: %v: %w", op, err, asynq.SkipRetry)
	}
	return err
}
