package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/db"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore returns a Store backed by database. Transactions require a replica set.
func NewMongoStore(client *mongo.Client, database *mongo.Database) Store {
	return &mongoStore{client: client, db: database}
}

func (s *mongoStore) Users() UserRepository {
	return &mongoUsers{coll: s.db.Collection(db.UsersCollection)}
}

func (s *mongoStore) Missions() MissionRepository {
	return &mongoMissions{coll: s.db.Collection(db.MissionsCollection)}
}

func (s *mongoStore) Activities() ActivityRepository {
	return &mongoActivities{coll: s.db.Collection(db.ActivityCollection)}
}

func (s *mongoStore) Fraud() FraudRepository {
	return &mongoFraud{coll: s.db.Collection(db.FraudCollection)}
}

func (s *mongoStore) ImageHashes() ImageHashRepository {
	return &mongoImageHashes{coll: s.db.Collection(db.ImageHashesCollection)}
}

func (s *mongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	// The callback may run more than once on transient errors.
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// --- users ---

type mongoUsers struct {
	coll *mongo.Collection
}

func (r *mongoUsers) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, notFoundOr(err, "user %s not found", id)
	}
	return &user, nil
}

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	u.GenIDIfEmpty()
	// $addToSet and positional updates need real arrays, not nulls.
	if u.Badges == nil {
		u.Badges = []string{}
	}
	if u.Crops == nil {
		u.Crops = []models.CropEntry{}
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("error inserting user %s: %w", u.ID, err)
	}
	return nil
}

func (r *mongoUsers) update(ctx context.Context, id string, update bson.M) error {
	result, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("error updating user %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

func (r *mongoUsers) AddPoints(ctx context.Context, id string, points int) error {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"ecoScore": points, "credits": points},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoUsers) SetStreak(ctx context.Context, id string, current, longest int, checkIn time.Time) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"currentStreakDays": current,
		"longestStreakDays": longest,
		"lastCheckInDate":   checkIn,
		"updatedAt":         time.Now().UTC(),
	}})
}

func (r *mongoUsers) AddBadges(ctx context.Context, id string, badgeIDs []string) error {
	if len(badgeIDs) == 0 {
		return nil
	}
	return r.update(ctx, id, bson.M{
		"$addToSet": bson.M{"badges": bson.M{"$each": badgeIDs}},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoUsers) AdvanceCropStage(ctx context.Context, id, crop string, from int, at time.Time) (bool, error) {
	elem := bson.M{"name": crop}
	if from <= 1 {
		from = 1
		elem["$or"] = bson.A{
			bson.M{"currentStageIndex": bson.M{"$in": bson.A{0, 1}}},
			bson.M{"currentStageIndex": bson.M{"$exists": false}},
		}
	} else {
		elem["currentStageIndex"] = from
	}
	filter := bson.M{"_id": id, "crops": bson.M{"$elemMatch": elem}}
	update := bson.M{"$set": bson.M{
		"crops.$.currentStageIndex": from + 1,
		"crops.$.lastMissionDate":   at,
		"updatedAt":                 at,
	}}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("error advancing %s stage for user %s: %w", crop, id, err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoUsers) IncrementStat(ctx context.Context, id string, field StatField, delta int) error {
	return r.update(ctx, id, bson.M{
		"$inc": bson.M{"stats." + string(field): delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoUsers) RaiseStat(ctx context.Context, id string, field StatField, value int) error {
	return r.update(ctx, id, bson.M{"$max": bson.M{"stats." + string(field): value}})
}

func (r *mongoUsers) TopByScore(ctx context.Context, scope Scope, value string, limit int) ([]models.User, error) {
	filter := bson.M{}
	switch scope {
	case ScopeGlobal:
	case ScopeCrop:
		filter["crops.name"] = primitiveRegexExact(value)
	default:
		filter[string(scope)] = value
	}
	opts := options.Find().SetSort(bson.D{{Key: "ecoScore", Value: -1}}).SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying leaderboard: %w", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding leaderboard: %w", err)
	}
	return users, nil
}

// primitiveRegexExact matches value exactly, ignoring case.
func primitiveRegexExact(value string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(value) + "$", "$options": "i"}
}

// --- missions ---

type mongoMissions struct {
	coll *mongo.Collection
}

func (r *mongoMissions) Create(ctx context.Context, m *models.Mission) error {
	m.GenIDIfEmpty()
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("error inserting mission: %w", err)
	}
	return nil
}

func (r *mongoMissions) Get(ctx context.Context, id string) (*models.Mission, error) {
	var m models.Mission
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFoundOr(err, "mission %s not found", id)
	}
	return &m, nil
}

func statusFilter(id string, from []models.MissionStatus) bson.M {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	return filter
}

// conflict explains a zero-match conditional write.
func (r *mongoMissions) conflict(ctx context.Context, id string, from []models.MissionStatus) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidState("mission %s is %s, expected one of %v", id, current.Status, from)
}

func (r *mongoMissions) Update(ctx context.Context, m *models.Mission, from ...models.MissionStatus) error {
	result, err := r.coll.ReplaceOne(ctx, statusFilter(m.ID, from), m)
	if err != nil {
		return fmt.Errorf("error updating mission %s: %w", m.ID, err)
	}
	if result.MatchedCount == 0 {
		return r.conflict(ctx, m.ID, from)
	}
	return nil
}

func (r *mongoMissions) Delete(ctx context.Context, id string, from ...models.MissionStatus) error {
	result, err := r.coll.DeleteOne(ctx, statusFilter(id, from))
	if err != nil {
		return fmt.Errorf("error deleting mission %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return r.conflict(ctx, id, from)
	}
	return nil
}

func (r *mongoMissions) List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Crop != "" {
		filter["crop"] = primitiveRegexExact(f.Crop)
	}
	if f.PipelineStageID > 0 {
		filter["pipelineStageId"] = f.PipelineStageID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *mongoMissions) ListSubmittedBefore(ctx context.Context, t time.Time, limit int) ([]models.Mission, error) {
	filter := bson.M{"status": models.StatusSubmitted, "submittedAt": bson.M{"$lt": t}}
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoMissions) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Mission, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing missions: %w", err)
	}
	missions := []models.Mission{}
	if err := cursor.All(ctx, &missions); err != nil {
		return nil, fmt.Errorf("error decoding missions: %w", err)
	}
	return missions, nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int    `bson:"count"`
}

func (r *mongoMissions) group(ctx context.Context, match bson.M, field string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error aggregating missions by %s: %w", field, err)
	}
	var rows []groupCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error decoding mission counts: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] += row.Count
	}
	return out, nil
}

func (r *mongoMissions) CountByStatus(ctx context.Context, userID string) (map[models.MissionStatus]int, error) {
	rows, err := r.group(ctx, bson.M{"userId": userID}, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[models.MissionStatus]int, len(rows))
	for k, v := range rows {
		out[models.MissionStatus(k)] = v
	}
	return out, nil
}

func (r *mongoMissions) CompletedByCategory(ctx context.Context, userID string) (map[string]int, error) {
	return r.group(ctx, bson.M{"userId": userID, "status": models.StatusCompleted}, "category")
}

// --- activity log ---

type mongoActivities struct {
	coll *mongo.Collection
}

func (r *mongoActivities) Append(ctx context.Context, e *models.ActivityLogEntry) error {
	e.GenIDIfEmpty()
	if _, err := r.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("error appending activity for user %s: %w", e.UserID, err)
	}
	return nil
}

func (r *mongoActivities) ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing activity for user %s: %w", userID, err)
	}
	entries := []models.ActivityLogEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding activity: %w", err)
	}
	return entries, nil
}

func (r *mongoActivities) SumPoints(ctx context.Context, userID string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$pointsAwarded"}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error summing points for user %s: %w", userID, err)
	}
	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("error decoding point sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// --- fraud tracking ---

type mongoFraud struct {
	coll *mongo.Collection
}

func (r *mongoFraud) Get(ctx context.Context, userID string) (*models.FraudRecord, error) {
	var rec models.FraudRecord
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec); err != nil {
		return nil, notFoundOr(err, "no fraud record for user %s", userID)
	}
	return &rec, nil
}

// upsert applies update, creating the record on first use. Concurrent first writes race on
// _id; the loser retries against the now existing document.
func (r *mongoFraud) upsert(ctx context.Context, userID string, update bson.M) error {
	update["$setOnInsert"] = bson.M{"createdAt": time.Now().UTC()}
	op := func() error {
		_, err := r.coll.UpdateByID(ctx, userID, update, options.Update().SetUpsert(true))
		return err
	}
	if err := db.Try(ctx, op); err != nil {
		return fmt.Errorf("error updating fraud record for user %s: %w", userID, err)
	}
	return nil
}

func (r *mongoFraud) AppendSubmission(ctx context.Context, userID string, rec models.SubmissionRecord, keep int) error {
	return r.upsert(ctx, userID, bson.M{
		"$push": bson.M{"submissions": bson.M{"$each": bson.A{rec}, "$slice": -keep}},
		"$inc":  bson.M{"totalSubmissions": 1},
		"$set":  bson.M{"lastSubmission": rec.Timestamp},
	})
}

func (r *mongoFraud) AddFlag(ctx context.Context, userID string, flag models.FraudFlag) error {
	return r.upsert(ctx, userID, bson.M{"$push": bson.M{"flags": flag}})
}

func (r *mongoFraud) IncrementRejections(ctx context.Context, userID string) error {
	return r.upsert(ctx, userID, bson.M{"$inc": bson.M{"rejectionCount": 1}})
}

func (r *mongoFraud) SetScore(ctx context.Context, userID string, score int, at time.Time) error {
	return r.upsert(ctx, userID, bson.M{"$set": bson.M{"fraudScore": score, "lastScoreUpdate": at}})
}

func (r *mongoFraud) SetSuspendedUntil(ctx context.Context, userID string, until time.Time) error {
	return r.upsert(ctx, userID, bson.M{"$set": bson.M{"suspendedUntil": until}})
}

// --- image hashes ---

type mongoImageHashes struct {
	coll *mongo.Collection
}

func (r *mongoImageHashes) FindByHash(ctx context.Context, hash string) (*models.ImageHashEntry, error) {
	var e models.ImageHashEntry
	opts := options.FindOne().SetSort(bson.D{{Key: "uploadedAt", Value: 1}})
	if err := r.coll.FindOne(ctx, bson.M{"hash": hash}, opts).Decode(&e); err != nil {
		return nil, notFoundOr(err, "no image with hash %s", hash)
	}
	return &e, nil
}

func (r *mongoImageHashes) Add(ctx context.Context, e *models.ImageHashEntry) error {
	e.GenIDIfEmpty()
	if _, err := r.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("error recording image hash: %w", err)
	}
	return nil
}
