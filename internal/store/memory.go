package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

// MemoryStore keeps every collection in process memory behind one mutex. Transactions hold
// the mutex for their whole duration and roll back from a snapshot on error. It backs the
// test suites and STORE_DRIVER=memory.
type MemoryStore struct {
	mu sync.Mutex

	users     map[string]models.User
	userOrder []string
	missions  map[string]models.Mission
	activity  []models.ActivityLogEntry
	fraud     map[string]models.FraudRecord
	hashes    []models.ImageHashEntry

	now func() time.Time
}

type txKey struct{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[string]models.User{},
		missions: map[string]models.Mission{},
		fraud:    map[string]models.FraudRecord{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Users() UserRepository { return memUsers{s} }
func (s *MemoryStore) Missions() MissionRepository { return memMissions{s} }
func (s *MemoryStore) Activities() ActivityRepository { return memActivities{s} }
func (s *MemoryStore) Fraud() FraudRepository { return memFraud{s} }
func (s *MemoryStore) ImageHashes() ImageHashRepository { return memImageHashes{s} }
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// lock acquires the store mutex unless ctx belongs to a transaction on this store, which
// already holds it.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*MemoryStore); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memSnapshot struct {
	users     map[string]models.User
	userOrder []string
	missions  map[string]models.Mission
	activity  []models.ActivityLogEntry
	fraud     map[string]models.FraudRecord
	hashes    []models.ImageHashEntry
}

func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		users:     make(map[string]models.User, len(s.users)),
		userOrder: slices.Clone(s.userOrder),
		missions:  make(map[string]models.Mission, len(s.missions)),
		activity:  slices.Clone(s.activity),
		fraud:     make(map[string]models.FraudRecord, len(s.fraud)),
		hashes:    slices.Clone(s.hashes),
	}
	for k, v := range s.users {
		snap.users[k] = cloneUser(v)
	}
	for k, v := range s.missions {
		snap.missions[k] = v
	}
	for k, v := range s.fraud {
		snap.fraud[k] = cloneFraud(v)
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.userOrder = snap.userOrder
	s.missions = snap.missions
	s.activity = snap.activity
	s.fraud = snap.fraud
	s.hashes = snap.hashes
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*MemoryStore); owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func cloneUser(u models.User) models.User {
	u.Badges = slices.Clone(u.Badges)
	u.Crops = slices.Clone(u.Crops)
	return u
}

func cloneFraud(r models.FraudRecord) models.FraudRecord {
	r.Submissions = slices.Clone(r.Submissions)
	r.Flags = slices.Clone(r.Flags)
	return r
}

// --- users ---

type memUsers struct{ s *MemoryStore }

func (r memUsers) Get(ctx context.Context, id string) (*models.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	u = cloneUser(u)
	return &u, nil
}

func (r memUsers) Create(ctx context.Context, u *models.User) error {
	defer r.s.lock(ctx)()
	u.GenIDIfEmpty()
	if _, dup := r.s.users[u.ID]; dup {
		return apperr.Validation("user %s already exists", u.ID)
	}
	r.s.users[u.ID] = cloneUser(*u)
	r.s.userOrder = append(r.s.userOrder, u.ID)
	return nil
}

// mutate applies fn to a stored user under the lock.
func (r memUsers) mutate(ctx context.Context, id string, fn func(u *models.User)) error {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return apperr.NotFound("user %s not found", id)
	}
	u = cloneUser(u)
	fn(&u)
	u.UpdatedAt = r.s.now().UTC()
	r.s.users[id] = u
	return nil
}

func (r memUsers) AddPoints(ctx context.Context, id string, points int) error {
	return r.mutate(ctx, id, func(u *models.User) {
		u.EcoScore += points
		u.Credits += points
	})
}

func (r memUsers) SetStreak(ctx context.Context, id string, current, longest int, checkIn time.Time) error {
	return r.mutate(ctx, id, func(u *models.User) {
		u.CurrentStreakDays = current
		u.LongestStreakDays = longest
		u.LastCheckInDate = &checkIn
	})
}

func (r memUsers) AddBadges(ctx context.Context, id string, badgeIDs []string) error {
	return r.mutate(ctx, id, func(u *models.User) {
		for _, b := range badgeIDs {
			if !u.HasBadge(b) {
				u.Badges = append(u.Badges, b)
			}
		}
	})
}

func (r memUsers) AdvanceCropStage(ctx context.Context, id, crop string, from int, at time.Time) (bool, error) {
	moved := false
	err := r.mutate(ctx, id, func(u *models.User) {
		i := u.FindCrop(crop)
		if i < 0 {
			return
		}
		entry := &u.Crops[i]
		if entry.StageIndex() != max(from, 1) {
			return
		}
		entry.CurrentStageIndex = entry.StageIndex() + 1
		entry.LastMissionDate = &at
		moved = true
	})
	return moved, err
}

func statPtr(u *models.User, field StatField) *int {
	switch field {
	case StatCommunityPosts:
		return &u.Stats.CommunityPosts
	case StatCommunityReplies:
		return &u.Stats.CommunityReplies
	case StatLearningModules:
		return &u.Stats.LearningModulesCompleted
	case StatBestQuizScore:
		return &u.Stats.BestQuizScore
	}
	return nil
}

func (r memUsers) IncrementStat(ctx context.Context, id string, field StatField, delta int) error {
	if !field.Valid() {
		return apperr.Validation("unknown stat %q", field)
	}
	return r.mutate(ctx, id, func(u *models.User) {
		*statPtr(u, field) += delta
	})
}

func (r memUsers) RaiseStat(ctx context.Context, id string, field StatField, value int) error {
	if !field.Valid() {
		return apperr.Validation("unknown stat %q", field)
	}
	return r.mutate(ctx, id, func(u *models.User) {
		p := statPtr(u, field)
		*p = max(*p, value)
	})
}

func inScope(u *models.User, scope Scope, value string) bool {
	switch scope {
	case ScopeGlobal:
		return true
	case ScopeState:
		return u.State == value
	case ScopeDistrict:
		return u.District == value
	case ScopeSubDistrict:
		return u.SubDistrict == value
	case ScopeVillage:
		return u.Village == value
	case ScopeCrop:
		return u.FindCrop(value) >= 0
	}
	return false
}

func (r memUsers) TopByScore(ctx context.Context, scope Scope, value string, limit int) ([]models.User, error) {
	defer r.s.lock(ctx)()
	var out []models.User
	for _, id := range r.s.userOrder {
		u := r.s.users[id]
		if inScope(&u, scope, value) {
			out = append(out, cloneUser(u))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EcoScore > out[j].EcoScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- missions ---

type memMissions struct{ s *MemoryStore }

func (r memMissions) Create(ctx context.Context, m *models.Mission) error {
	defer r.s.lock(ctx)()
	m.GenIDIfEmpty()
	if _, dup := r.s.missions[m.ID]; dup {
		return apperr.Validation("mission %s already exists", m.ID)
	}
	r.s.missions[m.ID] = *m
	return nil
}

func (r memMissions) Get(ctx context.Context, id string) (*models.Mission, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.missions[id]
	if !ok {
		return nil, apperr.NotFound("mission %s not found", id)
	}
	return &m, nil
}

func (r memMissions) check(id string, from []models.MissionStatus) error {
	current, ok := r.s.missions[id]
	if !ok {
		return apperr.NotFound("mission %s not found", id)
	}
	if !statusIn(current.Status, from) {
		return apperr.InvalidState("mission %s is %s, expected one of %v", id, current.Status, from)
	}
	return nil
}

func (r memMissions) Update(ctx context.Context, m *models.Mission, from ...models.MissionStatus) error {
	defer r.s.lock(ctx)()
	if err := r.check(m.ID, from); err != nil {
		return err
	}
	r.s.missions[m.ID] = *m
	return nil
}

func (r memMissions) Delete(ctx context.Context, id string, from ...models.MissionStatus) error {
	defer r.s.lock(ctx)()
	if err := r.check(id, from); err != nil {
		return err
	}
	delete(r.s.missions, id)
	return nil
}

func (r memMissions) List(ctx context.Context, f models.MissionFilter) ([]models.Mission, error) {
	defer r.s.lock(ctx)()
	out := []models.Mission{}
	for _, m := range r.s.missions {
		if f.UserID != "" && m.UserID != f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !statusIn(m.Status, f.Statuses) {
			continue
		}
		if f.Crop != "" && models.CropKey(m.Crop) != models.CropKey(f.Crop) {
			continue
		}
		if f.PipelineStageID > 0 && m.PipelineStageID != f.PipelineStageID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r memMissions) ListSubmittedBefore(ctx context.Context, t time.Time, limit int) ([]models.Mission, error) {
	defer r.s.lock(ctx)()
	var out []models.Mission
	for _, m := range r.s.missions {
		if m.Status == models.StatusSubmitted && m.SubmittedAt != nil && m.SubmittedAt.Before(t) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(*out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memMissions) CountByStatus(ctx context.Context, userID string) (map[models.MissionStatus]int, error) {
	defer r.s.lock(ctx)()
	out := map[models.MissionStatus]int{}
	for _, m := range r.s.missions {
		if m.UserID == userID {
			out[m.Status]++
		}
	}
	return out, nil
}

func (r memMissions) CompletedByCategory(ctx context.Context, userID string) (map[string]int, error) {
	defer r.s.lock(ctx)()
	out := map[string]int{}
	for _, m := range r.s.missions {
		if m.UserID == userID && m.Status == models.StatusCompleted {
			out[m.Category]++
		}
	}
	return out, nil
}

// --- activity log ---

type memActivities struct{ s *MemoryStore }

func (r memActivities) Append(ctx context.Context, e *models.ActivityLogEntry) error {
	defer r.s.lock(ctx)()
	e.GenIDIfEmpty()
	r.s.activity = append(r.s.activity, *e)
	return nil
}

func (r memActivities) ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error) {
	defer r.s.lock(ctx)()
	out := []models.ActivityLogEntry{}
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		if r.s.activity[i].UserID != userID {
			continue
		}
		out = append(out, r.s.activity[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memActivities) SumPoints(ctx context.Context, userID string) (int, error) {
	defer r.s.lock(ctx)()
	total := 0
	for _, e := range r.s.activity {
		if e.UserID == userID {
			total += e.PointsAwarded
		}
	}
	return total, nil
}

// --- fraud tracking ---

type memFraud struct{ s *MemoryStore }

func (r memFraud) Get(ctx context.Context, userID string) (*models.FraudRecord, error) {
	defer r.s.lock(ctx)()
	rec, ok := r.s.fraud[userID]
	if !ok {
		return nil, apperr.NotFound("no fraud record for user %s", userID)
	}
	rec = cloneFraud(rec)
	return &rec, nil
}

func (r memFraud) upsert(ctx context.Context, userID string, fn func(rec *models.FraudRecord)) error {
	defer r.s.lock(ctx)()
	rec, ok := r.s.fraud[userID]
	if !ok {
		rec = models.FraudRecord{UserID: userID, CreatedAt: r.s.now().UTC()}
	}
	rec = cloneFraud(rec)
	fn(&rec)
	r.s.fraud[userID] = rec
	return nil
}

func (r memFraud) AppendSubmission(ctx context.Context, userID string, sub models.SubmissionRecord, keep int) error {
	return r.upsert(ctx, userID, func(rec *models.FraudRecord) {
		rec.Submissions = append(rec.Submissions, sub)
		if keep > 0 && len(rec.Submissions) > keep {
			rec.Submissions = rec.Submissions[len(rec.Submissions)-keep:]
		}
		rec.TotalSubmissions++
		ts := sub.Timestamp
		rec.LastSubmission = &ts
	})
}

func (r memFraud) AddFlag(ctx context.Context, userID string, flag models.FraudFlag) error {
	return r.upsert(ctx, userID, func(rec *models.FraudRecord) {
		rec.Flags = append(rec.Flags, flag)
	})
}

func (r memFraud) IncrementRejections(ctx context.Context, userID string) error {
	return r.upsert(ctx, userID, func(rec *models.FraudRecord) {
		rec.RejectionCount++
	})
}

func (r memFraud) SetScore(ctx context.Context, userID string, score int, at time.Time) error {
	return r.upsert(ctx, userID, func(rec *models.FraudRecord) {
		rec.FraudScore = score
		rec.LastScoreUpdate = &at
	})
}

func (r memFraud) SetSuspendedUntil(ctx context.Context, userID string, until time.Time) error {
	return r.upsert(ctx, userID, func(rec *models.FraudRecord) {
		rec.SuspendedUntil = &until
	})
}

// --- image hashes ---

type memImageHashes struct{ s *MemoryStore }

func (r memImageHashes) FindByHash(ctx context.Context, hash string) (*models.ImageHashEntry, error) {
	defer r.s.lock(ctx)()
	for _, e := range r.s.hashes {
		if e.Hash == hash {
			return &e, nil
		}
	}
	return nil, apperr.NotFound("no image with hash %s", hash)
}

func (r memImageHashes) Add(ctx context.Context, e *models.ImageHashEntry) error {
	defer r.s.lock(ctx)()
	e.GenIDIfEmpty()
	r.s.hashes = append(r.s.hashes, *e)
	return nil
}
