package services_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/ai"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/storage"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/weather"
)

// --- Mocks ---

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, req ai.VerifyRequest) (*ai.Verdict, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.Verdict), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (*models.MissionDraft, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MissionDraft), args.Error(1)
}

type MockWeather struct {
	mock.Mock
}

func (m *MockWeather) Resolve(ctx context.Context, point *models.GeoPoint, name string) (weather.Place, error) {
	args := m.Called(ctx, point, name)
	return args.Get(0).(weather.Place), args.Error(1)
}

func (m *MockWeather) Current(ctx context.Context, place weather.Place) (*weather.Conditions, error) {
	args := m.Called(ctx, place)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*weather.Conditions), args.Error(1)
}

// recordingQueue remembers enqueued work. When badges is set, badge evaluation runs inline.
type recordingQueue struct {
	mu            sync.Mutex
	verifications []string
	evaluations   []string
	badges        services.IBadgeService
}

func (q *recordingQueue) EnqueueVerification(ctx context.Context, missionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.verifications = append(q.verifications, missionID)
	return nil
}

func (q *recordingQueue) EnqueueBadgeEvaluation(ctx context.Context, userID string) error {
	q.mu.Lock()
	q.evaluations = append(q.evaluations, userID)
	q.mu.Unlock()
	if q.badges != nil {
		_, err := q.badges.Evaluate(ctx, userID)
		return err
	}
	return nil
}

func (q *recordingQueue) Verifications() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.verifications...)
}

func (q *recordingQueue) Evaluations() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.evaluations...)
}

// --- Fixtures ---

var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *store.MemoryStore
	clock    *clockwork.FakeClock
	queue    *recordingQueue
	objects  *storage.MemoryStorage
	catalog  *catalog.Catalog
	rewards  config.Rewards
	verifier *MockVerifier

	ledger   services.ILedgerService
	badges   services.IBadgeService
	fraud    services.IFraudService
	streaks  services.IStreakService
	missions services.IMissionService
}

type envOption func(*services.MissionDeps)

func withoutVerifier() envOption {
	return func(d *services.MissionDeps) { d.Verifier = nil }
}

func withGenerator(g ai.Generator) envOption {
	return func(d *services.MissionDeps) { d.Generator = g }
}

func withWeather(w weather.Client) envOption {
	return func(d *services.MissionDeps) { d.Weather = w }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	logger := zap.NewNop()
	e := &testEnv{
		store:    store.NewMemoryStore(),
		clock:    clockwork.NewFakeClockAt(testStart),
		queue:    &recordingQueue{},
		objects:  storage.NewMemoryStorage(),
		catalog:  cat,
		rewards:  config.DefaultRewards(),
		verifier: new(MockVerifier),
	}
	e.ledger = services.NewLedgerService(e.store, e.queue, e.clock, logger)
	e.badges = services.NewBadgeService(e.store, cat, e.clock, logger)
	e.queue.badges = e.badges
	e.fraud = services.NewFraudService(e.store, services.FraudOptions{}, e.clock, logger)
	e.streaks = services.NewStreakService(e.store, e.ledger, e.rewards, time.UTC, e.clock, logger)

	deps := services.MissionDeps{
		Store:    e.store,
		Catalog:  cat,
		Ledger:   e.ledger,
		Fraud:    e.fraud,
		Objects:  e.objects,
		Verifier: e.verifier,
		Queue:    e.queue,
		Rewards:  e.rewards,
		Options:  services.MissionOptions{ImageMaxDimension: 256, ImageMaxBytes: 5 << 20},
		Clock:    e.clock,
		Logger:   logger,
	}
	for _, o := range opts {
		o(&deps)
	}
	e.missions = services.NewMissionService(deps)
	return e
}

func (e *testEnv) addFarmer(t *testing.T, id string, crops ...string) *models.User {
	t.Helper()
	u := &models.User{
		Base:  models.Base{ID: id},
		Name:  "Farmer " + id,
		Role:  models.RoleFarmer,
		State: "Punjab",
	}
	for _, c := range crops {
		u.Crops = append(u.Crops, models.CropEntry{Name: c})
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.store.Users().Get(context.Background(), id)
	require.NoError(t, err)
	return u
}

// proofImage returns a PNG whose 8x8 block pattern depends on seed, so different seeds hash
// differently.
func proofImage(t *testing.T, seed int) []byte {
	t.Helper()
	const w, h = 500, 400
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := x*8/w, y*8/h
			v := uint8((seed*37 + cx*53 + cy*97) % 256)
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func approve(reason string) *ai.Verdict {
	return &ai.Verdict{Approved: true, Reason: reason, Confidence: 92}
}
