// internal/feed/ranker/ranker_test.go
package ranker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/models"
)

// ==========================
// Test Fakes
// ==========================

type fakeStore struct {
	rankedFeed         func(ctx context.Context, loc models.GeoPoint, radiusKm float64, limit int, includeUnverified bool) ([]models.RankedRow, error)
	contentByIDs       func(ctx context.Context, ids []string) ([]models.ContentItem, error)
	recentContent      func(ctx context.Context, limit int, serviceFilter string) ([]models.ContentItem, error)
	viewerInteractions func(ctx context.Context, userID string, cleanerIDs []string) (map[string]models.InteractionStats, error)
}

func (f *fakeStore) RankedFeed(ctx context.Context, loc models.GeoPoint, radiusKm float64, limit int, includeUnverified bool) ([]models.RankedRow, error) {
	if f.rankedFeed == nil {
		return nil, errors.New("rankedFeed not stubbed")
	}
	return f.rankedFeed(ctx, loc, radiusKm, limit, includeUnverified)
}

func (f *fakeStore) ContentByIDs(ctx context.Context, ids []string) ([]models.ContentItem, error) {
	if f.contentByIDs == nil {
		return nil, errors.New("contentByIDs not stubbed")
	}
	return f.contentByIDs(ctx, ids)
}

func (f *fakeStore) RecentContent(ctx context.Context, limit int, serviceFilter string) ([]models.ContentItem, error) {
	if f.recentContent == nil {
		return nil, errors.New("recentContent not stubbed")
	}
	return f.recentContent(ctx, limit, serviceFilter)
}

func (f *fakeStore) ViewerInteractions(ctx context.Context, userID string, cleanerIDs []string) (map[string]models.InteractionStats, error) {
	if f.viewerInteractions == nil {
		return map[string]models.InteractionStats{}, nil
	}
	return f.viewerInteractions(ctx, userID, cleanerIDs)
}

type fakeProfiles struct {
	profile *models.PreferenceProfile
}

func (f *fakeProfiles) Build(ctx context.Context, userID string) *models.PreferenceProfile {
	if f.profile == nil {
		return &models.PreferenceProfile{}
	}
	return f.profile
}

// ==========================
// Test Helper Functions
// ==========================

type fakeRecorder struct {
	mu            sync.Mutex
	requestPaths  []string
	durationPaths []string
}

func (f *fakeRecorder) RecordFeedRequest(ctx context.Context, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestPaths = append(f.requestPaths, path)
}

func (f *fakeRecorder) RecordFeedDuration(ctx context.Context, duration time.Duration, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durationPaths = append(f.durationPaths, path)
}

func newTestRanker(t *testing.T, store Store, profiles ProfileBuilder) *Ranker {
	return New(LoadConfig(), store, profiles, nil, logger.NewTestLogger(t))
}

func contentItem(id, cleanerID string, createdAt time.Time) models.ContentItem {
	return models.ContentItem{
		ID:        id,
		CleanerID: cleanerID,
		Title:     "test " + id,
		MediaURL:  "https://cdn.example.com/" + id + ".mp4",
		CreatedAt: createdAt,
		Cleaner: models.Cleaner{
			ID:          cleanerID,
			Name:        "cleaner " + cleanerID,
			IsAvailable: true,
		},
	}
}

// pointAtKm returns a point roughly km kilometers due north of origin.
func pointAtKm(origin models.GeoPoint, km float64) *models.GeoPoint {
	return &models.GeoPoint{
		Latitude:  origin.Latitude + km/111.19,
		Longitude: origin.Longitude,
	}
}

var sanFrancisco = models.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}

// ==========================
// Server-assisted path
// ==========================

func TestGetRankedFeed_PreservesRPCOrder(t *testing.T) {
	now := time.Now()
	rows := []models.RankedRow{
		{ContentID: "c", RankScore: 0.91},
		{ContentID: "a", RankScore: 0.85},
		{ContentID: "b", RankScore: 0.72},
	}
	// Hydration returns rows in a different order than the procedure ranked
	// them; the procedure's order must win.
	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			return rows, nil
		},
		contentByIDs: func(_ context.Context, ids []string) ([]models.ContentItem, error) {
			require.ElementsMatch(t, []string{"a", "b", "c"}, ids)
			return []models.ContentItem{
				contentItem("a", "cl-a", now),
				contentItem("b", "cl-b", now),
				contentItem("c", "cl-c", now),
			}, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco, models.FeedOptions{})

	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, "b", items[2].ID)

	// Scores come verbatim from the procedure, breakdown left unset.
	assert.Equal(t, 0.91, items[0].RankingScore)
	assert.Equal(t, 0.85, items[1].RankingScore)
	for _, item := range items {
		assert.Nil(t, item.Factors)
	}
}

func TestGetRankedFeed_ColdStartRelaxedRetry(t *testing.T) {
	now := time.Now()
	var strictCalls, relaxedCalls int

	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, includeUnverified bool) ([]models.RankedRow, error) {
			if !includeUnverified {
				strictCalls++
				return nil, nil
			}
			relaxedCalls++
			return []models.RankedRow{
				{ContentID: "new-1", RankScore: 0.6},
				{ContentID: "new-2", RankScore: 0.4},
			}, nil
		},
		contentByIDs: func(_ context.Context, ids []string) ([]models.ContentItem, error) {
			return []models.ContentItem{
				contentItem("new-1", "cl-1", now),
				contentItem("new-2", "cl-2", now),
			}, nil
		},
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			t.Error("local path must not run when the relaxed retry succeeds")
			return nil, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco, models.FeedOptions{})

	assert.Equal(t, 1, strictCalls)
	assert.Equal(t, 1, relaxedCalls)
	require.Len(t, items, 2)
	assert.Equal(t, "new-1", items[0].ID)
	assert.Equal(t, "new-2", items[1].ID)
}

func TestGetRankedFeed_RPCErrorFallsBackToLocal(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			return nil, errors.New("connection refused")
		},
		recentContent: func(_ context.Context, limit int, _ string) ([]models.ContentItem, error) {
			return []models.ContentItem{contentItem("local-1", "cl-1", now)}, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco, models.FeedOptions{})

	require.Len(t, items, 1)
	assert.Equal(t, "local-1", items[0].ID)
	assert.NotNil(t, items[0].Factors, "locally ranked items carry a factor breakdown")
}

func TestGetRankedFeed_NoLocationSkipsRPC(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			t.Fatal("ranked feed procedure must not be called without a viewer location")
			return nil, nil
		},
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return []models.ContentItem{contentItem("local-1", "cl-1", now)}, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})
	require.Len(t, items, 1)
}

func TestGetRankedFeed_HydrationSkipsVanishedContent(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			return []models.RankedRow{
				{ContentID: "kept", RankScore: 0.9},
				{ContentID: "deleted", RankScore: 0.8},
			}, nil
		},
		contentByIDs: func(_ context.Context, _ []string) ([]models.ContentItem, error) {
			return []models.ContentItem{contentItem("kept", "cl-1", now)}, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco, models.FeedOptions{})

	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].ID)
}

// ==========================
// Degradation
// ==========================

func TestGetRankedFeed_TotalFailureReturnsEmptyList(t *testing.T) {
	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			return nil, errors.New("timeout")
		},
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return nil, errors.New("timeout")
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})

	var items []models.ScoredItem
	assert.NotPanics(t, func() {
		items = r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco, models.FeedOptions{})
	})
	require.NotNil(t, items)
	assert.Empty(t, items)
}

func TestGetRankedFeed_EmptyCandidateBatchReturnsEmptyList(t *testing.T) {
	store := &fakeStore{
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return nil, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})
	require.NotNil(t, items)
	assert.Empty(t, items)
}

// ==========================
// Local computation path
// ==========================

func TestGetRankedFeed_LocalPathIsDeterministic(t *testing.T) {
	now := time.Now()
	batch := []models.ContentItem{
		contentItem("a", "cl-1", now.Add(-2*time.Hour)),
		contentItem("b", "cl-2", now.Add(-3*time.Hour)),
		contentItem("c", "cl-3", now.Add(-4*time.Hour)),
	}
	store := &fakeStore{
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			out := make([]models.ContentItem, len(batch))
			copy(out, batch)
			return out, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	first := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})
	second := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].RankingScore, second[i].RankingScore)
	}
}

func TestGetRankedFeed_LocalPathTruncatesToLimit(t *testing.T) {
	now := time.Now()
	var requestedBatch int
	store := &fakeStore{
		recentContent: func(_ context.Context, limit int, _ string) ([]models.ContentItem, error) {
			requestedBatch = limit
			items := make([]models.ContentItem, limit)
			for i := range items {
				items[i] = contentItem(string(rune('a'+i)), "cl-1", now)
			}
			return items, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{Limit: 5})

	assert.Equal(t, 10, requestedBatch, "raw batch is 2x the requested limit")
	assert.Len(t, items, 5)
}

func TestGetRankedFeed_EndToEndProximityScenario(t *testing.T) {
	// Viewer in San Francisco, proximity sort, procedure unavailable.
	// Candidates at 1 km, 10 km and 45 km with identical engagement, rating
	// and availability must come back nearest first.
	now := time.Now()

	makeCandidate := func(id string, km float64) models.ContentItem {
		item := contentItem(id, "cl-"+id, now.Add(-time.Hour))
		item.ViewCount = 100
		item.LikeCount = 5
		item.CommentCount = 2
		rating := 4.5
		item.Cleaner.RatingAverage = &rating
		item.Cleaner.HourlyRate = 50
		item.Cleaner.Location = pointAtKm(sanFrancisco, km)
		return item
	}

	store := &fakeStore{
		rankedFeed: func(_ context.Context, _ models.GeoPoint, _ float64, _ int, _ bool) ([]models.RankedRow, error) {
			return nil, errors.New("procedure unavailable")
		},
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			// Deliberately furthest-first so the sort has to work.
			return []models.ContentItem{
				makeCandidate("far", 45),
				makeCandidate("mid", 10),
				makeCandidate("near", 1),
			}, nil
		},
	}

	r := newTestRanker(t, store, &fakeProfiles{})
	items := r.GetRankedFeed(context.Background(), "user-1", &sanFrancisco,
		models.FeedOptions{SortPreference: models.SortProximity})

	require.Len(t, items, 3)
	assert.Equal(t, "near", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "far", items[2].ID)

	for _, item := range items[1:] {
		assert.Greater(t, items[0].RankingScore, item.RankingScore,
			"nearest candidate must hold the maximum score")
	}
}

func TestGetRankedFeed_BudgetOptionOverridesProfileBudget(t *testing.T) {
	now := time.Now()

	expensive := contentItem("expensive", "cl-1", now)
	expensive.Cleaner.HourlyRate = 150
	cheap := contentItem("cheap", "cl-2", now)
	cheap.Cleaner.HourlyRate = 45

	store := &fakeStore{
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return []models.ContentItem{expensive, cheap}, nil
		},
	}
	// Stored profile budget would favor the expensive cleaner.
	profiles := &fakeProfiles{profile: &models.PreferenceProfile{
		Budget: &models.BudgetRange{Min: 100, Max: 200},
	}}

	r := newTestRanker(t, store, profiles)
	items := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{
		SortPreference: models.SortPrice,
		Budget:         &models.BudgetRange{Min: 40, Max: 60},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "cheap", items[0].ID)
}

func TestNormalizeLimit(t *testing.T) {
	r := newTestRanker(t, &fakeStore{}, &fakeProfiles{})

	assert.Equal(t, 20, r.normalizeLimit(0))
	assert.Equal(t, 20, r.normalizeLimit(-5))
	assert.Equal(t, 7, r.normalizeLimit(7))
	assert.Equal(t, 100, r.normalizeLimit(5000))
}

func TestGetRankedFeed_RecordsResolutionPath(t *testing.T) {
	store := &fakeStore{
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return []models.ContentItem{contentItem("a", "cl-a", time.Now())}, nil
		},
	}
	recorder := &fakeRecorder{}
	r := New(LoadConfig(), store, &fakeProfiles{}, recorder, logger.NewTestLogger(t))

	r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})

	assert.Equal(t, []string{PathLocal}, recorder.requestPaths)
	assert.Equal(t, []string{PathLocal}, recorder.durationPaths)
}

func TestGetRankedFeed_RecordsEmptyPath(t *testing.T) {
	store := &fakeStore{
		recentContent: func(_ context.Context, _ int, _ string) ([]models.ContentItem, error) {
			return nil, nil
		},
	}
	recorder := &fakeRecorder{}
	r := New(LoadConfig(), store, &fakeProfiles{}, recorder, logger.NewTestLogger(t))

	items := r.GetRankedFeed(context.Background(), "user-1", nil, models.FeedOptions{})

	assert.Empty(t, items)
	assert.Equal(t, []string{PathEmpty}, recorder.requestPaths)
}
