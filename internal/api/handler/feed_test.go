// internal/api/handler/feed_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type stubRanker struct {
	items    []models.ScoredItem
	userID   string
	location *models.GeoPoint
	opts     models.FeedOptions
	calls    int
}

func (s *stubRanker) GetRankedFeed(ctx context.Context, userID string, viewerLocation *models.GeoPoint, opts models.FeedOptions) []models.ScoredItem {
	s.calls++
	s.userID = userID
	s.location = viewerLocation
	s.opts = opts
	return s.items
}

func newFeedRouter(t *testing.T, ranker *stubRanker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewFeedHandler(ranker, logger.NewTestLogger(t))
	r.GET("/api/v1/feed", h.GetFeed)
	return r
}

func doFeedRequest(t *testing.T, router *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func scoredItem(id, cleanerID string, score float64) models.ScoredItem {
	return models.ScoredItem{
		ContentItem: models.ContentItem{
			ID:        id,
			CleanerID: cleanerID,
			Title:     "test content",
			MediaURL:  "https://cdn/" + id + ".mp4",
			CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Cleaner:   models.Cleaner{ID: cleanerID, Name: "Test Cleaner"},
		},
		RankingScore: score,
	}
}

// ==========================
// Request Validation
// ==========================

func TestGetFeed_RequiresUserID(t *testing.T) {
	ranker := &stubRanker{}
	router := newFeedRouter(t, ranker)

	w := doFeedRequest(t, router, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, ranker.calls, "engine must not be called on invalid input")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "user_id")
	assert.NotEmpty(t, body["requestId"])
}

func TestGetFeed_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "lat without lng", query: "?user_id=u1&lat=37.7"},
		{name: "lng without lat", query: "?user_id=u1&lng=-122.4"},
		{name: "lat not a number", query: "?user_id=u1&lat=north&lng=-122.4"},
		{name: "lat out of range", query: "?user_id=u1&lat=91&lng=0"},
		{name: "lng out of range", query: "?user_id=u1&lat=0&lng=181"},
		{name: "limit not a number", query: "?user_id=u1&limit=many"},
		{name: "limit zero", query: "?user_id=u1&limit=0"},
		{name: "budget_min without max", query: "?user_id=u1&budget_min=40"},
		{name: "budget_max below min", query: "?user_id=u1&budget_min=60&budget_max=40"},
		{name: "negative budget_min", query: "?user_id=u1&budget_min=-5&budget_max=40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranker := &stubRanker{}
			router := newFeedRouter(t, ranker)

			w := doFeedRequest(t, router, tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, ranker.calls)
		})
	}
}

// ==========================
// Successful Requests
// ==========================

func TestGetFeed_ReturnsRankedItems(t *testing.T) {
	ranker := &stubRanker{
		items: []models.ScoredItem{
			scoredItem("c-1", "cl-1", 0.91),
			scoredItem("c-2", "cl-2", 0.77),
		},
	}
	router := newFeedRouter(t, ranker)

	w := doFeedRequest(t, router, "?user_id=user-1&lat=37.7749&lng=-122.4194&limit=10&sort=proximity&service=deep_clean")

	require.Equal(t, http.StatusOK, w.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "c-1", resp.Items[0].ID)
	assert.Equal(t, 0.91, resp.Items[0].RankingScore)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.GeneratedAt.IsZero())

	// Query parameters flow through to the engine untouched.
	assert.Equal(t, "user-1", ranker.userID)
	require.NotNil(t, ranker.location)
	assert.Equal(t, 37.7749, ranker.location.Latitude)
	assert.Equal(t, -122.4194, ranker.location.Longitude)
	assert.Equal(t, 10, ranker.opts.Limit)
	assert.Equal(t, models.SortProximity, ranker.opts.SortPreference)
	assert.Equal(t, "deep_clean", ranker.opts.ServiceFilter)
	assert.Nil(t, ranker.opts.Budget)
}

func TestGetFeed_EmptyFeedIsOK(t *testing.T) {
	ranker := &stubRanker{}
	router := newFeedRouter(t, ranker)

	w := doFeedRequest(t, router, "?user_id=user-1")

	require.Equal(t, http.StatusOK, w.Code)

	var resp FeedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Items)
}

func TestGetFeed_NoLocationPassesNil(t *testing.T) {
	ranker := &stubRanker{}
	router := newFeedRouter(t, ranker)

	w := doFeedRequest(t, router, "?user_id=user-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ranker.calls)
	assert.Nil(t, ranker.location)
}

func TestGetFeed_BudgetOverride(t *testing.T) {
	ranker := &stubRanker{}
	router := newFeedRouter(t, ranker)

	w := doFeedRequest(t, router, "?user_id=user-1&sort=price&budget_min=40&budget_max=60")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ranker.opts.Budget)
	assert.Equal(t, 40, ranker.opts.Budget.Min)
	assert.Equal(t, 60, ranker.opts.Budget.Max)
}

// ==========================
// Response Shape
// ==========================

func TestValidateResponse(t *testing.T) {
	h := NewFeedHandler(&stubRanker{}, logger.NewNoOpLogger())

	valid := &FeedResponse{
		RequestID:   "req-1",
		Count:       1,
		Items:       []models.ScoredItem{scoredItem("c-1", "cl-1", 0.5)},
		GeneratedAt: time.Now().UTC(),
	}
	assert.NoError(t, h.validateResponse(valid))

	empty := &FeedResponse{
		RequestID:   "req-2",
		Items:       []models.ScoredItem{},
		GeneratedAt: time.Now().UTC(),
	}
	assert.NoError(t, h.validateResponse(empty))
}
