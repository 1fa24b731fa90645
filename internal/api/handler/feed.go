// internal/api/handler/feed.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// FeedRanker is the ranking engine surface the handler calls into.
type FeedRanker interface {
	GetRankedFeed(ctx context.Context, userID string, viewerLocation *models.GeoPoint, opts models.FeedOptions) []models.ScoredItem
}

type FeedHandler struct {
	ranker FeedRanker
	logger logger.Logger
}

func NewFeedHandler(ranker FeedRanker, log logger.Logger) *FeedHandler {
	return &FeedHandler{
		ranker: ranker,
		logger: log.WithFields(map[string]interface{}{"handler": "feed"}),
	}
}

// FeedResponse is the wire shape of a ranked feed.
type FeedResponse struct {
	RequestID   string              `json:"requestId"`
	Count       int                 `json:"count"`
	Items       []models.ScoredItem `json:"items"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// GetFeed handles GET /api/v1/feed.
//
// Query parameters: user_id (required), lat + lng (optional, enables the
// server-assisted path), limit, sort (balanced|proximity|engagement|price),
// service, budget_min + budget_max.
//
// An empty feed is a valid 200 with count 0, never an error status: the
// ranking engine degrades internally and only ever returns a list.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	requestID := uuid.New().String()

	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"requestId": requestID,
			"error":     "user_id is required",
		})
		return
	}

	viewerLocation, err := parseLocation(c.Query("lat"), c.Query("lng"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"requestId": requestID,
			"error":     err.Error(),
		})
		return
	}

	opts := models.FeedOptions{
		SortPreference: models.SortPreference(c.Query("sort")),
		ServiceFilter:  c.Query("service"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"requestId": requestID,
				"error":     "limit must be a positive integer",
			})
			return
		}
		opts.Limit = limit
	}
	if budget, err := parseBudget(c.Query("budget_min"), c.Query("budget_max")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"requestId": requestID,
			"error":     err.Error(),
		})
		return
	} else {
		opts.Budget = budget
	}

	items := h.ranker.GetRankedFeed(c.Request.Context(), userID, viewerLocation, opts)

	resp := FeedResponse{
		RequestID:   requestID,
		Count:       len(items),
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}

	if err := h.validateResponse(&resp); err != nil {
		// Shape drift is a bug worth alerting on, not worth failing the
		// request over.
		h.logger.Warn("feed response failed schema validation", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func parseLocation(latRaw, lngRaw string) (*models.GeoPoint, error) {
	if latRaw == "" && lngRaw == "" {
		return nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, fmt.Errorf("lat and lng must be supplied together")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("lat must be a number in [-90, 90]")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("lng must be a number in [-180, 180]")
	}
	return &models.GeoPoint{Latitude: lat, Longitude: lng}, nil
}

func parseBudget(minRaw, maxRaw string) (*models.BudgetRange, error) {
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}
	if minRaw == "" || maxRaw == "" {
		return nil, fmt.Errorf("budget_min and budget_max must be supplied together")
	}
	min, err := strconv.Atoi(minRaw)
	if err != nil || min < 0 {
		return nil, fmt.Errorf("budget_min must be a non-negative integer")
	}
	max, err := strconv.Atoi(maxRaw)
	if err != nil || max < min {
		return nil, fmt.Errorf("budget_max must be an integer >= budget_min")
	}
	return &models.BudgetRange{Min: min, Max: max}, nil
}

var feedResponseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"requestId", "count", "items", "generatedAt"},
	"properties": map[string]interface{}{
		"requestId":   map[string]interface{}{"type": "string"},
		"count":       map[string]interface{}{"type": "integer", "minimum": 0},
		"generatedAt": map[string]interface{}{"type": "string"},
		"items": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "cleanerId", "rankingScore"},
				"properties": map[string]interface{}{
					"id":           map[string]interface{}{"type": "string"},
					"cleanerId":    map[string]interface{}{"type": "string"},
					"rankingScore": map[string]interface{}{"type": "number"},
				},
			},
		},
	},
}

func (h *FeedHandler) validateResponse(resp *FeedResponse) error {
	// Round-trip through JSON so the schema sees the wire shape, tags and
	// omitempty included.
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(feedResponseSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("response validation failed: %v", errs)
	}

	return nil
}
