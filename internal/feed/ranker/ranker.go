// internal/feed/ranker/ranker.go
package ranker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	apperrors "chorehero-feed/internal/common/errors"
	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/common/metrics"
	"chorehero-feed/internal/feed/scoring"
	"chorehero-feed/internal/feed/weights"
	"chorehero-feed/internal/models"
)

// Resolution paths, used as metric labels.
const (
	PathRPC        = "rpc"
	PathRPCRelaxed = "rpc_relaxed"
	PathLocal      = "local"
	PathEmpty      = "empty"
)

// Store is the read boundary the orchestrator depends on.
type Store interface {
	RankedFeed(ctx context.Context, loc models.GeoPoint, radiusKm float64, limit int, includeUnverified bool) ([]models.RankedRow, error)
	ContentByIDs(ctx context.Context, ids []string) ([]models.ContentItem, error)
	RecentContent(ctx context.Context, limit int, serviceFilter string) ([]models.ContentItem, error)
	ViewerInteractions(ctx context.Context, userID string, cleanerIDs []string) (map[string]models.InteractionStats, error)
}

// ProfileBuilder derives the viewer's preference profile.
type ProfileBuilder interface {
	Build(ctx context.Context, userID string) *models.PreferenceProfile
}

// Recorder receives per-request measurements; a nil recorder disables them.
type Recorder interface {
	RecordFeedRequest(ctx context.Context, path string)
	RecordFeedDuration(ctx context.Context, duration time.Duration, path string)
}

// Ranker orders candidate content for a viewer. It holds no state between
// calls; every call fetches fresh snapshots and is safe to run concurrently.
type Ranker struct {
	config   *Config
	store    Store
	profiles ProfileBuilder
	recorder Recorder
	logger   logger.Logger
	now      func() time.Time
}

func New(config *Config, store Store, profiles ProfileBuilder, recorder Recorder, log logger.Logger) *Ranker {
	return &Ranker{
		config:   config,
		store:    store,
		profiles: profiles,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "ranker"}),
		now:      time.Now,
	}
}

// GetRankedFeed returns the top candidates for a viewer, best first.
//
// With a viewer location it asks the ranked-feed procedure first (strict
// filtering, then relaxed filtering for cold-start markets) and preserves the
// procedure's order verbatim. Without a location, or when both attempts come
// back empty or fail, it ranks a raw candidate batch locally.
//
// No error escapes: every read failure is logged and degraded to the next
// path, and total failure yields an empty slice the caller renders as an
// empty feed.
func (r *Ranker) GetRankedFeed(ctx context.Context, userID string, viewerLocation *models.GeoPoint, opts models.FeedOptions) []models.ScoredItem {
	start := r.now()
	limit := r.normalizeLimit(opts.Limit)

	path := PathLocal
	var items []models.ScoredItem

	if viewerLocation != nil {
		if rpcItems, ok := r.tryRPC(ctx, *viewerLocation, limit, false); ok {
			path, items = PathRPC, rpcItems
		} else if rpcItems, ok := r.tryRPC(ctx, *viewerLocation, limit, true); ok {
			path, items = PathRPCRelaxed, rpcItems
		}
	}

	if items == nil && ctx.Err() == nil {
		items = r.computeLocal(ctx, userID, viewerLocation, limit, opts)
	}

	if len(items) == 0 {
		items = []models.ScoredItem{}
		path = PathEmpty
		metrics.FeedEmptyResults.Inc()
	}

	metrics.FeedRequestsTotal.WithLabelValues(path).Inc()
	metrics.FeedRequestDuration.WithLabelValues(path).Observe(r.now().Sub(start).Seconds())
	if r.recorder != nil {
		r.recorder.RecordFeedRequest(ctx, path)
		r.recorder.RecordFeedDuration(ctx, r.now().Sub(start), path)
	}

	r.logger.Info("feed ranked", map[string]interface{}{
		"userId":     userID,
		"path":       path,
		"count":      len(items),
		"limit":      limit,
		"durationMs": r.now().Sub(start).Milliseconds(),
	})

	return items
}

func (r *Ranker) normalizeLimit(limit int) int {
	if limit <= 0 {
		return r.config.DefaultLimit
	}
	if limit > r.config.MaxLimit {
		return r.config.MaxLimit
	}
	return limit
}

// tryRPC runs one ranked-feed procedure attempt and hydrates its rows. A
// false return means this attempt produced nothing usable and the caller
// should fall through.
func (r *Ranker) tryRPC(ctx context.Context, loc models.GeoPoint, limit int, includeUnverified bool) ([]models.ScoredItem, bool) {
	rpcCtx, cancel := context.WithTimeout(ctx, r.config.RPCTimeout)
	defer cancel()

	rows, err := r.store.RankedFeed(rpcCtx, loc, r.config.RadiusKm, limit, includeUnverified)
	if err != nil {
		metrics.FeedReadFailures.WithLabelValues("ranked_feed_rpc").Inc()
		r.logger.Warn("ranked feed procedure failed", errorFields(err, map[string]interface{}{
			"includeUnverified": includeUnverified,
		}))
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}

	items, err := r.hydrateRows(ctx, rows, limit)
	if err != nil {
		metrics.FeedReadFailures.WithLabelValues("content_hydration").Inc()
		r.logger.Warn("failed to hydrate ranked rows", errorFields(err, map[string]interface{}{
			"rowCount": len(rows),
		}))
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}

// hydrateRows bulk-fetches content for the procedure's rows and reassembles
// them in the procedure's order. The remote score is attached verbatim and
// the factor breakdown left unset; local re-ordering is never applied.
func (r *Ranker) hydrateRows(ctx context.Context, rows []models.RankedRow, limit int) ([]models.ScoredItem, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ContentID
	}

	readCtx, cancel := context.WithTimeout(ctx, r.config.ReadTimeout)
	defer cancel()

	fetched, err := r.store.ContentByIDs(readCtx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.ContentItem, len(fetched))
	for _, item := range fetched {
		byID[item.ID] = item
	}

	items := make([]models.ScoredItem, 0, len(rows))
	for _, row := range rows {
		item, ok := byID[row.ContentID]
		if !ok {
			// Row references content that vanished between ranking and
			// hydration. Skip it rather than failing the whole batch.
			continue
		}
		if row.DistanceKm != nil {
			d := *row.DistanceKm
			item.Cleaner.DistanceKm = &d
		}
		items = append(items, models.ScoredItem{
			ContentItem:  item,
			RankingScore: row.RankScore,
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// computeLocal is the fallback ranking path: fetch the preference profile and
// a raw candidate batch concurrently (neither depends on the other), score
// every candidate on all 8 factors, and return the top of a stable
// descending sort. Ties keep the batch's original order, so output is
// deterministic for a fixed batch.
func (r *Ranker) computeLocal(ctx context.Context, userID string, viewerLocation *models.GeoPoint, limit int, opts models.FeedOptions) []models.ScoredItem {
	batchSize := limit * r.config.CandidateMultiplier

	var (
		wg         sync.WaitGroup
		profile    *models.PreferenceProfile
		candidates []models.ContentItem
		fetchErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile = r.profiles.Build(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		readCtx, cancel := context.WithTimeout(ctx, r.config.ReadTimeout)
		defer cancel()
		candidates, fetchErr = r.store.RecentContent(readCtx, batchSize, opts.ServiceFilter)
	}()
	wg.Wait()

	if fetchErr != nil {
		metrics.FeedReadFailures.WithLabelValues("recent_content").Inc()
		r.logger.Warn("failed to fetch candidate batch", errorFields(fetchErr, map[string]interface{}{
			"userId": userID,
		}))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	if profile == nil {
		profile = &models.PreferenceProfile{}
	}
	// An explicit request budget wins over the stored profile budget.
	if opts.Budget != nil {
		profile.Budget = opts.Budget
	}

	interactions := r.fetchInteractions(ctx, userID, candidates)

	sctx := &scoring.Context{
		ViewerLocation: viewerLocation,
		Profile:        profile,
		Interactions:   interactions,
		Now:            r.now(),
	}
	w := weights.Get(opts.SortPreference)

	scored := make([]models.ScoredItem, len(candidates))
	for i := range candidates {
		score, factors := scoring.ScoreItem(&candidates[i], sctx, w)
		f := factors
		scored[i] = models.ScoredItem{
			ContentItem:  candidates[i],
			RankingScore: score,
			Factors:      &f,
		}
	}
	metrics.FeedCandidatesScored.Observe(float64(len(scored)))

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RankingScore > scored[j].RankingScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func (r *Ranker) fetchInteractions(ctx context.Context, userID string, candidates []models.ContentItem) map[string]models.InteractionStats {
	seen := make(map[string]struct{}, len(candidates))
	cleanerIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.CleanerID]; ok {
			continue
		}
		seen[c.CleanerID] = struct{}{}
		cleanerIDs = append(cleanerIDs, c.CleanerID)
	}

	readCtx, cancel := context.WithTimeout(ctx, r.config.ReadTimeout)
	defer cancel()

	interactions, err := r.store.ViewerInteractions(readCtx, userID, cleanerIDs)
	if err != nil {
		metrics.FeedReadFailures.WithLabelValues("viewer_interactions").Inc()
		r.logger.Warn("failed to fetch viewer interactions", errorFields(err, map[string]interface{}{
			"userId": userID,
		}))
		return nil
	}
	return interactions
}

// errorFields merges the standard code/retryable fields into a log field map
// when the error carries them.
func errorFields(err error, fields map[string]interface{}) map[string]interface{} {
	fields["error"] = err.Error()
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		fields["code"] = string(stdErr.Code)
		fields["retryable"] = stdErr.Retryable
	}
	return fields
}
