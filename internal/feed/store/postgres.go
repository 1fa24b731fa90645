// internal/feed/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "chorehero-feed/internal/common/errors"
	"chorehero-feed/internal/common/logger"
	"chorehero-feed/internal/models"

	"github.com/lib/pq"
)

var (
	ErrNoContentIDs = errors.New("no content ids supplied")
)

// PostgresStore implements the read operations the ranking core depends on.
// It owns no writes: every method is a snapshot read, validated at this
// boundary so the scoring code never sees a malformed row.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "feed-store"}),
	}
}

// RankedFeed calls the remote ranking procedure: a SQL function that ranks
// the full cleaner catalog by proximity server-side. It may legitimately
// return zero rows; strict filtering excludes unverified cleaners, relaxed
// filtering includes them (cold-start markets).
func (s *PostgresStore) RankedFeed(ctx context.Context, loc models.GeoPoint, radiusKm float64, limit int, includeUnverified bool) ([]models.RankedRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, rank_score, distance_km
		FROM get_ranked_feed($1, $2, $3, $4, $5)`,
		loc.Latitude, loc.Longitude, radiusKm, limit, includeUnverified,
	)
	if err != nil {
		return nil, apperrors.NewRankedFeedRPCError(err)
	}
	defer rows.Close()

	var out []models.RankedRow
	for rows.Next() {
		var r models.RankedRow
		var distance sql.NullFloat64
		if err := rows.Scan(&r.ContentID, &r.RankScore, &distance); err != nil {
			return nil, apperrors.NewRankedFeedRPCError(fmt.Errorf("scan ranked row: %w", err))
		}
		if distance.Valid {
			d := distance.Float64
			r.DistanceKm = &d
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRankedFeedRPCError(fmt.Errorf("ranked feed rows: %w", err))
	}
	return out, nil
}

const contentColumns = `
	cv.id, cv.cleaner_id, cv.title, cv.description, cv.media_url,
	cv.thumbnail_url, cv.price_type, cv.base_price, cv.estimated_hours,
	cv.is_bookable, cv.view_count, cv.like_count, cv.comment_count,
	cv.created_at,
	cp.name, cp.avatar_url, cp.rating_average, cp.total_jobs,
	cp.hourly_rate, cp.is_available, cp.latitude, cp.longitude,
	cp.specialties`

// ContentByIDs hydrates content rows plus their cleaner profiles for the
// ids a ranked-feed call returned. Row order is not guaranteed; callers
// that need the procedure's order must reorder by id.
func (s *PostgresStore) ContentByIDs(ctx context.Context, ids []string) ([]models.ContentItem, error) {
	if len(ids) == 0 {
		return nil, ErrNoContentIDs
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_videos cv
		JOIN cleaner_profiles cp ON cp.id = cv.cleaner_id
		WHERE cv.id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, apperrors.NewContentFetchError(fmt.Errorf("content by ids: %w", err))
	}
	defer rows.Close()

	return s.scanContentRows(rows)
}

// RecentContent fetches the raw candidate batch for the local ranking path:
// the newest content joined with cleaner profiles, optionally narrowed to a
// service type.
func (s *PostgresStore) RecentContent(ctx context.Context, limit int, serviceFilter string) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content_videos cv
		JOIN cleaner_profiles cp ON cp.id = cv.cleaner_id
		WHERE cv.status = 'published'
		  AND ($2 = '' OR $2 = ANY(cp.specialties))
		ORDER BY cv.created_at DESC
		LIMIT $1`,
		limit, serviceFilter,
	)
	if err != nil {
		return nil, apperrors.NewContentFetchError(fmt.Errorf("recent content: %w", err))
	}
	defer rows.Close()

	return s.scanContentRows(rows)
}

// BookingHistory returns the viewer's most recent completed bookings, newest
// first, reduced to the fields the preference builder reads.
func (s *PostgresStore) BookingHistory(ctx context.Context, userID string, limit int) ([]models.BookingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_type, rating
		FROM bookings
		WHERE customer_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, apperrors.NewBookingFetchError(err)
	}
	defer rows.Close()

	var out []models.BookingRecord
	for rows.Next() {
		var b models.BookingRecord
		var rating sql.NullFloat64
		if err := rows.Scan(&b.ServiceType, &rating); err != nil {
			return nil, apperrors.NewBookingFetchError(fmt.Errorf("scan booking row: %w", err))
		}
		if rating.Valid {
			r := rating.Float64
			b.RatingGiven = &r
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewBookingFetchError(fmt.Errorf("booking rows: %w", err))
	}
	return out, nil
}

// CustomerProfile loads the viewer's optional profile fields. A missing row
// is not an error: it returns a profile with no budget set.
func (s *PostgresStore) CustomerProfile(ctx context.Context, userID string) (*models.CustomerProfile, error) {
	profile := &models.CustomerProfile{UserID: userID}

	var budgetMin, budgetMax sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT budget_min, budget_max
		FROM customer_profiles
		WHERE user_id = $1`,
		userID,
	).Scan(&budgetMin, &budgetMax)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile, nil
		}
		return nil, apperrors.NewProfileFetchError(err)
	}

	if budgetMin.Valid && budgetMax.Valid {
		profile.Budget = &models.BudgetRange{
			Min: int(budgetMin.Int64),
			Max: int(budgetMax.Int64),
		}
	}
	return profile, nil
}

// ViewerInteractions bulk-loads the viewer's history with a set of cleaners:
// completed-booking counts and average rating given, plus whether any
// content-level interaction (like, comment, tracked view) exists.
func (s *PostgresStore) ViewerInteractions(ctx context.Context, userID string, cleanerIDs []string) (map[string]models.InteractionStats, error) {
	stats := make(map[string]models.InteractionStats, len(cleanerIDs))
	if len(cleanerIDs) == 0 {
		return stats, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cleaner_id, COUNT(*), COALESCE(AVG(rating), 0)
		FROM bookings
		WHERE customer_id = $1 AND cleaner_id = ANY($2) AND status = 'completed'
		GROUP BY cleaner_id`,
		userID, pq.Array(cleanerIDs),
	)
	if err != nil {
		return nil, apperrors.NewBookingFetchError(fmt.Errorf("booking interactions: %w", err))
	}
	for rows.Next() {
		var cleanerID string
		var st models.InteractionStats
		if err := rows.Scan(&cleanerID, &st.CompletedBookings, &st.AvgRatingGiven); err != nil {
			rows.Close()
			return nil, apperrors.NewBookingFetchError(fmt.Errorf("scan booking interaction: %w", err))
		}
		stats[cleanerID] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewBookingFetchError(fmt.Errorf("booking interaction rows: %w", err))
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT DISTINCT cv.cleaner_id
		FROM content_interactions ci
		JOIN content_videos cv ON cv.id = ci.content_id
		WHERE ci.user_id = $1 AND cv.cleaner_id = ANY($2)`,
		userID, pq.Array(cleanerIDs),
	)
	if err != nil {
		return nil, apperrors.NewBookingFetchError(fmt.Errorf("content interactions: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var cleanerID string
		if err := rows.Scan(&cleanerID); err != nil {
			return nil, apperrors.NewBookingFetchError(fmt.Errorf("scan content interaction: %w", err))
		}
		st := stats[cleanerID]
		st.HasContentInteraction = true
		stats[cleanerID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewBookingFetchError(fmt.Errorf("content interaction rows: %w", err))
	}

	return stats, nil
}

func (s *PostgresStore) scanContentRows(rows *sql.Rows) ([]models.ContentItem, error) {
	var out []models.ContentItem
	for rows.Next() {
		var item models.ContentItem
		var (
			description    sql.NullString
			thumbnailURL   sql.NullString
			priceType      sql.NullString
			basePrice      sql.NullInt64
			estimatedHours sql.NullFloat64
			avatarURL      sql.NullString
			rating         sql.NullFloat64
			lat, lng       sql.NullFloat64
			specialties    pq.StringArray
		)

		err := rows.Scan(
			&item.ID, &item.CleanerID, &item.Title, &description, &item.MediaURL,
			&thumbnailURL, &priceType, &basePrice, &estimatedHours,
			&item.IsBookable, &item.ViewCount, &item.LikeCount, &item.CommentCount,
			&item.CreatedAt,
			&item.Cleaner.Name, &avatarURL, &rating, &item.Cleaner.TotalJobs,
			&item.Cleaner.HourlyRate, &item.Cleaner.IsAvailable, &lat, &lng,
			&specialties,
		)
		if err != nil {
			return nil, apperrors.NewContentFetchError(fmt.Errorf("scan content row: %w", err))
		}

		item.Cleaner.ID = item.CleanerID
		item.Description = description.String
		item.ThumbnailURL = thumbnailURL.String
		if priceType.Valid {
			pt := priceType.String
			item.PriceType = &pt
		}
		if basePrice.Valid {
			bp := int(basePrice.Int64)
			item.BasePrice = &bp
		}
		if estimatedHours.Valid {
			eh := estimatedHours.Float64
			item.EstimatedHours = &eh
		}
		item.Cleaner.AvatarURL = avatarURL.String
		if rating.Valid {
			r := rating.Float64
			item.Cleaner.RatingAverage = &r
		}
		// Both coordinates must be present for proximity scoring; anything
		// less degrades to the neutral score downstream.
		if lat.Valid && lng.Valid {
			item.Cleaner.Location = &models.GeoPoint{
				Latitude:  lat.Float64,
				Longitude: lng.Float64,
			}
		}
		item.Cleaner.Specialties = []string(specialties)

		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewContentFetchError(fmt.Errorf("content rows: %w", err))
	}
	return out, nil
}
