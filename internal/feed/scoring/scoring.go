// internal/feed/scoring/scoring.go
package scoring

import (
	"math"
	"time"

	"chorehero-feed/internal/feed/weights"
	"chorehero-feed/internal/models"
)

// NeutralScore is substituted whenever the data a factor needs is absent
// (missing coordinates, rating, specialties, budget). Missing data is not
// an error: scoring proceeds with the neutral value.
const NeutralScore = 0.5

const (
	// earthRadiusKm is the haversine Earth radius.
	earthRadiusKm = 6371.0
	// proximityCutoffKm is the distance at which proximity bottoms out at 0.
	proximityCutoffKm = 50.0
	// engagementCeiling treats a 10% blended engagement rate as a full score.
	engagementCeiling = 0.1
	// contentInteractionScore is the flat score for viewers that liked,
	// commented on, or watched a cleaner's content without ever booking.
	contentInteractionScore = 0.3
	// unavailableScore keeps unavailable cleaners surfaced, just deprioritized.
	unavailableScore = 0.3
)

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ProximityScore maps viewer-to-cleaner distance linearly onto [0,1]:
// 1 at 0 km, 0 at 50 km or beyond. Either location missing scores neutral.
func ProximityScore(viewer, cleaner *models.GeoPoint) float64 {
	if viewer == nil || cleaner == nil {
		return NeutralScore
	}
	distance := Haversine(*viewer, *cleaner)
	return clamp01((proximityCutoffKm - distance) / proximityCutoffKm)
}

// EngagementScore blends like and comment rates (60/40) and normalizes
// against the 10% ceiling. Zero views scores zero, not an error.
func EngagementScore(views, likes, comments int) float64 {
	if views <= 0 {
		return 0
	}
	likeRate := float64(likes) / float64(views)
	commentRate := float64(comments) / float64(views)
	blended := 0.6*likeRate + 0.4*commentRate
	return clamp01(blended / engagementCeiling)
}

// RecencyScore is a step function over content age. The breakpoints are
// load-bearing: downstream tests pin them, do not smooth into a decay curve.
func RecencyScore(createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	switch {
	case ageHours <= 24:
		return 1.0
	case ageHours <= 168:
		return 0.8
	case ageHours <= 720:
		return 0.6
	default:
		return 0.4
	}
}

// PersonalInteractionScore scores prior viewer-cleaner history: completed
// bookings score by the average rating the viewer gave, content-only
// interaction scores a flat constant, no history scores zero.
func PersonalInteractionScore(stats *models.InteractionStats) float64 {
	if stats == nil {
		return 0
	}
	if stats.CompletedBookings > 0 {
		return clamp01(stats.AvgRatingGiven / 5.0)
	}
	if stats.HasContentInteraction {
		return contentInteractionScore
	}
	return 0
}

// ServiceRelevanceScore is the overlap between the cleaner's specialties and
// the viewer's preferred services. Either side empty scores neutral.
func ServiceRelevanceScore(specialties, preferred []string) float64 {
	if len(specialties) == 0 || len(preferred) == 0 {
		return NeutralScore
	}

	prefSet := make(map[string]struct{}, len(preferred))
	for _, p := range preferred {
		prefSet[p] = struct{}{}
	}

	matches := 0
	for _, s := range specialties {
		if _, ok := prefSet[s]; ok {
			matches++
		}
	}

	denom := len(preferred)
	if denom < 1 {
		denom = 1
	}
	return clamp01(float64(matches) / float64(denom))
}

// RatingScore normalizes a 0-5 rating average. Absent rating scores neutral.
func RatingScore(rating *float64) float64 {
	if rating == nil {
		return NeutralScore
	}
	return clamp01(*rating / 5.0)
}

// AvailabilityScore keeps unavailable cleaners in the feed at a reduced
// score rather than hiding them.
func AvailabilityScore(available bool) float64 {
	if available {
		return 1.0
	}
	return unavailableScore
}

// PriceMatchScore scores an hourly rate against the viewer's budget. In
// range is a full score, under budget is good but not perfect (avoids always
// favoring the cheapest), over budget is penalized at twice the fractional
// overage, floored at 0. No budget or no rate scores neutral.
func PriceMatchScore(hourlyRate int, budget *models.BudgetRange) float64 {
	if budget == nil || hourlyRate <= 0 {
		return NeutralScore
	}
	rate := float64(hourlyRate)
	min := float64(budget.Min)
	max := float64(budget.Max)

	switch {
	case rate >= min && rate <= max:
		return 1.0
	case rate < min:
		return 0.8
	default:
		if max <= 0 {
			return 0
		}
		return math.Max(0, 1-2*((rate-max)/max))
	}
}

// Context carries the viewer-side inputs to per-item scoring.
type Context struct {
	ViewerLocation *models.GeoPoint
	Profile        *models.PreferenceProfile
	// Interactions maps cleaner id to the viewer's prior history with them.
	Interactions map[string]models.InteractionStats
	Now          time.Time
}

func (c *Context) preferredServices() []string {
	if c.Profile == nil {
		return nil
	}
	return c.Profile.PreferredServices
}

func (c *Context) budget() *models.BudgetRange {
	if c.Profile == nil {
		return nil
	}
	return c.Profile.Budget
}

func (c *Context) interactions(cleanerID string) *models.InteractionStats {
	if c.Interactions == nil {
		return nil
	}
	if stats, ok := c.Interactions[cleanerID]; ok {
		return &stats
	}
	return nil
}

// ScoreItem computes the 8 sub-scores for one candidate and combines them
// with the given weight profile into a single ranking score.
func ScoreItem(item *models.ContentItem, sctx *Context, w weights.Profile) (float64, models.RankingFactors) {
	factors := models.RankingFactors{
		Proximity:           ProximityScore(sctx.ViewerLocation, item.Cleaner.Location),
		Engagement:          EngagementScore(item.ViewCount, item.LikeCount, item.CommentCount),
		Recency:             RecencyScore(item.CreatedAt, sctx.Now),
		PersonalInteraction: PersonalInteractionScore(sctx.interactions(item.CleanerID)),
		ServiceRelevance:    ServiceRelevanceScore(item.Cleaner.Specialties, sctx.preferredServices()),
		CleanerRating:       RatingScore(item.Cleaner.RatingAverage),
		Availability:        AvailabilityScore(item.Cleaner.IsAvailable),
		PriceMatch:          PriceMatchScore(item.Cleaner.HourlyRate, sctx.budget()),
	}

	score := factors.Proximity*w.Proximity +
		factors.Engagement*w.Engagement +
		factors.Recency*w.Recency +
		factors.PersonalInteraction*w.PersonalInteraction +
		factors.ServiceRelevance*w.ServiceRelevance +
		factors.CleanerRating*w.CleanerRating +
		factors.Availability*w.Availability +
		factors.PriceMatch*w.PriceMatch

	return score, factors
}
