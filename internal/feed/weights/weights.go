// internal/feed/weights/weights.go
package weights

import "chorehero-feed/internal/models"

// Profile is a named set of 8 coefficients, one per ranking factor. The
// tables are kept literally as tuned upstream and are not renormalized,
// since renormalizing would silently change ranking behavior.
type Profile struct {
	Proximity           float64
	Engagement          float64
	Recency             float64
	PersonalInteraction float64
	ServiceRelevance    float64
	CleanerRating       float64
	Availability        float64
	PriceMatch          float64
}

var profiles = map[models.SortPreference]Profile{
	models.SortBalanced: {
		Proximity:           0.25,
		Engagement:          0.15,
		Recency:             0.15,
		PersonalInteraction: 0.10,
		ServiceRelevance:    0.15,
		CleanerRating:       0.10,
		Availability:        0.05,
		PriceMatch:          0.05,
	},
	models.SortProximity: {
		Proximity:           0.40,
		Engagement:          0.10,
		Recency:             0.10,
		PersonalInteraction: 0.10,
		ServiceRelevance:    0.10,
		CleanerRating:       0.10,
		Availability:        0.05,
		PriceMatch:          0.05,
	},
	models.SortEngagement: {
		Proximity:           0.15,
		Engagement:          0.30,
		Recency:             0.20,
		PersonalInteraction: 0.15,
		ServiceRelevance:    0.10,
		CleanerRating:       0.05,
		Availability:        0.03,
		PriceMatch:          0.02,
	},
	models.SortPrice: {
		Proximity:           0.20,
		Engagement:          0.10,
		Recency:             0.10,
		PersonalInteraction: 0.10,
		ServiceRelevance:    0.15,
		CleanerRating:       0.10,
		Availability:        0.05,
		PriceMatch:          0.20,
	},
}

// Get returns the weight profile for a sort preference. Unknown or empty
// preferences fall back to balanced. This is a pure lookup with no error path.
func Get(pref models.SortPreference) Profile {
	if p, ok := profiles[pref]; ok {
		return p
	}
	return profiles[models.SortBalanced]
}
