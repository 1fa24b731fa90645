// internal/models/content.go
package models

import "time"

// PriceType describes how a content item is priced when it is bookable.
type PriceType string

const (
	PriceTypeFixed    PriceType = "fixed"
	PriceTypeEstimate PriceType = "estimate"
	PriceTypeHourly   PriceType = "hourly"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ContentItem is a single cleaner video with its joined cleaner profile.
// Items are read-only snapshots hydrated fresh per ranking call.
type ContentItem struct {
	ID           string  `json:"id"`
	CleanerID    string  `json:"cleanerId"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	MediaURL     string  `json:"mediaUrl"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	PriceType    *string `json:"priceType,omitempty"`
	// BasePrice is in minor currency units (cents).
	BasePrice      *int      `json:"basePrice,omitempty"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
	IsBookable     bool      `json:"isBookable"`
	ViewCount      int       `json:"viewCount"`
	LikeCount      int       `json:"likeCount"`
	CommentCount   int       `json:"commentCount"`
	CreatedAt      time.Time `json:"createdAt"`

	Cleaner Cleaner `json:"cleaner"`
}

// Cleaner is the owning provider profile joined into each content item.
// Optional fields degrade to neutral scoring when absent, they never error.
type Cleaner struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	RatingAverage *float64  `json:"ratingAverage,omitempty"`
	TotalJobs     int       `json:"totalJobs"`
	HourlyRate    int       `json:"hourlyRate"`
	IsAvailable   bool      `json:"isAvailable"`
	Location      *GeoPoint `json:"location,omitempty"`
	Specialties   []string  `json:"specialties,omitempty"`
	// DistanceKm is only meaningful when a viewer location was supplied.
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// RankingFactors is the per-item breakdown of the 8 sub-scores, each in [0,1].
type RankingFactors struct {
	Proximity           float64 `json:"proximity"`
	Engagement          float64 `json:"engagement"`
	Recency             float64 `json:"recency"`
	PersonalInteraction float64 `json:"personalInteraction"`
	ServiceRelevance    float64 `json:"serviceRelevance"`
	CleanerRating       float64 `json:"cleanerRating"`
	Availability        float64 `json:"availability"`
	PriceMatch          float64 `json:"priceMatch"`
}

// ScoredItem is a content item with its final ranking score attached.
// Factors is nil when the score came verbatim from the ranked-feed RPC,
// since the remote side computed it.
type ScoredItem struct {
	ContentItem
	RankingScore float64         `json:"rankingScore"`
	Factors      *RankingFactors `json:"rankingFactors,omitempty"`
}

// RankedRow is one row of the remote ranked-feed procedure's result set.
type RankedRow struct {
	ContentID  string   `json:"contentId"`
	RankScore  float64  `json:"rankScore"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}
