// internal/models/booking.go
package models

// BookingRecord is one row of a customer's booking history, reduced to the
// fields the preference profile builder reads.
type BookingRecord struct {
	ServiceType string   `json:"serviceType"`
	RatingGiven *float64 `json:"ratingGiven,omitempty"`
}

// BudgetRange is a customer's hourly-rate budget in whole currency units.
type BudgetRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// CustomerProfile carries the optional profile fields merged into the
// preference profile.
type CustomerProfile struct {
	UserID string       `json:"userId"`
	Budget *BudgetRange `json:"budget,omitempty"`
}

// PreferenceProfile is the derived per-viewer summary used by the local
// ranking path. It is never persisted by the ranking core.
type PreferenceProfile struct {
	// PreferredServices holds up to 3 service types, most frequently booked
	// first, ties broken by recency order.
	PreferredServices []string     `json:"preferredServices"`
	BookingCount      int          `json:"bookingCount"`
	Budget            *BudgetRange `json:"budget,omitempty"`
}

// InteractionStats summarizes a viewer's prior history with one cleaner,
// backing the personal-interaction factor.
type InteractionStats struct {
	CompletedBookings     int     `json:"completedBookings"`
	AvgRatingGiven        float64 `json:"avgRatingGiven"`
	HasContentInteraction bool    `json:"hasContentInteraction"`
}
