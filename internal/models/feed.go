// internal/models/feed.go
package models

// SortPreference selects which weight profile combines the ranking factors.
type SortPreference string

const (
	SortBalanced   SortPreference = "balanced"
	SortProximity  SortPreference = "proximity"
	SortEngagement SortPreference = "engagement"
	SortPrice      SortPreference = "price"
)

// FeedOptions are the caller-supplied knobs for a ranked feed request.
// Zero values fall back to the documented defaults (limit 20, balanced sort).
type FeedOptions struct {
	Limit          int            `json:"limit,omitempty"`
	SortPreference SortPreference `json:"sortPreference,omitempty"`
	ServiceFilter  string         `json:"serviceFilter,omitempty"`
	Budget         *BudgetRange   `json:"budgetRange,omitempty"`
}
