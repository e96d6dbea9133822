// Package model defines the vendor directory and survey staging types.
package model

import (
	"time"
)

// Vendor is the canonical, community-scoped service-provider record.
type Vendor struct {
	ID                  string   `json:"id" db:"id"`
	Name                string   `json:"name" db:"name"`
	Category            string   `json:"category" db:"category"`
	SecondaryCategories []string `json:"secondary_categories,omitempty" db:"secondary_categories"`
	Community           string   `json:"community" db:"community"`

	// Contact
	Phone   string `json:"phone,omitempty" db:"phone"`
	Email   string `json:"email,omitempty" db:"email"`
	Website string `json:"website,omitempty" db:"website"`
	Address string `json:"address,omitempty" db:"address"`
	PlaceID string `json:"place_id,omitempty" db:"place_id"` // external places identifier

	Hidden bool `json:"hidden" db:"hidden"`

	// Aggregates are recomputed by the database, never by the matcher.
	AvgRating   *float64 `json:"avg_rating,omitempty" db:"avg_rating"`
	ReviewCount int      `json:"review_count" db:"review_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InCategory reports whether the vendor serves the given normalized category,
// either as its primary category or as a secondary one.
func (v *Vendor) InCategory(category string) bool {
	if NormalizeCategory(v.Category) == category {
		return true
	}
	for _, c := range v.SecondaryCategories {
		if NormalizeCategory(c) == category {
			return true
		}
	}
	return false
}

// CopyInto returns a new vendor with the same shape scoped to community.
// Identity, aggregates and timestamps are not carried over.
func (v *Vendor) CopyInto(community string) *Vendor {
	secondary := make([]string, len(v.SecondaryCategories))
	copy(secondary, v.SecondaryCategories)
	return &Vendor{
		Name:                v.Name,
		Category:            v.Category,
		SecondaryCategories: secondary,
		Community:           community,
		Phone:               v.Phone,
		Email:               v.Email,
		Website:             v.Website,
		Address:             v.Address,
		PlaceID:             v.PlaceID,
	}
}

// VendorFilter narrows a vendor search.
type VendorFilter struct {
	Category  string `json:"category,omitempty"`
	Query     string `json:"query,omitempty"`
	Community string `json:"community,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}
