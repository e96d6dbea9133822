package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/courtneys-list/vendors/internal/match"
	"github.com/courtneys-list/vendors/internal/model"
)

// prepareRating fills identity and timestamps and canonicalizes the
// category before a rating is written.
func prepareRating(r *model.StagedRating) *model.StagedRating {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	r.Category = match.NormalizeCategory(r.Category)
	return r
}

func prepareVendor(v *model.Vendor) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	v.Category = match.NormalizeCategory(v.Category)
	for i, c := range v.SecondaryCategories {
		v.SecondaryCategories[i] = match.NormalizeCategory(c)
	}
	if v.SecondaryCategories == nil {
		v.SecondaryCategories = []string{}
	}
}
