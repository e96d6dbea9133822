// Package store persists respondents, staged ratings, vendors and
// preferences. PostgresStore is the production backend; SQLiteStore serves
// local use and tests with the same semantics.
package store

import (
	"context"
	"errors"

	"github.com/courtneys-list/vendors/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrNothingToLink is returned by CreateVendorAndLink when no pending
	// rating was linked; the vendor insert is rolled back.
	ErrNothingToLink = errors.New("store: no pending ratings to link")
)

// ApproveParams links staged ratings to a vendor. Only rows whose respondent
// is in Community and which are still unconsumed are touched.
type ApproveParams struct {
	Community      string
	RatingIDs      []string
	VendorID       string
	CrossCommunity bool
}

// LinkParams selects the ratings linked to a newly created vendor. When
// RatingIDs is empty, the pending rows of Community whose normalized name
// and category equal SurveyName and Category are linked.
type LinkParams struct {
	Community  string
	RatingIDs  []string
	SurveyName string
	Category   string
}

// Store defines the persistence interface for the reconciliation pipeline.
type Store interface {
	// Respondents
	UpsertRespondent(ctx context.Context, r *model.Respondent) error
	ListRespondents(ctx context.Context, community string) ([]model.Respondent, error)

	// Staged ratings
	StageRatings(ctx context.Context, ratings []model.StagedRating) (int64, error)
	PendingRatings(ctx context.Context, community string) ([]model.StagedRating, error)
	RatingCounts(ctx context.Context, community string) (model.Counts, error)
	ApproveRatings(ctx context.Context, p ApproveParams) (int64, error)

	// Vendors
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	ListVendors(ctx context.Context, filter model.VendorFilter) ([]model.Vendor, error)
	FindVendor(ctx context.Context, community, name, category string) (*model.Vendor, error)
	CreateVendor(ctx context.Context, v *model.Vendor) error
	CreateVendorAndLink(ctx context.Context, v *model.Vendor, link LinkParams) (int64, error)

	// Preferences
	GetPreference(ctx context.Context, key string) (*model.Preference, error)
	SetPreference(ctx context.Context, pref model.Preference) error
	DeletePreference(ctx context.Context, key string) error
	DeleteExpiredPreferences(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
