package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/store"
)

// ApproveOptions modifies an approval.
type ApproveOptions struct {
	// CrossCommunity allows linking to a vendor of another community.
	CrossCommunity bool
}

// CreateVendorRequest is the input of CreateVendorFromSurvey.
type CreateVendorRequest struct {
	SurveyName string   `json:"survey_name"`
	Category   string   `json:"category"`
	VendorName string   `json:"vendor_name"`
	Phone      string   `json:"phone,omitempty"`
	Email      string   `json:"email,omitempty"`
	Website    string   `json:"website,omitempty"`
	Address    string   `json:"address,omitempty"`
	Community  string   `json:"community"`
	PlaceID    string   `json:"place_id,omitempty"`
	RatingIDs  []string `json:"rating_ids,omitempty"`
}

// Validate checks the request without touching the store.
func (r CreateVendorRequest) Validate() error {
	if strings.TrimSpace(r.VendorName) == "" {
		return invalid("vendor_name", "required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return invalid("category", "required")
	}
	if err := validCommunity(r.Community); err != nil {
		return err
	}
	if len(r.RatingIDs) == 0 && strings.TrimSpace(r.SurveyName) == "" {
		return invalid("survey_name", "required when rating_ids is empty")
	}
	return nil
}

// Approver applies link actions to staged ratings.
type Approver struct {
	store   store.Store
	matcher *Matcher
	log     *zap.Logger
}

// NewApprover creates an Approver. Successful mutations invalidate the
// matcher's candidate cache.
func NewApprover(st store.Store, m *Matcher) *Approver {
	return &Approver{
		store:   st,
		matcher: m,
		log:     zap.L().With(zap.String("component", "reconcile.approver")),
	}
}

func (a *Approver) mutated() {
	if a.matcher != nil {
		a.matcher.Invalidate()
	}
}

// Approve links ratingIDs to vendorID and marks them consumed, returning the
// number of rows updated. An empty id list is a no-op. Rows already consumed
// or outside community are left alone.
func (a *Approver) Approve(ctx context.Context, community string, ratingIDs []string, vendorID string, opts ApproveOptions) (int64, error) {
	if len(ratingIDs) == 0 {
		return 0, nil
	}
	if err := validCommunity(community); err != nil {
		return 0, err
	}
	if strings.TrimSpace(vendorID) == "" {
		return 0, invalid("vendor_id", "required")
	}

	v, err := a.store.GetVendor(ctx, vendorID)
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: approve: load vendor")
	}
	cross := v.Community != community
	if cross && !opts.CrossCommunity {
		return 0, eris.Wrapf(ErrCrossCommunity, "reconcile: vendor %s is in %s, not %s", v.ID, v.Community, community)
	}

	n, err := a.store.ApproveRatings(ctx, store.ApproveParams{
		Community:      community,
		RatingIDs:      ratingIDs,
		VendorID:       v.ID,
		CrossCommunity: cross,
	})
	if err != nil {
		return 0, eris.Wrap(err, "reconcile: approve")
	}

	fields := []zap.Field{
		zap.String("community", community),
		zap.String("vendor_id", v.ID),
		zap.Int("requested", len(ratingIDs)),
		zap.Int64("updated", n),
	}
	if cross {
		a.log.Warn("cross-community link", append(fields, zap.String("vendor_community", v.Community))...)
	} else {
		a.log.Info("ratings approved", fields...)
	}

	if n > 0 {
		a.mutated()
	}
	return n, nil
}

// CreateVendorFromSurvey creates a vendor in req.Community and links the
// matching pending ratings to it in one transaction. It returns the new
// vendor id. If nothing can be linked the vendor is not kept.
func (a *Approver) CreateVendorFromSurvey(ctx context.Context, req CreateVendorRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	v := &model.Vendor{
		Name:      strings.TrimSpace(req.VendorName),
		Category:  req.Category,
		Community: req.Community,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Website:   strings.TrimSpace(req.Website),
		Address:   strings.TrimSpace(req.Address),
		PlaceID:   strings.TrimSpace(req.PlaceID),
	}
	surveyName := req.SurveyName
	if surveyName == "" {
		surveyName = req.VendorName
	}

	n, err := a.store.CreateVendorAndLink(ctx, v, store.LinkParams{
		Community:  req.Community,
		RatingIDs:  req.RatingIDs,
		SurveyName: surveyName,
		Category:   req.Category,
	})
	if err != nil {
		return "", eris.Wrap(err, "reconcile: create vendor from survey")
	}

	a.log.Info("vendor created from survey",
		zap.String("community", req.Community),
		zap.String("vendor_id", v.ID),
		zap.String("survey_name", surveyName),
		zap.Int64("linked", n),
	)
	a.mutated()
	return v.ID, nil
}

// CopyVendorToCommunity duplicates the source vendor into target and returns
// the copy's id. The source is never modified. If target already has a
// vendor with the same normalized name and category, its id is returned.
func (a *Approver) CopyVendorToCommunity(ctx context.Context, sourceID, target string) (string, error) {
	if strings.TrimSpace(sourceID) == "" {
		return "", invalid("source_vendor_id", "required")
	}
	if err := validCommunity(target); err != nil {
		return "", invalid("target_community", "required")
	}

	src, err := a.store.GetVendor(ctx, sourceID)
	if err != nil {
		return "", eris.Wrap(err, "reconcile: copy: load source vendor")
	}

	existing, err := a.store.FindVendor(ctx, target, src.Name, src.Category)
	switch {
	case err == nil:
		a.log.Info("copy target already exists",
			zap.String("source_vendor_id", src.ID),
			zap.String("vendor_id", existing.ID),
			zap.String("community", target),
		)
		return existing.ID, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", eris.Wrap(err, "reconcile: copy: look up target")
	}

	cp := src.CopyInto(target)
	if err := a.store.CreateVendor(ctx, cp); err != nil {
		return "", eris.Wrap(err, "reconcile: copy vendor")
	}

	a.log.Info("vendor copied",
		zap.String("source_vendor_id", src.ID),
		zap.String("source_community", src.Community),
		zap.String("vendor_id", cp.ID),
		zap.String("community", target),
	)
	a.mutated()
	return cp.ID, nil
}

// CopyAndLink copies the source vendor into target and approves ratingIDs
// against the copy.
func (a *Approver) CopyAndLink(ctx context.Context, sourceID, target string, ratingIDs []string) (string, int64, error) {
	id, err := a.CopyVendorToCommunity(ctx, sourceID, target)
	if err != nil {
		return "", 0, err
	}
	n, err := a.Approve(ctx, target, ratingIDs, id, ApproveOptions{})
	if err != nil {
		return id, 0, err
	}
	return id, n, nil
}

// SearchVendors lists visible vendors of any community by category and name.
func (a *Approver) SearchVendors(ctx context.Context, category, query string, limit int) ([]model.Vendor, error) {
	vs, err := a.store.ListVendors(ctx, model.VendorFilter{Category: category, Query: query, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: search vendors")
	}
	return vs, nil
}
