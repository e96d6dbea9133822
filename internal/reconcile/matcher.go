// Package reconcile turns pending survey ratings into vendor links: it
// computes per-community candidate sets and progress, and applies the
// approve, create and copy actions an admin takes on them.
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/match"
	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/store"
)

// MatcherConfig tunes the matcher.
type MatcherConfig struct {
	FuzzyThreshold  float64
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// Matcher computes candidate sets and progress for a community.
type Matcher struct {
	store store.Store
	opts  match.Options
	cache *CandidateCache
}

// NewMatcher creates a Matcher. A zero CacheTTL disables caching.
func NewMatcher(st store.Store, cfg MatcherConfig) *Matcher {
	return &Matcher{
		store: st,
		opts:  match.Options{Threshold: cfg.FuzzyThreshold},
		cache: NewCandidateCache(cfg.CacheMaxEntries, cfg.CacheTTL),
	}
}

// Cache returns the candidate cache, nil when disabled.
func (m *Matcher) Cache() *CandidateCache {
	return m.cache
}

// Invalidate marks every cached candidate set stale.
func (m *Matcher) Invalidate() {
	m.cache.Bump()
}

func validCommunity(community string) error {
	if strings.TrimSpace(community) == "" {
		return invalid("community", "required")
	}
	return nil
}

// Candidates returns the exact, fuzzy and unmatched sets for community.
// A failed fetch yields an error and no partial result.
func (m *Matcher) Candidates(ctx context.Context, community string) (match.Result, error) {
	if err := validCommunity(community); err != nil {
		return match.Result{}, err
	}
	if res, ok := m.cache.Get(community); ok {
		return res, nil
	}
	version := m.cache.Version()

	ratings, err := m.store.PendingRatings(ctx, community)
	if err != nil {
		return match.Result{}, eris.Wrapf(err, "reconcile: fetch pending ratings for %s", community)
	}
	vendors, err := m.store.ListVendors(ctx, model.VendorFilter{})
	if err != nil {
		return match.Result{}, eris.Wrap(err, "reconcile: fetch vendors")
	}

	res := match.Partition(community, ratings, vendors, m.opts)
	m.cache.Put(community, version, res)

	zap.L().Debug("reconcile: candidates computed",
		zap.String("community", community),
		zap.Int("pending", len(ratings)),
		zap.Int("exact", len(res.Exact)),
		zap.Int("fuzzy", len(res.Fuzzy)),
		zap.Int("unmatched", len(res.Unmatched)),
	)
	return res, nil
}

// ExactMatches returns get_exact_vendor_matches for community.
func (m *Matcher) ExactMatches(ctx context.Context, community string) ([]model.ExactMatch, error) {
	res, err := m.Candidates(ctx, community)
	if err != nil {
		return nil, err
	}
	return res.Exact, nil
}

// FuzzyMatches returns get_fuzzy_vendor_matches for community.
func (m *Matcher) FuzzyMatches(ctx context.Context, community string) ([]model.FuzzyMatch, error) {
	res, err := m.Candidates(ctx, community)
	if err != nil {
		return nil, err
	}
	return res.Fuzzy, nil
}

// Unmatched returns get_unmatched_vendors for community.
func (m *Matcher) Unmatched(ctx context.Context, community string) ([]model.UnmatchedVendor, error) {
	res, err := m.Candidates(ctx, community)
	if err != nil {
		return nil, err
	}
	return res.Unmatched, nil
}

// Progress returns get_vendor_matching_progress for community.
func (m *Matcher) Progress(ctx context.Context, community string) (model.Progress, error) {
	if err := validCommunity(community); err != nil {
		return model.Progress{}, err
	}
	counts, err := m.store.RatingCounts(ctx, community)
	if err != nil {
		return model.Progress{}, eris.Wrapf(err, "reconcile: fetch counts for %s", community)
	}
	res, err := m.Candidates(ctx, community)
	if err != nil {
		return model.Progress{}, err
	}
	return match.Summarize(counts, res), nil
}
