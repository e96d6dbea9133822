package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtneys-list/vendors/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rating(id, name, category string) model.StagedRating {
	return model.StagedRating{ID: id, VendorName: name, Category: category, CreatedAt: t0}
}

func vendor(id, name, category, community string) model.Vendor {
	return model.Vendor{ID: id, Name: name, Category: category, Community: community, CreatedAt: t0}
}

func TestPartition_ExactSameCommunity(t *testing.T) {
	res := Partition("Bridges",
		[]model.StagedRating{rating("r1", "ABC Pool", "Pool")},
		[]model.Vendor{vendor("v1", "ABC Pool", "Pool", "Bridges")},
		Options{})

	require.Len(t, res.Exact, 1)
	assert.Empty(t, res.Fuzzy)
	assert.Empty(t, res.Unmatched)

	m := res.Exact[0]
	assert.Equal(t, "v1", m.MatchedVendorID)
	assert.True(t, m.IsSameCommunity)
	assert.Equal(t, []string{"r1"}, m.RatingIDs)
	assert.Equal(t, 1, m.MentionCount)
}

func TestPartition_ExactOtherCommunity(t *testing.T) {
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "ABC Pool", "Pool")},
		[]model.Vendor{vendor("v1", "ABC Pool", "Pool", "Bridges")},
		Options{})

	require.Len(t, res.Exact, 1)
	assert.False(t, res.Exact[0].IsSameCommunity)
	assert.Equal(t, "Bridges", res.Exact[0].MatchedVendorCommunity)
}

func TestPartition_ExactPrefersSameCommunity(t *testing.T) {
	older := vendor("v1", "ABC Pool", "Pool", "Bridges")
	older.CreatedAt = t0.Add(-time.Hour)
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "ABC Pool", "Pool")},
		[]model.Vendor{older, vendor("v2", "ABC Pool", "Pool", "Oaks")},
		Options{})

	require.Len(t, res.Exact, 1)
	assert.Equal(t, "v2", res.Exact[0].MatchedVendorID)
}

func TestPartition_ExactOldestAcrossCommunities(t *testing.T) {
	newer := vendor("v2", "ABC Pool", "Pool", "Lakes")
	newer.CreatedAt = t0.Add(time.Hour)
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "ABC Pool", "Pool")},
		[]model.Vendor{newer, vendor("v1", "ABC Pool", "Pool", "Bridges")},
		Options{})

	require.Len(t, res.Exact, 1)
	assert.Equal(t, "v1", res.Exact[0].MatchedVendorID)
}

func TestPartition_ExactSecondaryCategory(t *testing.T) {
	v := vendor("v1", "Handy Andy", "Handyman", "Oaks")
	v.SecondaryCategories = []string{"Painting"}
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "handy andy", "painting")},
		[]model.Vendor{v},
		Options{})

	require.Len(t, res.Exact, 1)
	assert.Equal(t, "Painting", res.Exact[0].Category)
}

func TestPartition_GroupingOrderIndependent(t *testing.T) {
	a := rating("A", "Joe's Pool", "Pool")
	b := rating("B", "Joe's Pool", "Pool")
	vendors := []model.Vendor{vendor("v1", "Joe's Pool", "Pool", "Oaks")}

	r1 := Partition("Oaks", []model.StagedRating{a, b}, vendors, Options{})
	r2 := Partition("Oaks", []model.StagedRating{b, a}, vendors, Options{})

	require.Len(t, r1.Exact, 1)
	assert.Equal(t, []string{"A", "B"}, r1.Exact[0].RatingIDs)
	assert.Equal(t, r1, r2)
}

func TestPartition_NormalizedGrouping(t *testing.T) {
	res := Partition("Oaks", []model.StagedRating{
		rating("r1", "Joe's Pool", "Pool"),
		rating("r2", "JOES POOL", "pool"),
		rating("r3", "joes-pool", "Pool"),
	}, nil, Options{})

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, 3, res.Unmatched[0].MentionCount)
	assert.Equal(t, "Joe's Pool", res.Unmatched[0].VendorName)
}

func TestPartition_FuzzyAbbreviation(t *testing.T) {
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "AC Pool Svc", "Pool")},
		[]model.Vendor{vendor("v1", "A.C. Pool Service", "Pool", "Oaks")},
		Options{})

	assert.Empty(t, res.Exact)
	assert.Empty(t, res.Unmatched)
	require.Len(t, res.Fuzzy, 1)

	f := res.Fuzzy[0]
	assert.Equal(t, "v1", f.SuggestedVendorID)
	assert.True(t, f.IsSameCommunity)
	assert.True(t, f.CategoryMatches)
	assert.Greater(t, f.MatchConfidence, 0.0)
	assert.Less(t, f.MatchConfidence, 1.0)
	assert.Equal(t, []string{"r1"}, f.AllRatingIDs)
}

func TestPartition_FuzzyCategoryMismatchIsWarning(t *testing.T) {
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "Sparkle Services", "Cleaning")},
		[]model.Vendor{vendor("v1", "Sparkle Services", "Pool", "Oaks")},
		Options{})

	assert.Empty(t, res.Exact)
	require.Len(t, res.Fuzzy, 1)
	assert.False(t, res.Fuzzy[0].CategoryMatches)
	assert.Equal(t, maxFuzzyConfidence, res.Fuzzy[0].MatchConfidence)
	assert.Less(t, res.Fuzzy[0].MatchConfidence, 1.0)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.3, 0.3},
		{0.456, 0.46},
		{0.996, maxFuzzyConfidence},
		{1, maxFuzzyConfidence},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, confidence(tt.score), 1e-9, "score %v", tt.score)
	}
}

func TestPartition_FuzzyTieBreakSameCommunity(t *testing.T) {
	res := Partition("Oaks",
		[]model.StagedRating{rating("r1", "Sparkle Services", "Cleaning")},
		[]model.Vendor{
			vendor("v1", "Sparkle Services", "Pool", "Bridges"),
			vendor("v2", "Sparkle Services", "Pool", "Oaks"),
		},
		Options{})

	require.Len(t, res.Fuzzy, 1)
	assert.Equal(t, "v2", res.Fuzzy[0].SuggestedVendorID)
}

func TestPartition_FuzzyThreshold(t *testing.T) {
	ratings := []model.StagedRating{rating("r1", "AC Pool Svc", "Pool")}
	vendors := []model.Vendor{vendor("v1", "A.C. Pool Service", "Pool", "Oaks")}

	res := Partition("Oaks", ratings, vendors, Options{Threshold: 0.9})
	assert.Empty(t, res.Fuzzy)
	require.Len(t, res.Unmatched, 1)
}

func TestPartition_Unmatched(t *testing.T) {
	res := Partition("Oaks", []model.StagedRating{
		rating("r1", "Unique Gardener", "Landscaping"),
		rating("r2", "unique gardener", "Landscaping"),
	}, []model.Vendor{vendor("v1", "ABC Pool", "Pool", "Oaks")}, Options{})

	assert.Empty(t, res.Exact)
	assert.Empty(t, res.Fuzzy)
	require.Len(t, res.Unmatched, 1)
	u := res.Unmatched[0]
	assert.Equal(t, 2, u.MentionCount)
	assert.Equal(t, "Landscaping", u.VendorCategory)
	assert.Equal(t, []string{"r1", "r2"}, u.AllRatingIDs)
}

func TestPartition_UnmatchedMergesCategories(t *testing.T) {
	r1 := rating("r1", "Mike Fixit", "Handyman")
	r1.Phone = "555-0100"
	r2 := rating("r2", "Mike Fixit", "Handyman")
	r2.Phone = "555-0100"
	r3 := rating("r3", "Mike Fixit", "Painting")

	res := Partition("Oaks", []model.StagedRating{r1, r2, r3}, nil, Options{})

	require.Len(t, res.Unmatched, 1)
	u := res.Unmatched[0]
	assert.Equal(t, 3, u.MentionCount)
	assert.Equal(t, "Handyman", u.VendorCategory)
	assert.Equal(t, "555-0100", u.VendorPhone)
}

func TestPartition_SkipsConsumedAndHidden(t *testing.T) {
	consumed := rating("r1", "ABC Pool", "Pool")
	consumed.Rated = true
	hidden := vendor("v2", "Hidden Pool", "Pool", "Oaks")
	hidden.Hidden = true

	res := Partition("Oaks", []model.StagedRating{
		consumed,
		rating("r2", "Hidden Pool", "Pool"),
	}, []model.Vendor{vendor("v1", "ABC Pool", "Pool", "Oaks"), hidden}, Options{})

	assert.Empty(t, res.Exact)
	for _, f := range res.Fuzzy {
		assert.NotEqual(t, "v2", f.SuggestedVendorID)
		assert.NotContains(t, f.AllRatingIDs, "r1")
	}
	for _, u := range res.Unmatched {
		assert.NotContains(t, u.AllRatingIDs, "r1")
	}
}

func TestPartition_Disjoint(t *testing.T) {
	res := Partition("Oaks", []model.StagedRating{
		rating("r1", "ABC Pool", "Pool"),
		rating("r2", "AC Pool Svc", "Pool"),
		rating("r3", "Unique Gardener", "Landscaping"),
	}, []model.Vendor{
		vendor("v1", "ABC Pool", "Pool", "Oaks"),
		vendor("v2", "A.C. Pool Service", "Pool", "Oaks"),
	}, Options{})

	seen := map[string]int{}
	for _, m := range res.Exact {
		for _, id := range m.RatingIDs {
			seen[id]++
		}
	}
	for _, m := range res.Fuzzy {
		for _, id := range m.AllRatingIDs {
			seen[id]++
		}
	}
	for _, m := range res.Unmatched {
		for _, id := range m.AllRatingIDs {
			seen[id]++
		}
	}
	assert.Equal(t, map[string]int{"r1": 1, "r2": 1, "r3": 1}, seen)
}

func TestPartition_NameWithoutLettersIsUnmatched(t *testing.T) {
	res := Partition("Oaks", []model.StagedRating{
		rating("r1", "...", "Pool"),
		rating("r2", " ... ", "Pool"),
		rating("r3", "--", "HVAC"),
	}, []model.Vendor{
		vendor("v1", "ABC Pool", "Pool", "Oaks"),
	}, Options{})

	assert.Empty(t, res.Exact)
	assert.Empty(t, res.Fuzzy)
	require.Len(t, res.Unmatched, 2)

	byName := map[string]model.UnmatchedVendor{}
	mentions := 0
	for _, u := range res.Unmatched {
		byName[u.VendorName] = u
		mentions += u.MentionCount
	}
	assert.Equal(t, 3, mentions)
	assert.ElementsMatch(t, []string{"r1", "r2"}, byName["..."].AllRatingIDs)
	assert.Equal(t, []string{"r3"}, byName["--"].AllRatingIDs)

	p := Summarize(model.Counts{Respondents: 1, Ratings: 3}, res)
	assert.Equal(t, int64(3), p.NeedsCreation)
	assert.Equal(t, p.UnmatchedReviews, p.NeedsCreation)
}

func TestPartition_EmptyInputs(t *testing.T) {
	res := Partition("Oaks", nil, nil, Options{})
	assert.NotNil(t, res.Exact)
	assert.NotNil(t, res.Fuzzy)
	assert.NotNil(t, res.Unmatched)
}

func TestSummarize(t *testing.T) {
	res := Result{
		Exact:     []model.ExactMatch{{MentionCount: 2}},
		Fuzzy:     []model.FuzzyMatch{{MentionCount: 1}},
		Unmatched: []model.UnmatchedVendor{{MentionCount: 3}},
	}
	p := Summarize(model.Counts{Respondents: 4, Ratings: 9, Consumed: 3}, res)

	assert.Equal(t, int64(4), p.TotalRespondents)
	assert.Equal(t, int64(9), p.TotalReviews)
	assert.Equal(t, int64(3), p.MatchedReviews)
	assert.Equal(t, int64(6), p.UnmatchedReviews)
	assert.Equal(t, int64(2), p.ExactMatchAvailable)
	assert.Equal(t, int64(1), p.FuzzyMatchAvailable)
	assert.Equal(t, int64(3), p.NeedsCreation)
	assert.Equal(t, 33.3, p.PercentComplete)
}

func TestSummarize_NoRatings(t *testing.T) {
	p := Summarize(model.Counts{}, Result{})
	assert.Equal(t, 0.0, p.PercentComplete)
}
