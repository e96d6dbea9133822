package match

import (
	"math"
	"sort"
	"strings"

	"github.com/courtneys-list/vendors/internal/model"
)

// Options tunes Partition.
type Options struct {
	// Threshold is the minimum fuzzy score. Zero means DefaultThreshold.
	Threshold float64
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// Result holds the three disjoint candidate sets for a community.
type Result struct {
	Exact     []model.ExactMatch
	Fuzzy     []model.FuzzyMatch
	Unmatched []model.UnmatchedVendor
}

// Group is a set of pending ratings sharing a normalized name and category.
// Raw is set when the name normalizes to nothing; such a group is keyed by
// its lower-cased raw name and is always unmatched.
type Group struct {
	Key
	DisplayName string
	Raw         bool
	RatingIDs   []string
	Phones      []string
}

func groupKey(name, category string) (Key, bool) {
	key := KeyOf(name, category)
	if key.Name != "" {
		return key, false
	}
	key.Name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	return key, true
}

// GroupRatings groups unconsumed ratings by normalized name and category.
// The output is independent of input order: ratings are sorted by creation
// time and id before grouping, and groups are sorted by key.
func GroupRatings(ratings []model.StagedRating) []Group {
	pending := make([]model.StagedRating, 0, len(ratings))
	for _, r := range ratings {
		if r.Rated {
			continue
		}
		pending = append(pending, r)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	type indexKey struct {
		Key
		raw bool
	}
	index := make(map[indexKey]int)
	var groups []Group
	for _, r := range pending {
		key, raw := groupKey(r.VendorName, r.Category)
		ik := indexKey{Key: key, raw: raw}
		i, ok := index[ik]
		if !ok {
			i = len(groups)
			index[ik] = i
			groups = append(groups, Group{Key: key, DisplayName: r.VendorName, Raw: raw})
		}
		groups[i].RatingIDs = append(groups[i].RatingIDs, r.ID)
		if r.Phone != "" {
			groups[i].Phones = append(groups[i].Phones, r.Phone)
		}
	}

	for i := range groups {
		sort.Strings(groups[i].RatingIDs)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].Category < groups[j].Category
	})
	return groups
}

type indexedVendor struct {
	vendor *model.Vendor
	name   string
	grams  trigramSet
}

type vendorIndex struct {
	all    []indexedVendor
	byName map[string][]indexedVendor
}

func newVendorIndex(vendors []model.Vendor) *vendorIndex {
	visible := make([]model.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if v.Hidden {
			continue
		}
		visible = append(visible, v)
	}
	// Oldest first so exact lookups prefer the longest-standing record.
	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].ID < visible[j].ID
	})

	idx := &vendorIndex{byName: make(map[string][]indexedVendor)}
	for i := range visible {
		v := &visible[i]
		name := NormalizeName(v.Name)
		if name == "" {
			continue
		}
		iv := indexedVendor{vendor: v, name: name, grams: trigrams(name)}
		idx.all = append(idx.all, iv)
		idx.byName[name] = append(idx.byName[name], iv)
	}
	return idx
}

// exact returns the vendor with the group's name serving its category,
// preferring the requesting community.
func (idx *vendorIndex) exact(community string, g Group) *model.Vendor {
	var fallback *model.Vendor
	for _, iv := range idx.byName[g.Name] {
		if !iv.vendor.InCategory(g.Category) {
			continue
		}
		if iv.vendor.Community == community {
			return iv.vendor
		}
		if fallback == nil {
			fallback = iv.vendor
		}
	}
	return fallback
}

type fuzzyHit struct {
	vendor          *model.Vendor
	score           float64
	sameCommunity   bool
	categoryMatches bool
}

func (h fuzzyHit) better(o fuzzyHit) bool {
	if h.score != o.score {
		return h.score > o.score
	}
	if h.sameCommunity != o.sameCommunity {
		return h.sameCommunity
	}
	if h.categoryMatches != o.categoryMatches {
		return h.categoryMatches
	}
	return h.vendor.Name < o.vendor.Name
}

// fuzzy returns the best-scoring vendor at or above threshold.
func (idx *vendorIndex) fuzzy(community string, g Group, threshold float64) (fuzzyHit, bool) {
	grams := trigrams(g.Name)
	var best fuzzyHit
	found := false
	for _, iv := range idx.all {
		score := similarity(grams, iv.grams)
		if iv.name == g.Name {
			score = 1
		}
		if score <= 0 || score < threshold {
			continue
		}
		hit := fuzzyHit{
			vendor:          iv.vendor,
			score:           score,
			sameCommunity:   iv.vendor.Community == community,
			categoryMatches: iv.vendor.InCategory(g.Category),
		}
		if !found || hit.better(best) {
			best = hit
			found = true
		}
	}
	return best, found
}

// Partition splits the pending ratings of community into exact, fuzzy and
// unmatched candidates against vendors. Consumed ratings and hidden vendors
// are ignored. Each group lands in exactly one set; exact beats fuzzy.
func Partition(community string, ratings []model.StagedRating, vendors []model.Vendor, opts Options) Result {
	idx := newVendorIndex(vendors)
	threshold := opts.threshold()

	res := Result{
		Exact:     []model.ExactMatch{},
		Fuzzy:     []model.FuzzyMatch{},
		Unmatched: []model.UnmatchedVendor{},
	}
	var leftover []Group

	for _, g := range GroupRatings(ratings) {
		if g.Raw {
			leftover = append(leftover, g)
			continue
		}
		if v := idx.exact(community, g); v != nil {
			res.Exact = append(res.Exact, model.ExactMatch{
				SurveyVendorName:       g.DisplayName,
				Category:               g.Category,
				MentionCount:           len(g.RatingIDs),
				MatchedVendorID:        v.ID,
				MatchedVendorName:      v.Name,
				MatchedVendorPhone:     v.Phone,
				MatchedVendorCommunity: v.Community,
				IsSameCommunity:        v.Community == community,
				RatingIDs:              g.RatingIDs,
			})
			continue
		}
		if hit, ok := idx.fuzzy(community, g, threshold); ok {
			res.Fuzzy = append(res.Fuzzy, model.FuzzyMatch{
				SurveyVendorName:         g.DisplayName,
				SurveyCategory:           g.Category,
				MentionCount:             len(g.RatingIDs),
				SuggestedVendorID:        hit.vendor.ID,
				SuggestedVendorName:      hit.vendor.Name,
				SuggestedVendorCategory:  hit.vendor.Category,
				SuggestedVendorPhone:     hit.vendor.Phone,
				SuggestedVendorCommunity: hit.vendor.Community,
				IsSameCommunity:          hit.sameCommunity,
				MatchConfidence:          confidence(hit.score),
				CategoryMatches:          hit.categoryMatches,
				AllRatingIDs:             g.RatingIDs,
			})
			continue
		}
		leftover = append(leftover, g)
	}

	res.Unmatched = mergeUnmatched(leftover)

	sort.SliceStable(res.Exact, func(i, j int) bool {
		if res.Exact[i].MentionCount != res.Exact[j].MentionCount {
			return res.Exact[i].MentionCount > res.Exact[j].MentionCount
		}
		return res.Exact[i].SurveyVendorName < res.Exact[j].SurveyVendorName
	})
	sort.SliceStable(res.Fuzzy, func(i, j int) bool {
		if res.Fuzzy[i].MatchConfidence != res.Fuzzy[j].MatchConfidence {
			return res.Fuzzy[i].MatchConfidence > res.Fuzzy[j].MatchConfidence
		}
		if res.Fuzzy[i].MentionCount != res.Fuzzy[j].MentionCount {
			return res.Fuzzy[i].MentionCount > res.Fuzzy[j].MentionCount
		}
		return res.Fuzzy[i].SurveyVendorName < res.Fuzzy[j].SurveyVendorName
	})
	return res
}

// mergeUnmatched folds leftover groups by normalized name, keeping the most
// common category and phone.
func mergeUnmatched(groups []Group) []model.UnmatchedVendor {
	type acc struct {
		display    string
		ids        []string
		categories map[string]int
		phones     map[string]int
	}
	order := []string{}
	byName := make(map[string]*acc)
	for _, g := range groups {
		a, ok := byName[g.Name]
		if !ok {
			a = &acc{display: g.DisplayName, categories: map[string]int{}, phones: map[string]int{}}
			byName[g.Name] = a
			order = append(order, g.Name)
		}
		a.ids = append(a.ids, g.RatingIDs...)
		a.categories[g.Category] += len(g.RatingIDs)
		for _, p := range g.Phones {
			a.phones[p]++
		}
	}

	out := make([]model.UnmatchedVendor, 0, len(order))
	for _, name := range order {
		a := byName[name]
		sort.Strings(a.ids)
		out = append(out, model.UnmatchedVendor{
			VendorName:     a.display,
			VendorCategory: mostCommon(a.categories),
			VendorPhone:    mostCommon(a.phones),
			MentionCount:   len(a.ids),
			AllRatingIDs:   a.ids,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MentionCount != out[j].MentionCount {
			return out[i].MentionCount > out[j].MentionCount
		}
		return out[i].VendorName < out[j].VendorName
	})
	return out
}

// mostCommon returns the key with the highest count, lowest key on ties.
func mostCommon(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// maxFuzzyConfidence keeps fuzzy suggestions below certainty; a score of 1
// means the same name in another category, which is still only a suggestion.
const maxFuzzyConfidence = 0.99

func confidence(score float64) float64 {
	return math.Min(math.Round(score*100)/100, maxFuzzyConfidence)
}

// Summarize derives the progress counters from raw counts and a partition.
func Summarize(counts model.Counts, res Result) model.Progress {
	p := model.Progress{
		TotalRespondents: counts.Respondents,
		TotalReviews:     counts.Ratings,
		MatchedReviews:   counts.Consumed,
		UnmatchedReviews: counts.Ratings - counts.Consumed,
	}
	if p.UnmatchedReviews < 0 {
		p.UnmatchedReviews = 0
	}
	for _, m := range res.Exact {
		p.ExactMatchAvailable += int64(m.MentionCount)
	}
	for _, m := range res.Fuzzy {
		p.FuzzyMatchAvailable += int64(m.MentionCount)
	}
	for _, m := range res.Unmatched {
		p.NeedsCreation += int64(m.MentionCount)
	}
	if counts.Ratings > 0 {
		p.PercentComplete = math.Round(float64(counts.Consumed)/float64(counts.Ratings)*1000) / 10
	}
	return p
}
