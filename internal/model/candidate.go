package model

// MatchKind classifies a staged-rating group against the vendor table.
type MatchKind string

// Match kinds.
const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
)

// ExactMatch is a group of pending ratings whose normalized name and category
// equal an existing vendor.
type ExactMatch struct {
	SurveyVendorName       string   `json:"survey_vendor_name"`
	Category               string   `json:"category"`
	MentionCount           int      `json:"mention_count"`
	MatchedVendorID        string   `json:"matched_vendor_id"`
	MatchedVendorName      string   `json:"matched_vendor_name"`
	MatchedVendorPhone     string   `json:"matched_vendor_phone"`
	MatchedVendorCommunity string   `json:"matched_vendor_community"`
	IsSameCommunity        bool     `json:"is_same_community"`
	RatingIDs              []string `json:"rating_ids"`
}

// FuzzyMatch suggests a likely vendor for a group by name similarity.
// A category mismatch is a warning, not a disqualifier.
type FuzzyMatch struct {
	SurveyVendorName         string   `json:"survey_vendor_name"`
	SurveyCategory           string   `json:"survey_category"`
	MentionCount             int      `json:"mention_count"`
	SuggestedVendorID        string   `json:"suggested_vendor_id"`
	SuggestedVendorName      string   `json:"suggested_vendor_name"`
	SuggestedVendorCategory  string   `json:"suggested_vendor_category"`
	SuggestedVendorPhone     string   `json:"suggested_vendor_phone"`
	SuggestedVendorCommunity string   `json:"suggested_vendor_community"`
	IsSameCommunity          bool     `json:"is_same_community"`
	MatchConfidence          float64  `json:"match_confidence"`
	CategoryMatches          bool     `json:"category_matches"`
	AllRatingIDs             []string `json:"all_rating_ids"`
}

// UnmatchedVendor is a survey name with no exact or fuzzy candidate.
type UnmatchedVendor struct {
	VendorName     string   `json:"vendor_name"`
	VendorCategory string   `json:"vendor_category"`
	VendorPhone    string   `json:"vendor_phone"`
	MentionCount   int      `json:"mention_count"`
	AllRatingIDs   []string `json:"all_rating_ids"`
}

// Progress summarizes reconciliation progress for a community.
type Progress struct {
	PercentComplete     float64 `json:"percent_complete"`
	TotalRespondents    int64   `json:"total_respondents"`
	TotalReviews        int64   `json:"total_reviews"`
	MatchedReviews      int64   `json:"matched_reviews"`
	UnmatchedReviews    int64   `json:"unmatched_reviews"`
	ExactMatchAvailable int64   `json:"exact_match_available"`
	FuzzyMatchAvailable int64   `json:"fuzzy_match_available"`
	NeedsCreation       int64   `json:"needs_creation"`
}
