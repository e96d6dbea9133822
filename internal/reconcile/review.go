package reconcile

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/pkg/google"
)

// Tab names a review list.
type Tab string

// Review tabs, in display order.
const (
	TabExact     Tab = "exact"
	TabFuzzy     Tab = "fuzzy"
	TabUnmatched Tab = "unmatched"
)

// TabState is one independently loaded list. Err is retryable by Reload.
type TabState[T any] struct {
	Items  []T   `json:"items"`
	Count  int   `json:"count"`
	Loaded bool  `json:"loaded"`
	Err    error `json:"-"`
}

func loadedTab[T any](items []T, err error) TabState[T] {
	if err != nil {
		return TabState[T]{Err: err}
	}
	return TabState[T]{Items: items, Count: len(items), Loaded: true}
}

// VendorForm is the "create new vendor" form, pre-filled from a staged name.
type VendorForm struct {
	SurveyName string   `json:"survey_name"`
	Category   string   `json:"category"`
	VendorName string   `json:"vendor_name"`
	Phone      string   `json:"phone"`
	Address    string   `json:"address"`
	Website    string   `json:"website"`
	PlaceID    string   `json:"place_id"`
	RatingIDs  []string `json:"rating_ids"`
}

// Review is the admin reconciliation session for one community at a time.
// It is safe for concurrent use.
type Review struct {
	matcher  *Matcher
	approver *Approver
	bulk     *BulkApprover
	places   google.Client

	mu          sync.Mutex
	community   string
	active      Tab
	exact       TabState[model.ExactMatch]
	fuzzy       TabState[model.FuzzyMatch]
	unmatched   TabState[model.UnmatchedVendor]
	progress    model.Progress
	progressErr error
}

// NewReview creates a session. places may be nil when lookup is not configured.
func NewReview(m *Matcher, a *Approver, b *BulkApprover, places google.Client) *Review {
	return &Review{matcher: m, approver: a, bulk: b, places: places, active: TabExact}
}

// SelectCommunity switches the session to community, resetting every tab
// and loading them afresh.
func (r *Review) SelectCommunity(ctx context.Context, community string) error {
	if err := validCommunity(community); err != nil {
		return err
	}
	r.mu.Lock()
	r.community = community
	r.active = TabExact
	r.exact = TabState[model.ExactMatch]{}
	r.fuzzy = TabState[model.FuzzyMatch]{}
	r.unmatched = TabState[model.UnmatchedVendor]{}
	r.progress = model.Progress{}
	r.progressErr = nil
	r.mu.Unlock()

	r.Reload(ctx)
	return nil
}

// Community returns the selected community.
func (r *Review) Community() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.community
}

// SetTab switches the visible tab.
func (r *Review) SetTab(t Tab) {
	r.mu.Lock()
	r.active = t
	r.mu.Unlock()
}

// ActiveTab returns the visible tab.
func (r *Review) ActiveTab() Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Exact returns the exact tab.
func (r *Review) Exact() TabState[model.ExactMatch] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exact
}

// Fuzzy returns the fuzzy tab.
func (r *Review) Fuzzy() TabState[model.FuzzyMatch] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fuzzy
}

// Unmatched returns the unmatched tab.
func (r *Review) Unmatched() TabState[model.UnmatchedVendor] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unmatched
}

// Progress returns the last loaded progress and its error.
func (r *Review) Progress() (model.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress, r.progressErr
}

// Done reports the advisory terminal state: the unmatched list loaded and empty.
func (r *Review) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unmatched.Loaded && r.unmatched.Count == 0
}

// Reload refetches every tab and progress. Each tab keeps its own error.
func (r *Review) Reload(ctx context.Context) {
	community := r.Community()
	if community == "" {
		return
	}

	exact, exactErr := r.matcher.ExactMatches(ctx, community)
	fuzzy, fuzzyErr := r.matcher.FuzzyMatches(ctx, community)
	unmatched, unmatchedErr := r.matcher.Unmatched(ctx, community)
	progress, progressErr := r.matcher.Progress(ctx, community)

	fuzzy, unmatched = filterOverlaps(exact, fuzzy, unmatched)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.community != community {
		return
	}
	r.exact = loadedTab(exact, exactErr)
	r.fuzzy = loadedTab(fuzzy, fuzzyErr)
	r.unmatched = loadedTab(unmatched, unmatchedErr)
	r.progress, r.progressErr = progress, progressErr
}

// filterOverlaps drops fuzzy rows already offered as exact, and unmatched
// rows already offered as exact or fuzzy.
func filterOverlaps(exact []model.ExactMatch, fuzzy []model.FuzzyMatch, unmatched []model.UnmatchedVendor) ([]model.FuzzyMatch, []model.UnmatchedVendor) {
	seen := make(map[string]bool)
	for _, e := range exact {
		for _, id := range e.RatingIDs {
			seen[id] = true
		}
	}

	var keptFuzzy []model.FuzzyMatch
	for _, f := range fuzzy {
		ids := without(f.AllRatingIDs, seen)
		if len(ids) == 0 {
			continue
		}
		f.AllRatingIDs = ids
		f.MentionCount = len(ids)
		keptFuzzy = append(keptFuzzy, f)
	}
	for _, f := range keptFuzzy {
		for _, id := range f.AllRatingIDs {
			seen[id] = true
		}
	}

	var keptUnmatched []model.UnmatchedVendor
	for _, u := range unmatched {
		ids := without(u.AllRatingIDs, seen)
		if len(ids) == 0 {
			continue
		}
		u.AllRatingIDs = ids
		u.MentionCount = len(ids)
		keptUnmatched = append(keptUnmatched, u)
	}
	if fuzzy != nil && keptFuzzy == nil {
		keptFuzzy = []model.FuzzyMatch{}
	}
	if unmatched != nil && keptUnmatched == nil {
		keptUnmatched = []model.UnmatchedVendor{}
	}
	return keptFuzzy, keptUnmatched
}

func without(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func (r *Review) selected() (string, error) {
	c := r.Community()
	if c == "" {
		return "", invalid("community", "no community selected")
	}
	return c, nil
}

// after reloads the session when an action succeeded.
func (r *Review) after(ctx context.Context, err error) {
	if err == nil {
		r.Reload(ctx)
	}
}

// Approve links an exact group to its same-community vendor.
func (r *Review) Approve(ctx context.Context, g model.ExactMatch) (int64, error) {
	community, err := r.selected()
	if err != nil {
		return 0, err
	}
	if !g.IsSameCommunity {
		return 0, eris.Wrapf(ErrCrossCommunity, "reconcile: %s lives in %s", g.MatchedVendorName, g.MatchedVendorCommunity)
	}
	n, err := r.approver.Approve(ctx, community, g.RatingIDs, g.MatchedVendorID, ApproveOptions{})
	r.after(ctx, err)
	return n, err
}

// ApproveSuggestion links a fuzzy group to its suggested vendor.
func (r *Review) ApproveSuggestion(ctx context.Context, f model.FuzzyMatch) (int64, error) {
	community, err := r.selected()
	if err != nil {
		return 0, err
	}
	n, err := r.approver.Approve(ctx, community, f.AllRatingIDs, f.SuggestedVendorID, ApproveOptions{})
	r.after(ctx, err)
	return n, err
}

// LinkAcross links ratings to another community's vendor through the
// explicit override.
func (r *Review) LinkAcross(ctx context.Context, ratingIDs []string, vendorID string) (int64, error) {
	community, err := r.selected()
	if err != nil {
		return 0, err
	}
	zap.L().Info("reconcile: cross-community link requested",
		zap.String("community", community),
		zap.String("vendor_id", vendorID),
		zap.Int("ratings", len(ratingIDs)),
	)
	n, err := r.approver.Approve(ctx, community, ratingIDs, vendorID, ApproveOptions{CrossCommunity: true})
	r.after(ctx, err)
	return n, err
}

// CopyToCommunity copies vendorID into the selected community and links
// ratingIDs to the copy.
func (r *Review) CopyToCommunity(ctx context.Context, ratingIDs []string, vendorID string) (string, int64, error) {
	community, err := r.selected()
	if err != nil {
		return "", 0, err
	}
	id, n, err := r.approver.CopyAndLink(ctx, vendorID, community, ratingIDs)
	r.after(ctx, err)
	return id, n, err
}

// SearchVendors searches vendors of every community.
func (r *Review) SearchVendors(ctx context.Context, category, query string) ([]model.Vendor, error) {
	return r.approver.SearchVendors(ctx, category, query, 50)
}

// PickVendor approves ratingIDs against a vendor chosen from search.
func (r *Review) PickVendor(ctx context.Context, ratingIDs []string, vendorID string) (int64, error) {
	community, err := r.selected()
	if err != nil {
		return 0, err
	}
	n, err := r.approver.Approve(ctx, community, ratingIDs, vendorID, ApproveOptions{})
	r.after(ctx, err)
	return n, err
}

// NewVendorForm pre-fills the create form from an unmatched row.
func NewVendorForm(u model.UnmatchedVendor) VendorForm {
	return VendorForm{
		SurveyName: u.VendorName,
		Category:   u.VendorCategory,
		VendorName: strings.TrimSpace(u.VendorName),
		Phone:      u.VendorPhone,
		RatingIDs:  u.AllRatingIDs,
	}
}

// LookupPlace enriches the form with the top places result for its name in
// the selected community. Fields the admin already filled are kept.
func (r *Review) LookupPlace(ctx context.Context, form VendorForm) (VendorForm, error) {
	if r.places == nil {
		return form, eris.New("reconcile: places lookup not configured")
	}
	query := strings.TrimSpace(form.VendorName + " " + r.Community())
	resp, err := r.places.TextSearch(ctx, query)
	if err != nil {
		return form, eris.Wrap(err, "reconcile: places lookup")
	}
	p := resp.First()
	if p == nil {
		return form, nil
	}
	form.PlaceID = p.ID
	if form.Phone == "" {
		form.Phone = p.NationalPhoneNumber
	}
	if form.Address == "" {
		form.Address = p.FormattedAddress
	}
	if form.Website == "" {
		form.Website = p.WebsiteURI
	}
	return form, nil
}

// CreateVendor creates a vendor from the form and links the staged rows.
func (r *Review) CreateVendor(ctx context.Context, form VendorForm) (string, error) {
	community, err := r.selected()
	if err != nil {
		return "", err
	}
	id, err := r.approver.CreateVendorFromSurvey(ctx, CreateVendorRequest{
		SurveyName: form.SurveyName,
		Category:   form.Category,
		VendorName: form.VendorName,
		Phone:      form.Phone,
		Website:    form.Website,
		Address:    form.Address,
		Community:  community,
		PlaceID:    form.PlaceID,
		RatingIDs:  form.RatingIDs,
	})
	r.after(ctx, err)
	return id, err
}

// ApproveAllExact approves every same-community exact group. The session
// reloads when any group succeeded.
func (r *Review) ApproveAllExact(ctx context.Context) (*BatchResult, error) {
	community, err := r.selected()
	if err != nil {
		return nil, err
	}
	res, err := r.bulk.ApproveAllExact(ctx, community)
	if res != nil && res.Succeeded > 0 {
		r.Reload(ctx)
	}
	return res, err
}
