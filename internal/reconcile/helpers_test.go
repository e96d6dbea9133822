package reconcile

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type env struct {
	store    store.Store
	matcher  *Matcher
	approver *Approver
	bulk     *BulkApprover
}

func newEnv(t *testing.T, st store.Store) *env {
	t.Helper()
	m := NewMatcher(st, MatcherConfig{})
	a := NewApprover(st, m)
	return &env{store: st, matcher: m, approver: a, bulk: NewBulkApprover(m, a, 2)}
}

// stage creates a respondent in community with one staged rating per
// (name, category) pair and returns the rating ids in order.
func stage(t *testing.T, st store.Store, community, respondent string, pairs ...[2]string) []string {
	t.Helper()
	ctx := context.Background()
	r := &model.Respondent{Name: respondent, Community: community}
	require.NoError(t, st.UpsertRespondent(ctx, r))

	ratings := make([]model.StagedRating, 0, len(pairs))
	for _, p := range pairs {
		ratings = append(ratings, model.StagedRating{RespondentID: r.ID, VendorName: p[0], Category: p[1]})
	}
	_, err := st.StageRatings(ctx, ratings)
	require.NoError(t, err)

	ids := make([]string, len(ratings))
	for i := range ratings {
		ids[i] = ratings[i].ID
	}
	return ids
}

func addVendor(t *testing.T, st store.Store, name, category, community string) *model.Vendor {
	t.Helper()
	v := &model.Vendor{Name: name, Category: category, Community: community, Phone: "555-0100", Email: "hi@example.com"}
	require.NoError(t, st.CreateVendor(context.Background(), v))
	return v
}

// faultyStore wraps a Store, failing selected calls and counting the rest.
type faultyStore struct {
	store.Store

	pendingErr  error
	vendorsErr  error
	countsErr   error
	approveErrs map[string]error // by vendor id

	calls atomic.Int32
}

func (f *faultyStore) PendingRatings(ctx context.Context, community string) ([]model.StagedRating, error) {
	f.calls.Add(1)
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return f.Store.PendingRatings(ctx, community)
}

func (f *faultyStore) ListVendors(ctx context.Context, filter model.VendorFilter) ([]model.Vendor, error) {
	f.calls.Add(1)
	if f.vendorsErr != nil {
		return nil, f.vendorsErr
	}
	return f.Store.ListVendors(ctx, filter)
}

func (f *faultyStore) RatingCounts(ctx context.Context, community string) (model.Counts, error) {
	f.calls.Add(1)
	if f.countsErr != nil {
		return model.Counts{}, f.countsErr
	}
	return f.Store.RatingCounts(ctx, community)
}

func (f *faultyStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	f.calls.Add(1)
	return f.Store.GetVendor(ctx, id)
}

func (f *faultyStore) ApproveRatings(ctx context.Context, p store.ApproveParams) (int64, error) {
	f.calls.Add(1)
	if err, ok := f.approveErrs[p.VendorID]; ok {
		return 0, err
	}
	return f.Store.ApproveRatings(ctx, p)
}

func (f *faultyStore) CreateVendorAndLink(ctx context.Context, v *model.Vendor, link store.LinkParams) (int64, error) {
	f.calls.Add(1)
	return f.Store.CreateVendorAndLink(ctx, v, link)
}

func (f *faultyStore) CreateVendor(ctx context.Context, v *model.Vendor) error {
	f.calls.Add(1)
	return f.Store.CreateVendor(ctx, v)
}
