package survey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
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

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "survey.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const surveyCSV = `Name,Email,Pool,Landscaping
Jane,jane@example.com,ABC Pool,Unique Gardener
Bob,,AC Pool Svc (555-010-0002),
`

func TestImporter_PreviewAndCommit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertRespondent(ctx, &model.Respondent{Name: "BOB", Community: "Oaks"}))

	changes := 0
	im := NewImporter(st, WithOnChange(func() { changes++ }))

	p, err := im.PreviewFile(ctx, writeCSV(t, surveyCSV), "Oaks", nil)
	require.NoError(t, err)
	require.Len(t, p.New, 1)
	require.Len(t, p.Existing, 1)
	assert.Equal(t, "Jane", p.New[0].Name)
	assert.Equal(t, "Bob", p.Existing[0].Name)

	res, err := im.Commit(ctx, p, CommitOptions{ImportNew: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, int64(3), res.Staged)
	assert.Equal(t, 1, changes)

	pending, err := st.PendingRatings(ctx, "Oaks")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	var phone string
	for _, r := range pending {
		if r.VendorName == "AC Pool Svc" {
			phone = r.Phone
		}
	}
	assert.Equal(t, "555-010-0002", phone)

	// A second commit of the same file stages nothing.
	p, err = im.PreviewFile(ctx, writeCSV(t, surveyCSV), "Oaks", nil)
	require.NoError(t, err)
	assert.Empty(t, p.New)
	require.Len(t, p.Existing, 2)

	res, err = im.Commit(ctx, p, CommitOptions{ImportNew: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Staged)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, changes)

	counts, err := st.RatingCounts(ctx, "Oaks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Respondents)
	assert.Equal(t, int64(3), counts.Ratings)
}

func TestImporter_CommitOptions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertRespondent(ctx, &model.Respondent{Name: "Bob", Community: "Oaks"}))
	im := NewImporter(st)

	rows, err := Parse([][]string{
		{"Name", "Pool"},
		{"Jane", "ABC Pool"},
		{"Ann", "Joe's Pool"},
		{"Bob", "Blue Pool"},
	}, nil)
	require.NoError(t, err)

	p, err := im.Preview(ctx, "Oaks", rows)
	require.NoError(t, err)

	res, err := im.Commit(ctx, p, CommitOptions{ImportNew: true, Only: []string{"jane"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Skipped)

	respondents, err := st.ListRespondents(ctx, "Oaks")
	require.NoError(t, err)
	assert.Len(t, respondents, 2)
}

type failingRespondentStore struct {
	store.Store
	failName string
}

func (s *failingRespondentStore) UpsertRespondent(ctx context.Context, r *model.Respondent) error {
	if r.Name == s.failName {
		return errors.New("connection reset")
	}
	return s.Store.UpsertRespondent(ctx, r)
}

func TestImporter_CommitFailureStillNotifies(t *testing.T) {
	st := &failingRespondentStore{Store: newTestStore(t), failName: "Bob"}
	ctx := context.Background()

	changes := 0
	im := NewImporter(st, WithOnChange(func() { changes++ }))

	p, err := im.Preview(ctx, "Oaks", []Row{
		{Name: "Jane", Entries: []Entry{{VendorName: "ABC Pool", Category: "Pool"}}},
		{Name: "Bob", Entries: []Entry{{VendorName: "Green Thumb", Category: "Landscaping"}}},
	})
	require.NoError(t, err)

	res, err := im.Commit(ctx, p, CommitOptions{ImportNew: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, int64(1), res.Staged)
	assert.Equal(t, 1, changes)
}

func TestImporter_PreviewValidation(t *testing.T) {
	im := NewImporter(newTestStore(t))

	_, err := im.Preview(context.Background(), " ", nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = im.Commit(context.Background(), nil, CommitOptions{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSubmission_Validate(t *testing.T) {
	five, six := 5, 6
	valid := Submission{Community: "Oaks", Name: "Jane", Entries: []Entry{{VendorName: "ABC Pool", Category: "Pool", Rating: &five}}}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"no community", func(s *Submission) { s.Community = "" }},
		{"no name", func(s *Submission) { s.Name = " " }},
		{"no entries", func(s *Submission) { s.Entries = nil }},
		{"no vendor", func(s *Submission) { s.Entries = []Entry{{Category: "Pool"}} }},
		{"no category", func(s *Submission) { s.Entries = []Entry{{VendorName: "x"}} }},
		{"punctuation vendor", func(s *Submission) { s.Entries = []Entry{{VendorName: "...", Category: "Pool"}} }},
		{"bad rating", func(s *Submission) { s.Entries = []Entry{{VendorName: "x", Category: "Pool", Rating: &six}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestImporter_Submit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	im := NewImporter(st)
	four := 4

	sub := Submission{
		Community: "Oaks",
		Name:      "Jane",
		Email:     "jane@example.com",
		Entries: []Entry{
			{VendorName: "ABC Pool", Category: "pool", Rating: &four, Comment: "on time"},
			{VendorName: "abc pool", Category: "Pool"},
			{VendorName: "Green Thumb", Category: "Landscaping"},
		},
	}
	res, err := im.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Staged)

	res, err = im.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Staged)

	pending, err := st.PendingRatings(ctx, "Oaks")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, r := range pending {
		if r.VendorName == "ABC Pool" {
			require.NotNil(t, r.Rating)
			assert.Equal(t, 4, *r.Rating)
			assert.Equal(t, "Pool", r.Category)
		}
	}
}
