package survey

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/match"
	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/store"
)

// Importer stages parsed survey rows for a community.
type Importer struct {
	store    store.Store
	onChange func()
	log      *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithOnChange registers a callback run after rows are staged, such as a
// candidate cache invalidation.
func WithOnChange(fn func()) Option {
	return func(im *Importer) { im.onChange = fn }
}

// NewImporter creates an Importer.
func NewImporter(st store.Store, opts ...Option) *Importer {
	im := &Importer{
		store: st,
		log:   zap.L().With(zap.String("component", "survey.importer")),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Existing is a parsed row whose respondent already exists in the community.
type Existing struct {
	Row
	RespondentID string `json:"respondent_id"`
}

// Preview splits parsed rows into new and existing respondents.
type Preview struct {
	Community string     `json:"community"`
	New       []Row      `json:"new"`
	Existing  []Existing `json:"existing"`
}

// CommitOptions selects what Commit writes.
type CommitOptions struct {
	ImportNew      bool
	UpdateExisting bool
	Only           []string // respondent names; empty means all
}

// CommitResult summarizes a Commit or Submit.
type CommitResult struct {
	Created int   `json:"created"`
	Updated int   `json:"updated"`
	Staged  int64 `json:"staged"`
	Skipped int   `json:"skipped"`
}

// PreviewFile reads, parses and previews a survey file.
func (im *Importer) PreviewFile(ctx context.Context, path, community string, cm CategoryMap) (*Preview, error) {
	records, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := Parse(records, cm)
	if err != nil {
		return nil, err
	}
	return im.Preview(ctx, community, rows)
}

// Preview compares rows against the community's respondents.
func (im *Importer) Preview(ctx context.Context, community string, rows []Row) (*Preview, error) {
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, eris.Wrap(ErrInvalid, "survey: community is required")
	}

	existing, err := im.store.ListRespondents(ctx, community)
	if err != nil {
		return nil, eris.Wrap(err, "survey: preview: list respondents")
	}
	byKey := make(map[string]string, len(existing))
	for _, r := range existing {
		byKey[match.NormalizeName(r.Name)] = r.ID
	}

	p := &Preview{Community: community, New: []Row{}, Existing: []Existing{}}
	for _, row := range rows {
		if id, ok := byKey[match.NormalizeName(row.Name)]; ok {
			p.Existing = append(p.Existing, Existing{Row: row, RespondentID: id})
			continue
		}
		p.New = append(p.New, row)
	}
	return p, nil
}

// Commit creates new respondents and stages ratings. Re-committing the same
// preview stages nothing new.
func (im *Importer) Commit(ctx context.Context, p *Preview, opts CommitOptions) (*CommitResult, error) {
	if p == nil {
		return nil, eris.Wrap(ErrInvalid, "survey: commit: no preview")
	}
	only := make(map[string]bool, len(opts.Only))
	for _, n := range opts.Only {
		if k := match.NormalizeName(n); k != "" {
			only[k] = true
		}
	}
	selected := func(name string) bool {
		return len(only) == 0 || only[match.NormalizeName(name)]
	}

	res := &CommitResult{}
	// Rows staged before a failure still invalidate cached candidates.
	defer func() { im.changed(res.Staged) }()

	for _, row := range p.New {
		if !opts.ImportNew || !selected(row.Name) {
			res.Skipped++
			continue
		}
		r := &model.Respondent{Name: row.Name, Email: row.Email, Community: p.Community}
		if err := im.store.UpsertRespondent(ctx, r); err != nil {
			return res, eris.Wrapf(err, "survey: commit: create respondent %s", row.Name)
		}
		n, err := im.stage(ctx, r.ID, row.Entries)
		if err != nil {
			return res, err
		}
		res.Created++
		res.Staged += n
	}

	for _, ex := range p.Existing {
		if !opts.UpdateExisting || !selected(ex.Name) {
			res.Skipped++
			continue
		}
		n, err := im.stage(ctx, ex.RespondentID, ex.Entries)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Updated++
		}
		res.Staged += n
	}

	im.log.Info("survey import committed",
		zap.String("community", p.Community),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int64("staged", res.Staged),
	)
	return res, nil
}

func (im *Importer) stage(ctx context.Context, respondentID string, entries []Entry) (int64, error) {
	ratings := make([]model.StagedRating, 0, len(entries))
	for _, e := range entries {
		ratings = append(ratings, model.StagedRating{
			RespondentID: respondentID,
			VendorName:   strings.TrimSpace(e.VendorName),
			Category:     e.Category,
			Phone:        strings.TrimSpace(e.Phone),
			Rating:       e.Rating,
			Comment:      strings.TrimSpace(e.Comment),
		})
	}
	n, err := im.store.StageRatings(ctx, ratings)
	if err != nil {
		return 0, eris.Wrap(err, "survey: stage ratings")
	}
	return n, nil
}

func (im *Importer) changed(staged int64) {
	if staged > 0 && im.onChange != nil {
		im.onChange()
	}
}

// Submission is a self-service survey form.
type Submission struct {
	Community string  `json:"community"`
	Name      string  `json:"name"`
	Email     string  `json:"email,omitempty"`
	Entries   []Entry `json:"entries"`
}

// Validate checks the submission without touching the store.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Community) == "" {
		return eris.Wrap(ErrInvalid, "survey: community is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return eris.Wrap(ErrInvalid, "survey: name is required")
	}
	if len(s.Entries) == 0 {
		return eris.Wrap(ErrInvalid, "survey: at least one entry is required")
	}
	for i, e := range s.Entries {
		if strings.TrimSpace(e.VendorName) == "" {
			return eris.Wrapf(ErrInvalid, "survey: entry %d: vendor_name is required", i)
		}
		if match.NormalizeName(e.VendorName) == "" {
			return eris.Wrapf(ErrInvalid, "survey: entry %d: vendor_name %q normalizes to an empty name", i, e.VendorName)
		}
		if strings.TrimSpace(e.Category) == "" {
			return eris.Wrapf(ErrInvalid, "survey: entry %d: category is required", i)
		}
		if e.Rating != nil && (*e.Rating < 1 || *e.Rating > 5) {
			return eris.Wrapf(ErrInvalid, "survey: entry %d: rating must be between 1 and 5", i)
		}
	}
	return nil
}

// Submit stages a single respondent's entries. Submitting the same vendor
// twice stages it once.
func (im *Importer) Submit(ctx context.Context, s Submission) (*CommitResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r := &model.Respondent{
		Name:      strings.TrimSpace(s.Name),
		Email:     strings.TrimSpace(s.Email),
		Community: strings.TrimSpace(s.Community),
	}
	if err := im.store.UpsertRespondent(ctx, r); err != nil {
		return nil, eris.Wrap(err, "survey: submit: upsert respondent")
	}
	n, err := im.stage(ctx, r.ID, dedupeEntries(s.Entries))
	if err != nil {
		return nil, err
	}

	im.log.Info("survey submitted",
		zap.String("community", r.Community),
		zap.String("respondent_id", r.ID),
		zap.Int64("staged", n),
	)
	im.changed(n)
	return &CommitResult{Staged: n}, nil
}
