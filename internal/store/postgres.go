package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/courtneys-list/vendors/internal/db"
	"github.com/courtneys-list/vendors/internal/match"
	"github.com/courtneys-list/vendors/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Respondents ---

func (s *PostgresStore) UpsertRespondent(ctx context.Context, r *model.Respondent) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO respondents (name, name_key, email, community, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (community, name_key) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), respondents.email)
		 RETURNING id, created_at`,
		r.Name, match.NormalizeName(r.Name), r.Email, r.Community, r.CreatedAt,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert respondent %s", r.Name)
	}
	return nil
}

func (s *PostgresStore) ListRespondents(ctx context.Context, community string) ([]model.Respondent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, community, created_at FROM respondents
		 WHERE community = $1 ORDER BY name_key`,
		community,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list respondents")
	}
	defer rows.Close()

	var out []model.Respondent
	for rows.Next() {
		var r model.Respondent
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Community, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan respondent")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate respondents")
}

// --- Staged ratings ---

var stagedRatingColumns = []string{
	"id", "respondent_id", "vendor_name", "vendor_key", "category",
	"phone", "rating", "comment", "created_at", "updated_at",
}

// StageRatings inserts ratings, leaving rows a respondent already has for
// the same normalized name and category untouched.
func (s *PostgresStore) StageRatings(ctx context.Context, ratings []model.StagedRating) (int64, error) {
	if len(ratings) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(ratings))
	for i := range ratings {
		r := prepareRating(&ratings[i])
		rows = append(rows, []any{
			r.ID, r.RespondentID, r.VendorName, match.NormalizeName(r.VendorName), r.Category,
			r.Phone, r.Rating, r.Comment, r.CreatedAt, r.UpdatedAt,
		})
	}

	n, err := db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "staged_ratings",
		Columns:      stagedRatingColumns,
		ConflictKeys: []string{"respondent_id", "vendor_key", "category"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: stage ratings")
	}
	return n, nil
}

func (s *PostgresStore) PendingRatings(ctx context.Context, community string) ([]model.StagedRating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sr.id, sr.respondent_id, sr.vendor_name, sr.category, sr.phone, sr.rating, sr.comment,
			sr.vendor_id, sr.rated, r.community, sr.created_at, sr.updated_at
		 FROM staged_ratings sr
		 JOIN respondents r ON r.id = sr.respondent_id
		 WHERE r.community = $1 AND sr.rated = false
		 ORDER BY sr.created_at, sr.id`,
		community,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending ratings")
	}
	defer rows.Close()

	var out []model.StagedRating
	for rows.Next() {
		var (
			r      model.StagedRating
			rating *int16
		)
		if err := rows.Scan(&r.ID, &r.RespondentID, &r.VendorName, &r.Category, &r.Phone, &rating, &r.Comment,
			&r.VendorID, &r.Rated, &r.Community, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rating")
		}
		if rating != nil {
			v := int(*rating)
			r.Rating = &v
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ratings")
}

func (s *PostgresStore) RatingCounts(ctx context.Context, community string) (model.Counts, error) {
	var c model.Counts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM respondents WHERE community = $1),
			COUNT(sr.id),
			COUNT(sr.id) FILTER (WHERE sr.rated)
		 FROM staged_ratings sr
		 JOIN respondents r ON r.id = sr.respondent_id
		 WHERE r.community = $1`,
		community,
	).Scan(&c.Respondents, &c.Ratings, &c.Consumed)
	if err != nil {
		return c, eris.Wrap(err, "postgres: rating counts")
	}
	return c, nil
}

const approveSQL = `UPDATE staged_ratings sr
	SET vendor_id = $1, rated = true, cross_community = $2, updated_at = now()
	FROM respondents r
	WHERE sr.respondent_id = r.id
	  AND r.community = $3
	  AND sr.id = ANY($4)
	  AND sr.rated = false`

const linkByKeySQL = `UPDATE staged_ratings sr
	SET vendor_id = $1, rated = true, updated_at = now()
	FROM respondents r
	WHERE sr.respondent_id = r.id
	  AND r.community = $2
	  AND sr.vendor_key = $3
	  AND sr.category = $4
	  AND sr.rated = false`

// ApproveRatings links rows to a vendor. The rated = false guard makes a
// concurrent second approval of the same rows a no-op.
func (s *PostgresStore) ApproveRatings(ctx context.Context, p ApproveParams) (int64, error) {
	if len(p.RatingIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, approveSQL, p.VendorID, p.CrossCommunity, p.Community, p.RatingIDs)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: approve ratings")
	}
	return tag.RowsAffected(), nil
}

// --- Vendors ---

const vendorColumns = `id, name, category, secondary_categories, community, phone, email, website,
	address, place_id, hidden, avg_rating::float8, review_count, created_at, updated_at`

func scanVendor(row pgx.Row) (*model.Vendor, error) {
	var v model.Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Category, &v.SecondaryCategories, &v.Community, &v.Phone, &v.Email,
		&v.Website, &v.Address, &v.PlaceID, &v.Hidden, &v.AvgRating, &v.ReviewCount, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	v, err := scanVendor(s.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: vendor %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get vendor %s", id)
	}
	return v, nil
}

func (s *PostgresStore) ListVendors(ctx context.Context, filter model.VendorFilter) ([]model.Vendor, error) {
	category := ""
	if filter.Category != "" {
		category = match.NormalizeCategory(filter.Category)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		 WHERE hidden = false
		   AND ($1 = '' OR category = $1 OR $1 = ANY(secondary_categories))
		   AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		   AND ($3 = '' OR community = $3)
		 ORDER BY created_at, id
		 LIMIT NULLIF($4, 0)`,
		category, strings.TrimSpace(filter.Query), filter.Community, filter.Limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendors")
	}
	defer rows.Close()

	var out []model.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate vendors")
}

func (s *PostgresStore) FindVendor(ctx context.Context, community, name, category string) (*model.Vendor, error) {
	v, err := scanVendor(s.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		 WHERE community = $1 AND name_key = $2 AND category = $3
		 ORDER BY created_at LIMIT 1`,
		community, match.NormalizeName(name), match.NormalizeCategory(category),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: vendor %q in %s", name, community)
		}
		return nil, eris.Wrap(err, "postgres: find vendor")
	}
	return v, nil
}

const insertVendorSQL = `INSERT INTO vendors (id, name, name_key, category, secondary_categories, community,
	phone, email, website, address, place_id, hidden, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func insertVendor(ctx context.Context, q db.Querier, v *model.Vendor) error {
	prepareVendor(v)
	_, err := q.Exec(ctx, insertVendorSQL,
		v.ID, v.Name, match.NormalizeName(v.Name), v.Category, v.SecondaryCategories, v.Community,
		v.Phone, v.Email, v.Website, v.Address, v.PlaceID, v.Hidden, v.CreatedAt, v.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) CreateVendor(ctx context.Context, v *model.Vendor) error {
	if err := insertVendor(ctx, s.pool, v); err != nil {
		return eris.Wrapf(err, "postgres: create vendor %s", v.Name)
	}
	return nil
}

// CreateVendorAndLink inserts v and links ratings to it in one transaction.
// Linking zero rows rolls the insert back with ErrNothingToLink.
func (s *PostgresStore) CreateVendorAndLink(ctx context.Context, v *model.Vendor, link LinkParams) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: create vendor and link: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertVendor(ctx, tx, v); err != nil {
		return 0, eris.Wrapf(err, "postgres: create vendor %s", v.Name)
	}

	var n int64
	if len(link.RatingIDs) > 0 {
		tag, err := tx.Exec(ctx, approveSQL, v.ID, false, link.Community, link.RatingIDs)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: link ratings to vendor %s", v.ID)
		}
		n = tag.RowsAffected()
	} else {
		tag, err := tx.Exec(ctx, linkByKeySQL, v.ID, link.Community,
			match.NormalizeName(link.SurveyName), match.NormalizeCategory(link.Category))
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: link ratings to vendor %s", v.ID)
		}
		n = tag.RowsAffected()
	}
	if n == 0 {
		return 0, eris.Wrapf(ErrNothingToLink, "postgres: vendor %s", v.Name)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: create vendor and link: commit")
	}
	return n, nil
}

// --- Preferences ---

func (s *PostgresStore) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	var p model.Preference
	err := s.pool.QueryRow(ctx,
		`SELECT key, value, expires_at FROM preferences WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&p.Key, &p.Value, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: preference %s", key)
		}
		return nil, eris.Wrap(err, "postgres: get preference")
	}
	return &p, nil
}

func (s *PostgresStore) SetPreference(ctx context.Context, pref model.Preference) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO preferences (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		pref.Key, pref.Value, pref.ExpiresAt,
	)
	return eris.Wrapf(err, "postgres: set preference %s", pref.Key)
}

func (s *PostgresStore) DeletePreference(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM preferences WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete preference %s", key)
}

func (s *PostgresStore) DeleteExpiredPreferences(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM preferences WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired preferences")
	}
	return int(tag.RowsAffected()), nil
}
