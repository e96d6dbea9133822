package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/courtneys-list/vendors/internal/match"
	"github.com/courtneys-list/vendors/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer at a time; pragmas below are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS respondents (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	community  TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (community, name_key)
);

CREATE TABLE IF NOT EXISTS vendors (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	name_key             TEXT NOT NULL,
	category             TEXT NOT NULL,
	secondary_categories TEXT NOT NULL DEFAULT '[]',
	community            TEXT NOT NULL,
	phone                TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	website              TEXT NOT NULL DEFAULT '',
	address              TEXT NOT NULL DEFAULT '',
	place_id             TEXT NOT NULL DEFAULT '',
	hidden               INTEGER NOT NULL DEFAULT 0,
	avg_rating           REAL,
	review_count         INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS staged_ratings (
	id              TEXT PRIMARY KEY,
	respondent_id   TEXT NOT NULL REFERENCES respondents(id),
	vendor_name     TEXT NOT NULL,
	vendor_key      TEXT NOT NULL,
	category        TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	rating          INTEGER,
	comment         TEXT NOT NULL DEFAULT '',
	vendor_id       TEXT REFERENCES vendors(id),
	rated           INTEGER NOT NULL DEFAULT 0,
	cross_community INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (respondent_id, vendor_key, category)
);

CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_respondents_community ON respondents(community);
CREATE INDEX IF NOT EXISTS idx_vendors_community ON vendors(community);
CREATE INDEX IF NOT EXISTS idx_vendors_name_key ON vendors(name_key, category);
CREATE INDEX IF NOT EXISTS idx_staged_ratings_pending ON staged_ratings(rated, vendor_key);
CREATE INDEX IF NOT EXISTS idx_preferences_expires_at ON preferences(expires_at);

CREATE TRIGGER IF NOT EXISTS trg_staged_ratings_review_stats
AFTER UPDATE OF vendor_id, rated ON staged_ratings
WHEN NEW.vendor_id IS NOT NULL
BEGIN
	UPDATE vendors SET
		review_count = (SELECT COUNT(*) FROM staged_ratings WHERE vendor_id = NEW.vendor_id AND rated = 1),
		avg_rating   = (SELECT ROUND(AVG(rating), 2) FROM staged_ratings WHERE vendor_id = NEW.vendor_id AND rated = 1)
	WHERE id = NEW.vendor_id;
END;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Respondents ---

func (s *SQLiteStore) UpsertRespondent(ctx context.Context, r *model.Respondent) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO respondents (id, name, name_key, email, community, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (community, name_key) DO UPDATE SET
			email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE respondents.email END
		 RETURNING id`,
		r.ID, r.Name, match.NormalizeName(r.Name), r.Email, r.Community, r.CreatedAt,
	)
	if err := row.Scan(&r.ID); err != nil {
		return eris.Wrapf(err, "sqlite: upsert respondent %s", r.Name)
	}
	return nil
}

func (s *SQLiteStore) ListRespondents(ctx context.Context, community string) ([]model.Respondent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, community, created_at FROM respondents
		 WHERE community = ? ORDER BY name_key`,
		community,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list respondents")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Respondent
	for rows.Next() {
		var r model.Respondent
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Community, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan respondent")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate respondents")
}

// --- Staged ratings ---

func (s *SQLiteStore) StageRatings(ctx context.Context, ratings []model.StagedRating) (int64, error) {
	if len(ratings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: stage ratings: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO staged_ratings
			(id, respondent_id, vendor_name, vendor_key, category, phone, rating, comment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (respondent_id, vendor_key, category) DO NOTHING`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: stage ratings: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for i := range ratings {
		r := prepareRating(&ratings[i])
		res, err := stmt.ExecContext(ctx,
			r.ID, r.RespondentID, r.VendorName, match.NormalizeName(r.VendorName), r.Category,
			r.Phone, r.Rating, r.Comment, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: stage rating %s", r.VendorName)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: stage ratings: commit")
	}
	return inserted, nil
}

func (s *SQLiteStore) PendingRatings(ctx context.Context, community string) ([]model.StagedRating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sr.id, sr.respondent_id, sr.vendor_name, sr.category, sr.phone, sr.rating, sr.comment,
			sr.vendor_id, sr.rated, r.community, sr.created_at, sr.updated_at
		 FROM staged_ratings sr
		 JOIN respondents r ON r.id = sr.respondent_id
		 WHERE r.community = ? AND sr.rated = 0
		 ORDER BY sr.created_at, sr.id`,
		community,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending ratings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StagedRating
	for rows.Next() {
		var (
			r        model.StagedRating
			rating   sql.NullInt64
			vendorID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RespondentID, &r.VendorName, &r.Category, &r.Phone, &rating, &r.Comment,
			&vendorID, &r.Rated, &r.Community, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rating")
		}
		if rating.Valid {
			v := int(rating.Int64)
			r.Rating = &v
		}
		if vendorID.Valid {
			r.VendorID = &vendorID.String
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate ratings")
}

func (s *SQLiteStore) RatingCounts(ctx context.Context, community string) (model.Counts, error) {
	var c model.Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM respondents WHERE community = ?),
			COUNT(sr.id),
			COALESCE(SUM(CASE WHEN sr.rated = 1 THEN 1 ELSE 0 END), 0)
		 FROM staged_ratings sr
		 JOIN respondents r ON r.id = sr.respondent_id
		 WHERE r.community = ?`,
		community, community,
	).Scan(&c.Respondents, &c.Ratings, &c.Consumed)
	if err != nil {
		return c, eris.Wrap(err, "sqlite: rating counts")
	}
	return c, nil
}

func (s *SQLiteStore) ApproveRatings(ctx context.Context, p ApproveParams) (int64, error) {
	if len(p.RatingIDs) == 0 {
		return 0, nil
	}
	n, err := approveSQLite(ctx, s.db, p)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: approve ratings")
	}
	return n, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func approveSQLite(ctx context.Context, ex sqlExecer, p ApproveParams) (int64, error) {
	args := []any{p.VendorID, p.CrossCommunity, time.Now().UTC(), p.Community}
	for _, id := range p.RatingIDs {
		args = append(args, id)
	}
	res, err := ex.ExecContext(ctx,
		`UPDATE staged_ratings
		 SET vendor_id = ?, rated = 1, cross_community = ?, updated_at = ?
		 WHERE rated = 0
		   AND respondent_id IN (SELECT id FROM respondents WHERE community = ?)
		   AND id IN (`+placeholders(len(p.RatingIDs))+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func linkByKeySQLite(ctx context.Context, ex sqlExecer, vendorID string, link LinkParams) (int64, error) {
	res, err := ex.ExecContext(ctx,
		`UPDATE staged_ratings
		 SET vendor_id = ?, rated = 1, updated_at = ?
		 WHERE rated = 0
		   AND vendor_key = ? AND category = ?
		   AND respondent_id IN (SELECT id FROM respondents WHERE community = ?)`,
		vendorID, time.Now().UTC(), match.NormalizeName(link.SurveyName),
		match.NormalizeCategory(link.Category), link.Community,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Vendors ---

const sqliteVendorColumns = `id, name, category, secondary_categories, community, phone, email, website,
	address, place_id, hidden, avg_rating, review_count, created_at, updated_at`

func (s *SQLiteStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteVendorColumns+` FROM vendors WHERE id = ?`, id)
	v, err := scanSQLiteVendor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: vendor %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get vendor %s", id)
	}
	return v, nil
}

func (s *SQLiteStore) ListVendors(ctx context.Context, filter model.VendorFilter) ([]model.Vendor, error) {
	category := ""
	if filter.Category != "" {
		category = match.NormalizeCategory(filter.Category)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteVendorColumns+` FROM vendors
		 WHERE hidden = 0
		   AND (?1 = '' OR category = ?1
		        OR EXISTS (SELECT 1 FROM json_each(vendors.secondary_categories) WHERE value = ?1))
		   AND (?2 = '' OR name LIKE '%' || ?2 || '%')
		   AND (?3 = '' OR community = ?3)
		 ORDER BY created_at, id
		 LIMIT ?4`,
		category, strings.TrimSpace(filter.Query), filter.Community, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vendors")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Vendor
	for rows.Next() {
		v, err := scanSQLiteVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate vendors")
}

func (s *SQLiteStore) FindVendor(ctx context.Context, community, name, category string) (*model.Vendor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteVendorColumns+` FROM vendors
		 WHERE community = ? AND name_key = ? AND category = ?
		 ORDER BY created_at LIMIT 1`,
		community, match.NormalizeName(name), match.NormalizeCategory(category),
	)
	v, err := scanSQLiteVendor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: vendor %q in %s", name, community)
		}
		return nil, eris.Wrap(err, "sqlite: find vendor")
	}
	return v, nil
}

func (s *SQLiteStore) CreateVendor(ctx context.Context, v *model.Vendor) error {
	if err := insertSQLiteVendor(ctx, s.db, v); err != nil {
		return eris.Wrapf(err, "sqlite: create vendor %s", v.Name)
	}
	return nil
}

func (s *SQLiteStore) CreateVendorAndLink(ctx context.Context, v *model.Vendor, link LinkParams) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: create vendor and link: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertSQLiteVendor(ctx, tx, v); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create vendor %s", v.Name)
	}

	var n int64
	if len(link.RatingIDs) > 0 {
		n, err = approveSQLite(ctx, tx, ApproveParams{Community: link.Community, RatingIDs: link.RatingIDs, VendorID: v.ID})
	} else {
		n, err = linkByKeySQLite(ctx, tx, v.ID, link)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: link ratings to vendor %s", v.ID)
	}
	if n == 0 {
		return 0, eris.Wrapf(ErrNothingToLink, "sqlite: vendor %s", v.Name)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: create vendor and link: commit")
	}
	return n, nil
}

func insertSQLiteVendor(ctx context.Context, ex sqlExecer, v *model.Vendor) error {
	prepareVendor(v)
	secondary, err := json.Marshal(v.SecondaryCategories)
	if err != nil {
		return eris.Wrap(err, "marshal secondary categories")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO vendors (id, name, name_key, category, secondary_categories, community, phone, email,
			website, address, place_id, hidden, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, match.NormalizeName(v.Name), v.Category, string(secondary), v.Community, v.Phone, v.Email,
		v.Website, v.Address, v.PlaceID, v.Hidden, v.CreatedAt, v.UpdatedAt,
	)
	return err
}

// --- Preferences ---

func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	var p model.Preference
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, expires_at FROM preferences WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&p.Key, &p.Value, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: preference %s", key)
		}
		return nil, eris.Wrap(err, "sqlite: get preference")
	}
	return &p, nil
}

func (s *SQLiteStore) SetPreference(ctx context.Context, pref model.Preference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		pref.Key, pref.Value, pref.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: set preference %s", pref.Key)
}

func (s *SQLiteStore) DeletePreference(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete preference %s", key)
}

func (s *SQLiteStore) DeleteExpiredPreferences(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired preferences")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteVendor(row scannable) (*model.Vendor, error) {
	var (
		v         model.Vendor
		secondary string
		avg       sql.NullFloat64
	)
	err := row.Scan(&v.ID, &v.Name, &v.Category, &secondary, &v.Community, &v.Phone, &v.Email, &v.Website,
		&v.Address, &v.PlaceID, &v.Hidden, &avg, &v.ReviewCount, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if secondary != "" {
		if err := json.Unmarshal([]byte(secondary), &v.SecondaryCategories); err != nil {
			return nil, eris.Wrap(err, "unmarshal secondary categories")
		}
	}
	if avg.Valid {
		v.AvgRating = &avg.Float64
	}
	return &v, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
