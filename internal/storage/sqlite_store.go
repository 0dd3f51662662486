package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
)

// MemoryPath opens a private in-memory database that disappears with the process.
const MemoryPath = ":memory:"

var ErrNotFound = errors.New("neighborhood not found")

// SQLiteStore is the read model behind the browse and detail views. It is
// seeded from the catalog at startup and only read afterwards.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = MemoryPath
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == MemoryPath {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS neighborhoods (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  city TEXT NOT NULL,
  walkability INTEGER NOT NULL,
  safety INTEGER NOT NULL,
  affordability INTEGER NOT NULL,
  nightlife INTEGER NOT NULL,
  family_friendly INTEGER NOT NULL,
  transit INTEGER NOT NULL,
  median_age INTEGER NOT NULL,
  median_income INTEGER NOT NULL,
  population INTEGER NOT NULL,
  key_features_json TEXT NOT NULL DEFAULT '[]',
  highlights_json TEXT NOT NULL DEFAULT '[]'
);
`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_neighborhoods_city ON neighborhoods(city);`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) CountNeighborhoods(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM neighborhoods`).Scan(&n)
	return n, err
}

// UpsertMany replaces the table contents with items in one transaction, so a
// reused database file never serves entries the catalog no longer has.
// Catalog order is kept in the position column.
func (s *SQLiteStore) UpsertMany(ctx context.Context, items []domain.NeighborhoodCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM neighborhoods`); err != nil {
		return fmt.Errorf("clear neighborhoods: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO neighborhoods
(id, position, name, city, walkability, safety, affordability, nightlife, family_friendly, transit,
 median_age, median_income, population, key_features_json, highlights_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, n := range items {
		kf, err := json.Marshal(nonNil(n.KeyFeatures))
		if err != nil {
			return fmt.Errorf("marshal key features of %q: %w", n.ID, err)
		}
		hl, err := json.Marshal(nonNil(n.Highlights))
		if err != nil {
			return fmt.Errorf("marshal highlights of %q: %w", n.ID, err)
		}
		b := n.BaseScores
		if _, err := stmt.ExecContext(ctx,
			n.ID, i, n.Name, n.City,
			b.Walkability, b.Safety, b.Affordability, b.Nightlife, b.FamilyFriendly, b.Transit,
			n.Demographics.MedianAge, n.Demographics.MedianIncome, n.Demographics.Population,
			string(kf), string(hl),
		); err != nil {
			return fmt.Errorf("insert %q: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

const selectColumns = `
SELECT id, name, city, walkability, safety, affordability, nightlife, family_friendly, transit,
       median_age, median_income, population, key_features_json, highlights_json
FROM neighborhoods
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNeighborhood(row rowScanner) (domain.NeighborhoodCandidate, error) {
	var n domain.NeighborhoodCandidate
	var kfJSON, hlJSON string
	b := &n.BaseScores
	d := &n.Demographics
	if err := row.Scan(
		&n.ID, &n.Name, &n.City,
		&b.Walkability, &b.Safety, &b.Affordability, &b.Nightlife, &b.FamilyFriendly, &b.Transit,
		&d.MedianAge, &d.MedianIncome, &d.Population,
		&kfJSON, &hlJSON,
	); err != nil {
		return domain.NeighborhoodCandidate{}, err
	}
	if err := json.Unmarshal([]byte(kfJSON), &n.KeyFeatures); err != nil {
		return domain.NeighborhoodCandidate{}, fmt.Errorf("decode key features of %q: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(hlJSON), &n.Highlights); err != nil {
		return domain.NeighborhoodCandidate{}, fmt.Errorf("decode highlights of %q: %w", n.ID, err)
	}
	return n, nil
}

func (s *SQLiteStore) GetNeighborhood(ctx context.Context, id string) (domain.NeighborhoodCandidate, error) {
	n, err := scanNeighborhood(s.db.QueryRowContext(ctx, selectColumns+`WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NeighborhoodCandidate{}, ErrNotFound
	}
	if err != nil {
		return domain.NeighborhoodCandidate{}, err
	}
	return n, nil
}

// BrowseFilter narrows and orders the browse listing. Sort is "" (catalog
// order), "name", or a category key with an optional "_asc" / "_desc" suffix
// (descending when omitted).
type BrowseFilter struct {
	City        string
	MinCategory domain.Category
	MinScore    int
	Sort        string
	Limit       int
	Offset      int
}

var categoryColumns = map[domain.Category]string{
	domain.CategoryWalkability:    "walkability",
	domain.CategorySafety:         "safety",
	domain.CategoryAffordability:  "affordability",
	domain.CategoryNightlife:      "nightlife",
	domain.CategoryFamilyFriendly: "family_friendly",
	domain.CategoryTransit:        "transit",
}

// ParseSort validates a sort key and returns its ORDER BY clause.
func ParseSort(sortBy string) (string, error) {
	switch sortBy {
	case "", "catalog":
		return "ORDER BY position", nil
	case "name":
		return "ORDER BY name ASC, position", nil
	}

	dir := "DESC"
	key := sortBy
	if k, ok := strings.CutSuffix(sortBy, "_asc"); ok {
		key, dir = k, "ASC"
	} else if k, ok := strings.CutSuffix(sortBy, "_desc"); ok {
		key = k
	}
	c, ok := domain.ParseCategory(key)
	if !ok {
		return "", fmt.Errorf("unknown sort %q", sortBy)
	}
	return "ORDER BY " + categoryColumns[c] + " " + dir + ", position", nil
}

func (s *SQLiteStore) ListNeighborhoods(ctx context.Context, f BrowseFilter) ([]domain.NeighborhoodCandidate, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	orderSQL, err := ParseSort(f.Sort)
	if err != nil {
		return nil, 0, err
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if strings.TrimSpace(f.City) != "" {
		// contains, case-insensitive; the input is matched literally
		where = append(where, `LOWER(city) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`)
		args = append(args, likeEscaper.Replace(strings.TrimSpace(f.City)))
	}
	if f.MinCategory != "" {
		col, ok := categoryColumns[f.MinCategory]
		if !ok {
			return nil, 0, fmt.Errorf("unknown category %q", f.MinCategory)
		}
		where = append(where, col+" >= ?")
		args = append(args, f.MinScore)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM neighborhoods "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rowsArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx, selectColumns+whereSQL+"\n"+orderSQL+"\nLIMIT ? OFFSET ?", rowsArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []domain.NeighborhoodCandidate{}
	for rows.Next() {
		n, err := scanNeighborhood(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// OpenIndex opens the store at path, creates the schema and seeds it with catalog.
func OpenIndex(ctx context.Context, path string, catalog []domain.NeighborhoodCandidate) (*SQLiteStore, error) {
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.UpsertMany(ctx, catalog); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return s, nil
}
