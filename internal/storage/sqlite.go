package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/osusume/internal/feature"
	"github.com/hyperjump/osusume/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bundles (
		id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		mode TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		dimensions TEXT NOT NULL,
		mins BLOB NOT NULL,
		maxs BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bundle_books (
		bundle_id TEXT NOT NULL,
		row INTEGER NOT NULL,
		book_id TEXT,
		title TEXT NOT NULL,
		authors TEXT,
		primary_author TEXT,
		average_rating REAL NOT NULL,
		ratings_count INTEGER NOT NULL,
		language_code TEXT,
		num_pages INTEGER NOT NULL,
		publication_year INTEGER NOT NULL,
		description TEXT,
		PRIMARY KEY (bundle_id, row),
		FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS bundle_vectors (
		bundle_id TEXT NOT NULL,
		row INTEGER NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (bundle_id, row),
		FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveBundle replaces any stored bundle with b in a single transaction. A
// reader never observes a half-written bundle. The bundle's ID, schema
// version, and creation time are assigned here if unset.
func (s *SQLiteStore) SaveBundle(ctx context.Context, b *Bundle) error {
	if len(b.Matrix) != len(b.Books) {
		return fmt.Errorf("matrix rows (%d) and books (%d) out of sync", len(b.Matrix), len(b.Books))
	}
	dims := b.Mode.Dims()
	if dims == 0 || len(b.Dimensions) != dims || len(b.Mins) != dims || len(b.Maxs) != dims {
		return fmt.Errorf("%w: mode %q expects %d dimensions", ErrSchemaMismatch, b.Mode, dims)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.SchemaVersion = SchemaVersion
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"bundle_vectors", "bundle_books", "bundles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bundles (id, schema_version, mode, created_at, dimensions, mins, maxs)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SchemaVersion, string(b.Mode), b.CreatedAt,
		strings.Join(b.Dimensions, "\n"), encodeFloats(b.Mins), encodeFloats(b.Maxs),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bundle: %w", err)
	}

	bookStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bundle_books (bundle_id, row, book_id, title, authors, primary_author,
		   average_rating, ratings_count, language_code, num_pages, publication_year, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer bookStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bundle_vectors (bundle_id, row, vector) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for row, book := range b.Books {
		if _, err := bookStmt.ExecContext(ctx, b.ID, row,
			book.BookID, book.Title, book.Authors, book.PrimaryAuthor,
			book.AverageRating, book.RatingsCount, book.LanguageCode,
			book.NumPages, book.PublicationYear, book.Description,
		); err != nil {
			return fmt.Errorf("failed to insert book row %d: %w", row, err)
		}
		vec := b.Matrix[row]
		if len(vec) != dims {
			return fmt.Errorf("%w: row %d has %d dimensions, want %d", ErrSchemaMismatch, row, len(vec), dims)
		}
		if _, err := vecStmt.ExecContext(ctx, b.ID, row, encodeFloats(vec)); err != nil {
			return fmt.Errorf("failed to insert vector row %d: %w", row, err)
		}
	}

	return tx.Commit()
}

// LoadBundle returns the stored bundle. ErrNoBundle is returned when nothing
// has been saved; ErrSchemaMismatch when the stored bundle is unusable.
func (s *SQLiteStore) LoadBundle(ctx context.Context) (*Bundle, error) {
	var b Bundle
	var mode, dimensions string
	var mins, maxs []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, schema_version, mode, created_at, dimensions, mins, maxs
		 FROM bundles LIMIT 1`,
	).Scan(&b.ID, &b.SchemaVersion, &mode, &b.CreatedAt, &dimensions, &mins, &maxs)
	if err == sql.ErrNoRows {
		return nil, ErrNoBundle
	}
	if err != nil {
		return nil, err
	}

	if b.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: stored version %d, want %d", ErrSchemaMismatch, b.SchemaVersion, SchemaVersion)
	}
	b.Mode = feature.Mode(mode)
	dims := b.Mode.Dims()
	if dims == 0 {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrSchemaMismatch, mode)
	}
	b.Dimensions = strings.Split(dimensions, "\n")
	b.Mins = decodeFloats(mins)
	b.Maxs = decodeFloats(maxs)
	if len(b.Dimensions) != dims || len(b.Mins) != dims || len(b.Maxs) != dims {
		return nil, fmt.Errorf("%w: mode %q expects %d dimensions", ErrSchemaMismatch, mode, dims)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row, book_id, title, authors, primary_author, average_rating,
		   ratings_count, language_code, num_pages, publication_year, description
		 FROM bundle_books WHERE bundle_id = ? ORDER BY row`, b.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row int
		var book models.Book
		if err := rows.Scan(&row, &book.BookID, &book.Title, &book.Authors,
			&book.PrimaryAuthor, &book.AverageRating, &book.RatingsCount,
			&book.LanguageCode, &book.NumPages, &book.PublicationYear,
			&book.Description,
		); err != nil {
			return nil, err
		}
		if row != len(b.Books) {
			return nil, fmt.Errorf("%w: book rows not contiguous at %d", ErrSchemaMismatch, row)
		}
		b.Books = append(b.Books, &book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vecRows, err := s.db.QueryContext(ctx,
		`SELECT row, vector FROM bundle_vectors WHERE bundle_id = ? ORDER BY row`, b.ID,
	)
	if err != nil {
		return nil, err
	}
	defer vecRows.Close()

	for vecRows.Next() {
		var row int
		var blob []byte
		if err := vecRows.Scan(&row, &blob); err != nil {
			return nil, err
		}
		vec := decodeFloats(blob)
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: vector row %d has %d dimensions, want %d", ErrSchemaMismatch, row, len(vec), dims)
		}
		if row != len(b.Matrix) {
			return nil, fmt.Errorf("%w: vector rows not contiguous at %d", ErrSchemaMismatch, row)
		}
		b.Matrix = append(b.Matrix, vec)
	}
	if err := vecRows.Err(); err != nil {
		return nil, err
	}

	if len(b.Matrix) != len(b.Books) {
		return nil, fmt.Errorf("%w: %d vectors for %d books", ErrSchemaMismatch, len(b.Matrix), len(b.Books))
	}
	if len(b.Books) == 0 {
		return nil, ErrNoBundle
	}
	return &b, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeFloats packs values as little-endian IEEE 754 doubles.
func encodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeFloats(buf []byte) []float64 {
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values
}
