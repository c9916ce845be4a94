// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"cravemate/internal/models"
)

var ErrNotFound = errors.New("not found")

// Fixed width so that string ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS history (
        id TEXT PRIMARY KEY,
        text TEXT NOT NULL,
        moods TEXT NOT NULL,
        suggestions TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS favorites (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        mood TEXT NOT NULL,
        reason TEXT NOT NULL,
        image TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
    CREATE INDEX IF NOT EXISTS idx_favorites_created_at ON favorites(created_at);
    CREATE INDEX IF NOT EXISTS idx_favorites_name_mood ON favorites(name COLLATE NOCASE, mood COLLATE NOCASE);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) SaveHistory(ctx context.Context, entry *models.HistoryEntry) error {
	moods, err := json.Marshal(nonNilStrings(entry.Moods))
	if err != nil {
		return fmt.Errorf("failed to encode moods: %w", err)
	}
	suggestions := entry.Suggestions
	if suggestions == nil {
		suggestions = []models.EnrichedSuggestion{}
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	query := `
        INSERT INTO history (id, text, moods, suggestions, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.Text, string(moods), string(suggestionsJSON), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// GetHistory returns up to limit entries, newest first.
func (s *SQLiteStorage) GetHistory(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	query := `
        SELECT id, text, moods, suggestions, created_at
        FROM history
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		entry := &models.HistoryEntry{}
		var moodsStr, suggestionsStr, createdAtStr string

		if err := rows.Scan(&entry.ID, &entry.Text, &moodsStr, &suggestionsStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		if err := json.Unmarshal([]byte(moodsStr), &entry.Moods); err != nil {
			return nil, fmt.Errorf("failed to decode moods for %s: %w", entry.ID, err)
		}
		if err := json.Unmarshal([]byte(suggestionsStr), &entry.Suggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions for %s: %w", entry.ID, err)
		}
		if entry.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SaveFavorite stores fav unless a favorite with the same name and mood
// (ignoring case) already exists. In that case fav is overwritten with the
// stored row and created is false.
func (s *SQLiteStorage) SaveFavorite(ctx context.Context, fav *models.Favorite) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing := &models.Favorite{}
	var createdAtStr string
	err = tx.QueryRowContext(ctx, `
        SELECT id, name, mood, reason, image, created_at
        FROM favorites
        WHERE name = ? COLLATE NOCASE AND mood = ? COLLATE NOCASE
        ORDER BY created_at ASC
        LIMIT 1
    `, fav.Name, fav.Mood).Scan(&existing.ID, &existing.Name, &existing.Mood, &existing.Reason, &existing.Image, &createdAtStr)
	switch {
	case err == nil:
		if existing.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return false, fmt.Errorf("failed to parse created_at: %w", err)
		}
		*fav = *existing
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up favorite: %w", err)
	}

	query := `
        INSERT INTO favorites (id, name, mood, reason, image, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, query,
		fav.ID, fav.Name, fav.Mood, fav.Reason, fav.Image, formatTime(fav.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert favorite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit favorite: %w", err)
	}
	return true, nil
}

// GetFavorites returns all favorites, newest first.
func (s *SQLiteStorage) GetFavorites(ctx context.Context) ([]*models.Favorite, error) {
	query := `
        SELECT id, name, mood, reason, image, created_at
        FROM favorites
        ORDER BY created_at DESC, rowid DESC
    `

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*models.Favorite{}
	for rows.Next() {
		fav := &models.Favorite{}
		var createdAtStr string

		if err := rows.Scan(&fav.ID, &fav.Name, &fav.Mood, &fav.Reason, &fav.Image, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		if fav.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		favorites = append(favorites, fav)
	}

	return favorites, rows.Err()
}

func (s *SQLiteStorage) DeleteFavorite(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "favorite", `DELETE FROM favorites WHERE id = ?`, id)
}

// DeleteFavoriteByName removes the favorite saved for name and mood,
// ignoring case.
func (s *SQLiteStorage) DeleteFavoriteByName(ctx context.Context, name, mood string) error {
	return s.deleteOne(ctx, "favorite",
		`DELETE FROM favorites WHERE name = ? COLLATE NOCASE AND mood = ? COLLATE NOCASE`, name, mood)
}

func (s *SQLiteStorage) DeleteHistory(ctx context.Context, id string) error {
	return s.deleteOne(ctx, "history entry", `DELETE FROM history WHERE id = ?`, id)
}

// ClearHistory removes every history entry and reports how many there were.
func (s *SQLiteStorage) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) deleteOne(ctx context.Context, what, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
