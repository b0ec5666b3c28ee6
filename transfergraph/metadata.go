package transfergraph

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MetadataStore persists graph_metadata.db (spec.md §9): the build
// parameters a compiled transfer graph was produced with, so a later
// rebuild or audit can tell what R_max and T_max were in
// effect without re-deriving them from the binary graph. Grounded on
// the teacher's feed/storage/sqlite.go: sqlite stands in for a
// dedicated embedded KV store, since the teacher's stack already
// carries mattn/go-sqlite3 for exactly this "small embedded durable
// table" role and a single extra table costs nothing.
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadataStore opens (creating if necessary) the KV store at path.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening graph metadata db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating metadata table: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

// Set records a build parameter, overwriting any prior value.
func (m *MetadataStore) Set(key, value string) error {
	_, err := m.db.Exec(`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("setting metadata %q: %w", key, err)
	}
	return nil
}

// Get retrieves a build parameter, returning ok=false if unset.
func (m *MetadataStore) Get(key string) (string, bool, error) {
	var value string
	err := m.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting metadata %q: %w", key, err)
	}
	return value, true, nil
}

// Close releases the underlying database handle.
func (m *MetadataStore) Close() error {
	return m.db.Close()
}

// WriteConfig persists cfg's fields under well-known keys so a later
// rebuild can recover the parameters this graph was produced with.
func (m *MetadataStore) WriteConfig(cfg Config) error {
	if err := m.Set("max_radius_meters", fmt.Sprintf("%g", cfg.MaxRadiusMeters)); err != nil {
		return err
	}
	if err := m.Set("max_walk_seconds", fmt.Sprintf("%g", cfg.MaxWalkSeconds)); err != nil {
		return err
	}
	return nil
}
