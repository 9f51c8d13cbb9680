package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/simply-study/backend/internal/model/study"
)

// Slot keys. The persisted layout is two independent named slots: an optional
// credential string and the serialized study collection.
const (
	slotAPIKey  = "apiKey"
	slotStudies = "studies"
)

// SQLite persists the two slots in a single local key-value table. Saves
// fully overwrite a slot; loads treat absent or unreadable data as empty
// rather than fatal.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates the backing file and slot table as needed.
func Open(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create slots table: %w", err)
	}

	return &SQLite{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveStudies overwrites the study collection slot.
func (s *SQLite) SaveStudies(studies []study.Study) error {
	if studies == nil {
		studies = []study.Study{}
	}
	raw, err := json.Marshal(studies)
	if err != nil {
		return fmt.Errorf("failed to serialize studies: %w", err)
	}
	return s.put(slotStudies, raw)
}

// LoadStudies returns the last saved collection. A missing slot yields an
// empty collection; a corrupt or invalid payload is logged and likewise
// substituted with an empty collection instead of failing.
func (s *SQLite) LoadStudies() ([]study.Study, error) {
	raw, err := s.get(slotStudies)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []study.Study{}, nil
	}

	var studies []study.Study
	if err := json.Unmarshal(raw, &studies); err != nil {
		s.log.Warn("discarding unparseable study collection", zap.Error(err))
		return []study.Study{}, nil
	}
	for _, st := range studies {
		if err := st.Validate(); err != nil {
			s.log.Warn("discarding study collection with unknown tags", zap.Error(err))
			return []study.Study{}, nil
		}
	}
	if studies == nil {
		studies = []study.Study{}
	}
	return studies, nil
}

// SaveAPIKey overwrites the credential slot; an empty key clears it.
func (s *SQLite) SaveAPIKey(key string) error {
	if key == "" {
		_, err := s.db.Exec(`DELETE FROM slots WHERE key = ?`, slotAPIKey)
		if err != nil {
			return fmt.Errorf("failed to clear credential: %w", err)
		}
		return nil
	}
	return s.put(slotAPIKey, []byte(key))
}

// LoadAPIKey returns the stored credential, or "" when none is set.
func (s *SQLite) LoadAPIKey() (string, error) {
	raw, err := s.get(slotAPIKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *SQLite) put(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO slots (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, nil
}
