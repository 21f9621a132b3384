package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"promptsync/internal/models"
)

// ErrNotInitialized is returned by every store operation that runs before
// Initialize has completed. This is a sequencing bug in the caller, not a
// recoverable condition.
var ErrNotInitialized = errors.New("store not initialized")

// Store is a single-writer, whole-file JSON document store for the mirror.
// Every mutation re-reads the backing document first (to tolerate stale
// in-memory state when other readers share the file) and writes the full
// document back via an atomic temp-file rename. The store assumes it is
// the sole writer process; see DESIGN.md.
type Store struct {
	path        string
	mu          sync.Mutex
	initialized bool
}

// New creates a store backed by the JSON document at path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

// Initialize creates the backing document with empty collections if it
// does not exist yet. Calling Initialize on an already-initialized store
// is a no-op.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := s.write(models.NewDatabase()); err != nil {
			return fmt.Errorf("failed to create database file: %w", err)
		}
		log.Printf("📦 [STORE] Created new database at %s", s.path)
	} else if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}

	// Fail now rather than on first use if the existing file is garbage
	if _, err := s.read(); err != nil {
		return err
	}

	s.initialized = true
	log.Printf("✅ [STORE] Database initialized (%s)", s.path)
	return nil
}

// Close flushes nothing (every write is already durable) and marks the
// store uninitialized so later calls fail fast.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return nil
}

// read loads and decodes the whole backing document
func (s *Store) read() (*models.Database, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}

	var db models.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse database file: %w", err)
	}

	// Collections stay non-nil so the JSON layout keeps its top-level arrays
	if db.Commands == nil {
		db.Commands = []models.CommandModel{}
	}
	if db.Personas == nil {
		db.Personas = []models.PersonaModel{}
	}
	if db.Rules == nil {
		db.Rules = []models.RuleModel{}
	}
	if db.UnparsedFiles == nil {
		db.UnparsedFiles = []models.UnparsedFile{}
	}

	return &db, nil
}

// write replaces the backing document atomically (temp file + rename) so a
// crash mid-write never leaves a truncated mirror behind.
func (s *Store) write(db *models.Database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode database: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write database file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace database file: %w", err)
	}
	return nil
}

// mutate runs fn against a freshly read document and persists the result
func (s *Store) mutate(fn func(db *models.Database)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	db, err := s.read()
	if err != nil {
		return err
	}
	fn(db)
	return s.write(db)
}

// UpsertCommand inserts or replaces a single command by ID
func (s *Store) UpsertCommand(cmd models.CommandModel) error {
	return s.UpsertCommands([]models.CommandModel{cmd})
}

// UpsertCommands inserts or replaces a batch of commands by ID
func (s *Store) UpsertCommands(cmds []models.CommandModel) error {
	if len(cmds) == 0 {
		return s.check()
	}
	return s.mutate(func(db *models.Database) {
		for _, cmd := range cmds {
			db.Commands = upsertCommand(db.Commands, cmd)
		}
	})
}

// UpsertPersona inserts or replaces a single persona by ID
func (s *Store) UpsertPersona(p models.PersonaModel) error {
	return s.UpsertPersonas([]models.PersonaModel{p})
}

// UpsertPersonas inserts or replaces a batch of personas by ID
func (s *Store) UpsertPersonas(personas []models.PersonaModel) error {
	if len(personas) == 0 {
		return s.check()
	}
	return s.mutate(func(db *models.Database) {
		for _, p := range personas {
			db.Personas = upsertPersona(db.Personas, p)
		}
	})
}

// UpsertRule inserts or replaces a single rule by ID
func (s *Store) UpsertRule(r models.RuleModel) error {
	return s.UpsertRules([]models.RuleModel{r})
}

// UpsertRules inserts or replaces a batch of rules by ID
func (s *Store) UpsertRules(rules []models.RuleModel) error {
	if len(rules) == 0 {
		return s.check()
	}
	return s.mutate(func(db *models.Database) {
		for _, r := range rules {
			db.Rules = upsertRule(db.Rules, r)
		}
	})
}

func upsertCommand(list []models.CommandModel, item models.CommandModel) []models.CommandModel {
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

func upsertPersona(list []models.PersonaModel, item models.PersonaModel) []models.PersonaModel {
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

func upsertRule(list []models.RuleModel, item models.RuleModel) []models.RuleModel {
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

// GetAllCommands returns every persisted command
func (s *Store) GetAllCommands() ([]models.CommandModel, error) {
	db, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return db.Commands, nil
}

// GetAllPersonas returns every persisted persona
func (s *Store) GetAllPersonas() ([]models.PersonaModel, error) {
	db, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return db.Personas, nil
}

// GetAllRules returns every persisted rule
func (s *Store) GetAllRules() ([]models.RuleModel, error) {
	db, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return db.Rules, nil
}

// GetSyncMetadata returns the outcome record of the most recent sync pass
func (s *Store) GetSyncMetadata() (models.SyncMetadata, error) {
	db, err := s.snapshot()
	if err != nil {
		return models.SyncMetadata{}, err
	}
	return db.SyncMetadata, nil
}

// GetUnparsedFiles returns the parse-failure diagnostics of the most
// recent load pass
func (s *Store) GetUnparsedFiles() ([]models.UnparsedFile, error) {
	db, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return db.UnparsedFiles, nil
}

// snapshot returns a freshly read copy of the whole document
func (s *Store) snapshot() (*models.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.read()
}

// UpdateSyncMetadata overwrites the sync outcome with a fresh LastSync
// timestamp and the given status/error
func (s *Store) UpdateSyncMetadata(status, errorMessage string) error {
	return s.mutate(func(db *models.Database) {
		db.SyncMetadata = models.SyncMetadata{
			LastSync:     time.Now().UTC(),
			SyncStatus:   status,
			ErrorMessage: errorMessage,
		}
	})
}

// SetUnparsedFiles replaces the parse-failure diagnostics wholesale.
// Called once per sync pass with whatever the loader collected.
func (s *Store) SetUnparsedFiles(files []models.UnparsedFile) error {
	if files == nil {
		files = []models.UnparsedFile{}
	}
	return s.mutate(func(db *models.Database) {
		db.UnparsedFiles = files
	})
}

// ClearAll replaces the entire mirror with a fresh empty document. Used
// for resets, never during a normal sync pass.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	log.Printf("🗑️  [STORE] Clearing all mirror data (%s)", s.path)
	return s.write(models.NewDatabase())
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}
