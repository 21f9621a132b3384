package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"promptsync/internal/database"
	"promptsync/internal/loader"
	"promptsync/internal/logging"
	"promptsync/internal/models"
)

// ErrSyncInProgress is returned when a sync pass is requested while
// another pass is still running. The request is rejected, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// DatabaseView is the read-path shape of the mirror: personas keyed by ID
// for convenient lookup, commands and rules as lists.
type DatabaseView struct {
	Commands []models.CommandModel          `json:"commands"`
	Personas map[string]models.PersonaModel `json:"personas"`
	Rules    []models.RuleModel             `json:"rules"`
}

// SyncService runs fetch-diff-upsert passes against the mirror. The three
// content categories are processed sequentially in a fixed order and a
// failure in one never blocks the others. An atomic flag guarantees no two
// passes overlap.
type SyncService struct {
	store      *database.Store
	source     loader.Source
	sourceType string
	metrics    *Metrics
	syncing    atomic.Bool
}

// NewSyncService creates a sync service over the given store and source.
// sourceType is only used for logging ("filesystem" or "github").
func NewSyncService(store *database.Store, source loader.Source, sourceType string) *SyncService {
	return &SyncService{
		store:      store,
		source:     source,
		sourceType: sourceType,
	}
}

// SetMetrics attaches Prometheus metrics. Optional; the service works
// without them.
func (s *SyncService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// IsSyncing reports whether a pass is currently running
func (s *SyncService) IsSyncing() bool {
	return s.syncing.Load()
}

// SyncFromSource runs one complete sync pass: commands, personas, rules,
// each independently fetched, diffed and upserted. Per-category failures
// are aggregated into the sync metadata; only store I/O failures on the
// final metadata write propagate to the caller.
func (s *SyncService) SyncFromSource(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		log.Printf("⏭️  [SYNC] Pass requested while another is running, skipping")
		s.metrics.recordSkipped()
		return ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	passID := uuid.New().String()[:8]
	logger := logging.WithSyncPass(passID, s.sourceType)
	logger.Info("sync pass started")
	started := time.Now()

	var errs []string
	record := func(category string, err error) {
		if err == nil {
			return
		}
		logging.WithCategory(logger, category).Error("category failed", "error", err)
		errs = append(errs, fmt.Sprintf("%s: %s", category, err.Error()))
	}

	record("Commands", s.syncCommands(ctx))
	record("Personas", s.syncPersonas(ctx))
	record("Rules", s.syncRules(ctx))

	// Parse-failure diagnostics collected by the loader during this pass.
	// Best effort, losing diagnostics must not fail the pass.
	if err := s.store.SetUnparsedFiles(s.source.UnparsedFiles()); err != nil {
		log.Printf("⚠️  [SYNC] Failed to persist unparsed-file log: %v", err)
	}

	elapsed := time.Since(started)
	if len(errs) > 0 {
		summary := strings.Join(errs, "; ")
		logger.Warn("sync pass finished with failures", "errors", summary, "elapsed", elapsed)
		s.metrics.recordPass(models.SyncStatusFailed, elapsed)
		return s.store.UpdateSyncMetadata(models.SyncStatusFailed, summary)
	}

	logger.Info("sync pass finished", "elapsed", elapsed)
	s.metrics.recordPass(models.SyncStatusSuccess, elapsed)
	return s.store.UpdateSyncMetadata(models.SyncStatusSuccess, "")
}

func (s *SyncService) syncCommands(ctx context.Context) error {
	incoming, err := s.source.LoadCommands(ctx)
	if err != nil {
		return err
	}

	stored, err := s.store.GetAllCommands()
	if err != nil {
		return err
	}
	existing := make(map[string]models.CommandModel, len(stored))
	for _, m := range stored {
		existing[m.ID] = m
	}

	now := time.Now().UTC()
	batch := make([]models.CommandModel, 0, len(incoming))
	changed := 0
	for _, cmd := range incoming {
		m := models.CommandModel{
			Command:     cmd,
			ID:          models.ContentID(cmd.Name),
			Hash:        models.HashCommand(cmd),
			LastUpdated: now,
		}
		if prev, ok := existing[m.ID]; ok && prev.Hash == m.Hash {
			// Unchanged content keeps its original timestamp so consumers
			// can tell "changed" from "merely re-fetched"
			m.LastUpdated = prev.LastUpdated
		} else {
			changed++
		}
		batch = append(batch, m)
	}

	if err := s.store.UpsertCommands(batch); err != nil {
		return err
	}
	if changed > 0 {
		log.Printf("🔄 [SYNC] Commands: %d of %d changed", changed, len(batch))
	}
	s.metrics.recordChanged("commands", changed)
	return nil
}

func (s *SyncService) syncPersonas(ctx context.Context) error {
	incoming, err := s.source.LoadPersonas(ctx)
	if err != nil {
		return err
	}

	stored, err := s.store.GetAllPersonas()
	if err != nil {
		return err
	}
	existing := make(map[string]models.PersonaModel, len(stored))
	for _, m := range stored {
		existing[m.ID] = m
	}

	now := time.Now().UTC()
	batch := make([]models.PersonaModel, 0, len(incoming))
	changed := 0
	for _, p := range incoming {
		m := models.PersonaModel{
			Persona:     p,
			ID:          models.ContentID(p.Name),
			Hash:        models.HashPersona(p),
			LastUpdated: now,
		}
		if prev, ok := existing[m.ID]; ok && prev.Hash == m.Hash {
			m.LastUpdated = prev.LastUpdated
		} else {
			changed++
		}
		batch = append(batch, m)
	}

	if err := s.store.UpsertPersonas(batch); err != nil {
		return err
	}
	if changed > 0 {
		log.Printf("🔄 [SYNC] Personas: %d of %d changed", changed, len(batch))
	}
	s.metrics.recordChanged("personas", changed)
	return nil
}

func (s *SyncService) syncRules(ctx context.Context) error {
	incoming, err := s.source.LoadRules(ctx)
	if err != nil {
		return err
	}

	stored, err := s.store.GetAllRules()
	if err != nil {
		return err
	}
	existing := make(map[string]models.RuleModel, len(stored))
	for _, m := range stored {
		existing[m.ID] = m
	}

	now := time.Now().UTC()
	batch := make([]models.RuleModel, 0, len(incoming.Rules))
	changed := 0
	for _, r := range incoming.Rules {
		m := models.RuleModel{
			Rule:        r,
			ID:          models.ContentID(r.Name),
			Hash:        models.HashRule(r),
			LastUpdated: now,
		}
		if prev, ok := existing[m.ID]; ok && prev.Hash == m.Hash {
			m.LastUpdated = prev.LastUpdated
		} else {
			changed++
		}
		batch = append(batch, m)
	}

	if err := s.store.UpsertRules(batch); err != nil {
		return err
	}
	if changed > 0 {
		log.Printf("🔄 [SYNC] Rules: %d of %d changed", changed, len(batch))
	}
	s.metrics.recordChanged("rules", changed)
	return nil
}

// TriggerSync forces an immediate sync pass
func (s *SyncService) TriggerSync(ctx context.Context) error {
	return s.SyncFromSource(ctx)
}

// LoadFromDatabase is the pure read path: current mirror collections
// without touching the source, personas reshaped into an ID-keyed map.
func (s *SyncService) LoadFromDatabase() (*DatabaseView, error) {
	commands, err := s.store.GetAllCommands()
	if err != nil {
		return nil, err
	}
	personas, err := s.store.GetAllPersonas()
	if err != nil {
		return nil, err
	}
	rules, err := s.store.GetAllRules()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.PersonaModel, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}

	return &DatabaseView{
		Commands: commands,
		Personas: byID,
		Rules:    rules,
	}, nil
}

// GetAllCommands returns the mirrored commands without syncing
func (s *SyncService) GetAllCommands() ([]models.CommandModel, error) {
	return s.store.GetAllCommands()
}

// GetAllPersonas returns the mirrored personas without syncing
func (s *SyncService) GetAllPersonas() ([]models.PersonaModel, error) {
	return s.store.GetAllPersonas()
}

// GetAllRules returns the mirrored rules without syncing
func (s *SyncService) GetAllRules() ([]models.RuleModel, error) {
	return s.store.GetAllRules()
}

// GetLastSync returns the outcome record of the most recent pass
func (s *SyncService) GetLastSync() (models.SyncMetadata, error) {
	return s.store.GetSyncMetadata()
}

// GetUnparsedFiles returns the parse-failure diagnostics of the most
// recent pass
func (s *SyncService) GetUnparsedFiles() ([]models.UnparsedFile, error) {
	return s.store.GetUnparsedFiles()
}

// ClearCache invalidates the loader's response cache
func (s *SyncService) ClearCache() {
	s.source.ClearCache()
}
