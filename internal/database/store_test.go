package database

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"promptsync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "data", "mirror.json"))
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return s
}

func TestStore_InitializeCreatesEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	cmds, err := s.GetAllCommands()
	if err != nil {
		t.Fatalf("GetAllCommands failed: %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("expected empty commands, got %d", len(cmds))
	}

	meta, err := s.GetSyncMetadata()
	if err != nil {
		t.Fatalf("GetSyncMetadata failed: %v", err)
	}
	if !meta.LastSync.IsZero() || meta.SyncStatus != "" {
		t.Errorf("expected zeroed sync metadata, got %+v", meta)
	}
}

func TestStore_InitializeIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertCommand(models.CommandModel{
		Command: models.Command{Name: "build"},
		ID:      "build",
		Hash:    "abc",
	}); err != nil {
		t.Fatalf("UpsertCommand failed: %v", err)
	}

	// Second Initialize must not wipe existing data
	if err := s.Initialize(); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	cmds, err := s.GetAllCommands()
	if err != nil {
		t.Fatalf("GetAllCommands failed: %v", err)
	}
	if len(cmds) != 1 {
		t.Errorf("expected 1 command after re-initialize, got %d", len(cmds))
	}
}

func TestStore_FailsFastBeforeInitialize(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "mirror.json"))

	if _, err := s.GetAllCommands(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAllCommands before init: got %v, want ErrNotInitialized", err)
	}
	if err := s.UpsertPersonas(nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("UpsertPersonas before init: got %v, want ErrNotInitialized", err)
	}
	if err := s.UpdateSyncMetadata(models.SyncStatusSuccess, ""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("UpdateSyncMetadata before init: got %v, want ErrNotInitialized", err)
	}
}

func TestStore_CloseMarksUninitialized(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.GetAllRules(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized after Close, got %v", err)
	}
}

func TestStore_UpsertReplacesByID(t *testing.T) {
	s := newTestStore(t)

	first := models.CommandModel{
		Command: models.Command{Name: "build", Description: "v1"},
		ID:      "build",
		Hash:    "h1",
	}
	if err := s.UpsertCommand(first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := first
	second.Description = "v2"
	second.Hash = "h2"
	if err := s.UpsertCommand(second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	cmds, err := s.GetAllCommands()
	if err != nil {
		t.Fatalf("GetAllCommands failed: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Description != "v2" || cmds[0].Hash != "h2" {
		t.Errorf("upsert did not replace in place: %+v", cmds[0])
	}
}

func TestStore_UpsertManyAppendsNewIDs(t *testing.T) {
	s := newTestStore(t)

	batch := []models.PersonaModel{
		{Persona: models.Persona{Name: "reviewer"}, ID: "reviewer", Hash: "a"},
		{Persona: models.Persona{Name: "mentor"}, ID: "mentor", Hash: "b"},
	}
	if err := s.UpsertPersonas(batch); err != nil {
		t.Fatalf("UpsertPersonas failed: %v", err)
	}

	personas, err := s.GetAllPersonas()
	if err != nil {
		t.Fatalf("GetAllPersonas failed: %v", err)
	}
	if len(personas) != 2 {
		t.Errorf("expected 2 personas, got %d", len(personas))
	}
}

func TestStore_RereadsBeforeMutating(t *testing.T) {
	s := newTestStore(t)

	// Simulate an external writer replacing the backing file between calls
	external := models.NewDatabase()
	external.Rules = []models.RuleModel{
		{Rule: models.Rule{Name: "style", Content: "x"}, ID: "style", Hash: "h"},
	}
	data, err := json.Marshal(external)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.UpsertCommand(models.CommandModel{
		Command: models.Command{Name: "build"},
		ID:      "build",
		Hash:    "h1",
	}); err != nil {
		t.Fatalf("UpsertCommand failed: %v", err)
	}

	rules, err := s.GetAllRules()
	if err != nil {
		t.Fatalf("GetAllRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("externally written rule was lost: got %d rules", len(rules))
	}
}

func TestStore_UpdateSyncMetadata(t *testing.T) {
	s := newTestStore(t)

	before := time.Now().Add(-time.Second)
	if err := s.UpdateSyncMetadata(models.SyncStatusFailed, "Personas: boom"); err != nil {
		t.Fatalf("UpdateSyncMetadata failed: %v", err)
	}

	meta, err := s.GetSyncMetadata()
	if err != nil {
		t.Fatalf("GetSyncMetadata failed: %v", err)
	}
	if meta.SyncStatus != models.SyncStatusFailed {
		t.Errorf("status = %q, want failed", meta.SyncStatus)
	}
	if meta.ErrorMessage != "Personas: boom" {
		t.Errorf("errorMessage = %q", meta.ErrorMessage)
	}
	if meta.LastSync.Before(before) {
		t.Errorf("LastSync was not refreshed: %v", meta.LastSync)
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertRule(models.RuleModel{
		Rule: models.Rule{Name: "style", Content: "x"},
		ID:   "style", Hash: "h",
	}); err != nil {
		t.Fatalf("UpsertRule failed: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	rules, err := s.GetAllRules()
	if err != nil {
		t.Fatalf("GetAllRules failed: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("expected empty rules after ClearAll, got %d", len(rules))
	}
}

func TestStore_PersistedLayout(t *testing.T) {
	s := newTestStore(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.UpsertCommand(models.CommandModel{
		Command:     models.Command{Name: "build", Description: "Build project", Prompt: "..."},
		ID:          "build",
		Hash:        "deadbeef",
		LastUpdated: ts,
	}); err != nil {
		t.Fatalf("UpsertCommand failed: %v", err)
	}

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("backing file is not valid JSON: %v", err)
	}
	for _, key := range []string{"commands", "personas", "rules", "syncMetadata", "unparsedFiles"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("backing document missing top-level key %q", key)
		}
	}

	var cmds []map[string]interface{}
	if err := json.Unmarshal(doc["commands"], &cmds); err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 persisted command, got %d", len(cmds))
	}
	if cmds[0]["lastUpdated"] != "2026-03-01T12:00:00Z" {
		t.Errorf("lastUpdated not serialized as RFC3339: %v", cmds[0]["lastUpdated"])
	}
}
