package models

import "time"

// Sync status values recorded in SyncMetadata
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncMetadata records the outcome of the most recent sync pass
type SyncMetadata struct {
	LastSync     time.Time `json:"lastSync"`
	SyncStatus   string    `json:"syncStatus"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// UnparsedFile records a source file that failed to parse during a load
// pass. Purely diagnostic, reset at the start of each pass.
type UnparsedFile struct {
	Path      string    `json:"path"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// Database is the whole persisted mirror document. IDs are unique within
// each collection; items absent from a later fetch are kept (the mirror is
// append-only, see DESIGN.md).
type Database struct {
	Commands      []CommandModel `json:"commands"`
	Personas      []PersonaModel `json:"personas"`
	Rules         []RuleModel    `json:"rules"`
	SyncMetadata  SyncMetadata   `json:"syncMetadata"`
	UnparsedFiles []UnparsedFile `json:"unparsedFiles"`
}

// NewDatabase returns a fresh empty mirror document
func NewDatabase() *Database {
	return &Database{
		Commands:      []CommandModel{},
		Personas:      []PersonaModel{},
		Rules:         []RuleModel{},
		UnparsedFiles: []UnparsedFile{},
	}
}
