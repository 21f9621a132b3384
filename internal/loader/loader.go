package loader

import (
	"context"
	"sync"
	"time"

	"promptsync/internal/models"
)

// Singleton probe candidates, in preference order. The first existing
// candidate wins; no merging across candidates.
var (
	personaCandidates = []string{"shared/personas.yaml", "shared/personas.yml", "personas.yaml"}
	ruleCandidates    = []string{"shared/rules.md", "shared/rules.markdown", "rules.md"}
)

// Include fragments are probed under the commands tree first, then the
// top-level shared tree.
var includeDirs = []string{"commands/shared", "shared"}

// Source loads the current full content set from an authoritative origin.
// Source-unreachable conditions (missing tree, network/API failure, rate
// limit) degrade to empty results without an error; only unexpected
// failures are returned. Files that exist but cannot be interpreted are
// recorded into the unparsed-file log and skipped.
type Source interface {
	LoadCommands(ctx context.Context) ([]models.Command, error)
	LoadPersonas(ctx context.Context) ([]models.Persona, error)
	LoadRules(ctx context.Context) (models.RuleSet, error)

	// LoadSharedIncludes resolves fragment references in input order and
	// concatenates the resolved bodies. Unresolved references are skipped
	// with a warning.
	LoadSharedIncludes(ctx context.Context, refs []string) (string, error)

	// ClearCache invalidates any response cache. No-op for sources that
	// read straight from disk.
	ClearCache()

	// UnparsedFiles drains the parse-failure diagnostics collected since
	// the previous drain.
	UnparsedFiles() []models.UnparsedFile
}

// unparsedLog accumulates parse-failure diagnostics during a load pass
type unparsedLog struct {
	mu     sync.Mutex
	source string
	files  []models.UnparsedFile
}

func (l *unparsedLog) record(path string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = append(l.files, models.UnparsedFile{
		Path:      path,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
		Source:    l.source,
	})
}

func (l *unparsedLog) drain() []models.UnparsedFile {
	l.mu.Lock()
	defer l.mu.Unlock()
	files := l.files
	l.files = nil
	if files == nil {
		files = []models.UnparsedFile{}
	}
	return files
}
