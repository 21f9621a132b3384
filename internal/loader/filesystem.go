package loader

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"promptsync/internal/models"
)

// FilesystemSource loads content from a structured local tree:
//
//	<base>/commands/**/*.md   command files (commands/shared/ excluded;
//	                          that subtree holds include fragments)
//	<base>/shared/personas.yaml   personas singleton (probed, see loader.go)
//	<base>/shared/rules.md        rules singleton (probed, see loader.go)
type FilesystemSource struct {
	basePath string
	unparsed unparsedLog
}

// NewFilesystemSource creates a loader over the given base directory
func NewFilesystemSource(basePath string) *FilesystemSource {
	return &FilesystemSource{
		basePath: basePath,
		unparsed: unparsedLog{source: "filesystem"},
	}
}

// LoadCommands recursively discovers command markdown files under
// commands/. A missing or unreadable tree yields an empty result.
func (s *FilesystemSource) LoadCommands(ctx context.Context) ([]models.Command, error) {
	root := filepath.Join(s.basePath, "commands")
	sharedDir := filepath.Join(root, "shared")

	commands := []models.Command{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("⚠️  [FS] Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == sharedDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.unparsed.record(relPath(s.basePath, path), err)
			return nil
		}

		stem := strings.TrimSuffix(d.Name(), ".md")
		cmd, err := ParseCommandMD(string(data), stem)
		if err != nil {
			log.Printf("⚠️  [FS] Failed to parse command %s: %v", path, err)
			s.unparsed.record(relPath(s.basePath, path), err)
			return nil
		}

		cmd.Prompt = expandIncludes(cmd.Prompt, s.resolveInclude)
		commands = append(commands, cmd)
		return nil
	})
	if err != nil {
		// Root missing or unreadable: the source has no commands tree
		log.Printf("⚠️  [FS] Commands tree unavailable at %s: %v", root, err)
		return []models.Command{}, nil
	}

	log.Printf("📂 [FS] Loaded %d commands from %s", len(commands), root)
	return commands, nil
}

// LoadPersonas probes the persona singleton candidates and parses the
// first one that exists. No candidate present means no personas.
func (s *FilesystemSource) LoadPersonas(ctx context.Context) ([]models.Persona, error) {
	path, data, ok := s.probe(personaCandidates)
	if !ok {
		return []models.Persona{}, nil
	}

	personas, err := ParsePersonasYAML(string(data))
	if err != nil {
		log.Printf("⚠️  [FS] Failed to parse personas %s: %v", path, err)
		s.unparsed.record(path, err)
		return []models.Persona{}, nil
	}

	log.Printf("📂 [FS] Loaded %d personas from %s", len(personas), path)
	return personas, nil
}

// LoadRules probes the rules singleton candidates. No candidate present
// means no rules are defined, an empty set rather than an error.
func (s *FilesystemSource) LoadRules(ctx context.Context) (models.RuleSet, error) {
	path, data, ok := s.probe(ruleCandidates)
	if !ok {
		return models.RuleSet{Rules: []models.Rule{}}, nil
	}

	set, err := ParseRulesMD(string(data))
	if err != nil {
		log.Printf("⚠️  [FS] Failed to parse rules %s: %v", path, err)
		s.unparsed.record(path, err)
		return models.RuleSet{Rules: []models.Rule{}}, nil
	}

	log.Printf("📂 [FS] Loaded %d rules from %s", len(set.Rules), path)
	return set, nil
}

// LoadSharedIncludes resolves fragment references and concatenates their
// bodies in input order. Unresolved references are skipped with a warning.
func (s *FilesystemSource) LoadSharedIncludes(ctx context.Context, refs []string) (string, error) {
	var sb strings.Builder
	for _, ref := range refs {
		fragment, ok := s.resolveInclude(ref)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}

// ClearCache is a no-op: the filesystem loader reads straight from disk
func (s *FilesystemSource) ClearCache() {}

// UnparsedFiles drains the parse-failure diagnostics of the current pass
func (s *FilesystemSource) UnparsedFiles() []models.UnparsedFile {
	return s.unparsed.drain()
}

// resolveInclude probes the include fragment directories in order
func (s *FilesystemSource) resolveInclude(ref string) (string, bool) {
	// Refuse path escapes out of the source tree
	if strings.Contains(ref, "..") {
		log.Printf("⚠️  [FS] Ignoring include reference with path escape: %q", ref)
		return "", false
	}
	for _, dir := range includeDirs {
		data, err := os.ReadFile(filepath.Join(s.basePath, dir, ref))
		if err == nil {
			return strings.TrimSpace(string(data)), true
		}
	}
	log.Printf("⚠️  [FS] Unresolved include reference %q", ref)
	return "", false
}

// probe returns the content of the first existing candidate file
func (s *FilesystemSource) probe(candidates []string) (string, []byte, bool) {
	for _, rel := range candidates {
		path := filepath.Join(s.basePath, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err == nil {
			return rel, data, true
		}
		if !os.IsNotExist(err) {
			log.Printf("⚠️  [FS] Failed to read %s: %v", path, err)
		}
	}
	return "", nil, false
}

func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
