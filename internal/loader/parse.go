package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"promptsync/internal/models"
)

const maxContentSize = 100 * 1024 // 100KB per content file

// commandFrontmatter is the YAML frontmatter of a command markdown file
type commandFrontmatter struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Arguments   []models.CommandArgument `yaml:"arguments"`
}

// ParseCommandMD parses a command file: optional YAML frontmatter followed
// by the prompt template body. When no frontmatter delimiters are found the
// entire content is the prompt. fallbackName is used when the frontmatter
// carries no name (typically the filename stem).
func ParseCommandMD(content, fallbackName string) (models.Command, error) {
	fm, body, err := splitFrontmatter(content)
	if err != nil {
		return models.Command{}, err
	}

	var meta commandFrontmatter
	if fm != "" {
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return models.Command{}, fmt.Errorf("invalid YAML frontmatter: %w", err)
		}
	}

	name := meta.Name
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return models.Command{}, fmt.Errorf("command has no name")
	}

	description := meta.Description
	if description == "" {
		description = leadingSummary(body)
	}

	return models.Command{
		Name:        name,
		Description: description,
		Prompt:      body,
		Arguments:   meta.Arguments,
	}, nil
}

// splitFrontmatter separates "---" delimited YAML frontmatter from the
// markdown body. Returns ("", body, nil) when no frontmatter is present;
// an unterminated opening delimiter also falls back to treating everything
// as body.
func splitFrontmatter(content string) (string, string, error) {
	if len(content) > maxContentSize {
		return "", "", fmt.Errorf("content exceeds maximum size of %d bytes", maxContentSize)
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", fmt.Errorf("empty content")
	}

	if !strings.HasPrefix(content, "---\n") {
		return "", content, nil
	}

	rest := content[4:]
	closingIdx := strings.Index(rest, "\n---")
	if closingIdx == -1 {
		return "", content, nil
	}

	return rest[:closingIdx], strings.TrimSpace(rest[closingIdx+4:]), nil
}

// leadingSummary derives a short description from the first paragraph of a
// markdown body, used when the frontmatter has no description.
func leadingSummary(body string) string {
	if body == "" {
		return ""
	}
	desc := body
	if idx := strings.Index(desc, "\n\n"); idx > 0 {
		desc = desc[:idx]
	}
	desc = strings.TrimPrefix(desc, "# ")
	desc = strings.TrimSpace(desc)
	if len(desc) > 150 {
		desc = desc[:150] + "..."
	}
	return desc
}

// personasDocument is the shape of the personas singleton YAML file
type personasDocument struct {
	Personas []models.Persona `yaml:"personas"`
}

// ParsePersonasYAML parses the personas singleton. Accepts either a
// top-level `personas:` list or a bare list of persona entries.
func ParsePersonasYAML(content string) ([]models.Persona, error) {
	if len(content) > maxContentSize {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", maxContentSize)
	}

	var doc personasDocument
	if err := yaml.Unmarshal([]byte(content), &doc); err == nil && len(doc.Personas) > 0 {
		return doc.Personas, nil
	}

	var list []models.Persona
	if err := yaml.Unmarshal([]byte(content), &list); err != nil {
		return nil, fmt.Errorf("invalid personas YAML: %w", err)
	}
	return list, nil
}

// ParseRulesMD splits the rules singleton into named rules on `## `
// headings. A document with no second-level headings becomes a single rule
// (named by its `# ` title when present, otherwise "rules").
func ParseRulesMD(content string) (models.RuleSet, error) {
	_, body, err := splitFrontmatter(content)
	if err != nil {
		return models.RuleSet{}, err
	}

	lines := strings.Split(body, "\n")
	set := models.RuleSet{Rules: []models.Rule{}}

	var name string
	var section []string
	flush := func() {
		if name == "" {
			return
		}
		set.Rules = append(set.Rules, models.Rule{
			Name:    name,
			Content: strings.TrimSpace(strings.Join(section, "\n")),
		})
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			name = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			section = section[:0]
			continue
		}
		section = append(section, line)
	}
	flush()

	if len(set.Rules) == 0 && strings.TrimSpace(body) != "" {
		title := "rules"
		rest := body
		if strings.HasPrefix(body, "# ") {
			if idx := strings.Index(body, "\n"); idx > 0 {
				title = strings.TrimSpace(strings.TrimPrefix(body[:idx], "# "))
				rest = body[idx+1:]
			}
		}
		set.Rules = append(set.Rules, models.Rule{
			Name:    title,
			Content: strings.TrimSpace(rest),
		})
	}

	return set, nil
}

const includeMarker = "{{include:"

// ExtractIncludeRefs returns, in document order, every fragment reference
// named by an inclusion directive line of the form `{{include: name.md}}`.
func ExtractIncludeRefs(content string) []string {
	var refs []string
	for _, line := range strings.Split(content, "\n") {
		ref, ok := parseIncludeLine(line)
		if ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func parseIncludeLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, includeMarker) || !strings.HasSuffix(line, "}}") {
		return "", false
	}
	ref := strings.TrimSpace(line[len(includeMarker) : len(line)-2])
	return ref, ref != ""
}

// expandIncludes replaces each inclusion directive line in body with the
// fragment text produced by resolve. Unresolved references are dropped
// with a warning from the resolver, never an error.
func expandIncludes(body string, resolve func(ref string) (string, bool)) string {
	if !strings.Contains(body, includeMarker) {
		return body
	}

	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		ref, ok := parseIncludeLine(line)
		if !ok {
			out = append(out, line)
			continue
		}
		if fragment, found := resolve(ref); found {
			out = append(out, strings.TrimRight(fragment, "\n"))
		}
	}
	return strings.Join(out, "\n")
}
