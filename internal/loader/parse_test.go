package loader

import (
	"strings"
	"testing"
)

func TestParseCommandMD_WithFrontmatter(t *testing.T) {
	content := `---
name: build
description: Build project
arguments:
  - name: target
    description: Build target
    required: true
---

Run the build for {{target}} and report failures.`

	cmd, err := ParseCommandMD(content, "fallback")
	if err != nil {
		t.Fatalf("ParseCommandMD failed: %v", err)
	}
	if cmd.Name != "build" {
		t.Errorf("name = %q, want build", cmd.Name)
	}
	if cmd.Description != "Build project" {
		t.Errorf("description = %q", cmd.Description)
	}
	if len(cmd.Arguments) != 1 || cmd.Arguments[0].Name != "target" || !cmd.Arguments[0].Required {
		t.Errorf("arguments = %+v", cmd.Arguments)
	}
	if !strings.HasPrefix(cmd.Prompt, "Run the build") {
		t.Errorf("prompt = %q", cmd.Prompt)
	}
}

func TestParseCommandMD_NoFrontmatter(t *testing.T) {
	cmd, err := ParseCommandMD("Just a prompt body.", "review")
	if err != nil {
		t.Fatalf("ParseCommandMD failed: %v", err)
	}
	if cmd.Name != "review" {
		t.Errorf("name should fall back to filename stem, got %q", cmd.Name)
	}
	if cmd.Prompt != "Just a prompt body." {
		t.Errorf("prompt = %q", cmd.Prompt)
	}
	if cmd.Description != "Just a prompt body." {
		t.Errorf("description should fall back to leading paragraph, got %q", cmd.Description)
	}
}

func TestParseCommandMD_UnterminatedFrontmatter(t *testing.T) {
	content := "---\nname: broken\nno closing delimiter"
	cmd, err := ParseCommandMD(content, "stem")
	if err != nil {
		t.Fatalf("ParseCommandMD failed: %v", err)
	}
	// Whole content becomes the body
	if cmd.Name != "stem" {
		t.Errorf("name = %q, want stem", cmd.Name)
	}
	if !strings.Contains(cmd.Prompt, "no closing delimiter") {
		t.Errorf("prompt = %q", cmd.Prompt)
	}
}

func TestParseCommandMD_InvalidYAML(t *testing.T) {
	content := "---\nname: [unclosed\n---\nbody"
	if _, err := ParseCommandMD(content, "x"); err == nil {
		t.Error("expected error for invalid frontmatter YAML")
	}
}

func TestParseCommandMD_Empty(t *testing.T) {
	if _, err := ParseCommandMD("   \n", "x"); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestParsePersonasYAML(t *testing.T) {
	doc := `personas:
  - name: reviewer
    description: Careful code reviewer
    prompt: You review code.
  - name: mentor
    prompt: You explain things.
`
	personas, err := ParsePersonasYAML(doc)
	if err != nil {
		t.Fatalf("ParsePersonasYAML failed: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(personas))
	}
	if personas[0].Name != "reviewer" || personas[1].Prompt != "You explain things." {
		t.Errorf("personas = %+v", personas)
	}
}

func TestParsePersonasYAML_BareList(t *testing.T) {
	doc := `- name: reviewer
  prompt: You review code.
`
	personas, err := ParsePersonasYAML(doc)
	if err != nil {
		t.Fatalf("ParsePersonasYAML failed: %v", err)
	}
	if len(personas) != 1 || personas[0].Name != "reviewer" {
		t.Errorf("personas = %+v", personas)
	}
}

func TestParseRulesMD_Headings(t *testing.T) {
	doc := `# Project rules

preamble text

## Style
Prefer small functions.

## Testing
Every bug fix gets a regression test.
`
	set, err := ParseRulesMD(doc)
	if err != nil {
		t.Fatalf("ParseRulesMD failed: %v", err)
	}
	if len(set.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(set.Rules))
	}
	if set.Rules[0].Name != "Style" || set.Rules[0].Content != "Prefer small functions." {
		t.Errorf("rule[0] = %+v", set.Rules[0])
	}
	if set.Rules[1].Name != "Testing" {
		t.Errorf("rule[1] = %+v", set.Rules[1])
	}
}

func TestParseRulesMD_NoHeadings(t *testing.T) {
	set, err := ParseRulesMD("# House rules\nBe kind.\n")
	if err != nil {
		t.Fatalf("ParseRulesMD failed: %v", err)
	}
	if len(set.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(set.Rules))
	}
	if set.Rules[0].Name != "House rules" || set.Rules[0].Content != "Be kind." {
		t.Errorf("rule = %+v", set.Rules[0])
	}
}

func TestExtractIncludeRefs(t *testing.T) {
	body := `intro
{{include: header.md}}
middle
  {{include: footer.md}}
{{include:}}
not {{include: inline.md}} on its own line`

	refs := ExtractIncludeRefs(body)
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v", refs)
	}
	if refs[0] != "header.md" || refs[1] != "footer.md" {
		t.Errorf("refs = %v", refs)
	}
}

func TestExpandIncludes(t *testing.T) {
	body := "before\n{{include: a.md}}\n{{include: missing.md}}\nafter"
	out := expandIncludes(body, func(ref string) (string, bool) {
		if ref == "a.md" {
			return "FRAGMENT A", true
		}
		return "", false
	})

	want := "before\nFRAGMENT A\nafter"
	if out != want {
		t.Errorf("expandIncludes = %q, want %q", out, want)
	}
}
