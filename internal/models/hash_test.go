package models

import "testing"

func TestContentID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "build", "build"},
		{"mixed case", "Build Project", "build-project"},
		{"extra whitespace", "  Fix   CI  ", "fix-ci"},
		{"dotted", "release.notes", "release.notes"},
		{"special chars dropped", "deploy (prod)!", "deploy-prod"},
		{"trailing junk", "weird---", "weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentID(tt.input); got != tt.expected {
				t.Errorf("ContentID(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHashCommand_Idempotent(t *testing.T) {
	cmd := Command{
		Name:        "build",
		Description: "Build project",
		Prompt:      "Run the build and report failures.",
		Arguments:   []CommandArgument{{Name: "target", Required: true}},
	}

	h1 := HashCommand(cmd)
	h2 := HashCommand(cmd)

	if h1 == "" {
		t.Fatal("hash should not be empty")
	}
	if h1 != h2 {
		t.Errorf("hashing the same content twice gave %s and %s", h1, h2)
	}
}

func TestHashCommand_ChangesWithContent(t *testing.T) {
	base := Command{Name: "build", Description: "Build project", Prompt: "..."}
	changed := base
	changed.Description = "Build the project"

	if HashCommand(base) == HashCommand(changed) {
		t.Error("hash should change when description changes")
	}
}

func TestHash_IgnoresModelFields(t *testing.T) {
	p := Persona{Name: "reviewer", Prompt: "You are a careful reviewer."}

	m1 := PersonaModel{Persona: p, ID: "reviewer", Hash: "aaa"}
	m2 := PersonaModel{Persona: p, ID: "other", Hash: "bbb"}

	if HashPersona(m1.Persona) != HashPersona(m2.Persona) {
		t.Error("hash must depend only on content fields, not ID/Hash/LastUpdated")
	}
}

func TestHashRule(t *testing.T) {
	r1 := Rule{Name: "style", Content: "Prefer small functions."}
	r2 := Rule{Name: "style", Content: "Prefer small functions!"}

	if HashRule(r1) == HashRule(r2) {
		t.Error("different rule content must hash differently")
	}
	if HashRule(r1) != HashRule(r1) {
		t.Error("identical rule content must hash identically")
	}
}
