package models

import "time"

// Command represents a reusable prompt command fetched from the source.
// Content items carry no identity or versioning; IDs and hashes are
// assigned by the sync engine when they are persisted.
type Command struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Prompt      string            `json:"prompt" yaml:"prompt"`
	Arguments   []CommandArgument `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// CommandArgument describes a typed placeholder in a command's prompt template
type CommandArgument struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Persona represents a character/voice definition fetched from the source
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Prompt      string `json:"prompt" yaml:"prompt"`
}

// Rule is a single named guideline from the rules document
type Rule struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// RuleSet is the full set of rules defined by the source.
// A source with no rules file yields an empty set, not an error.
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

// CommandModel is a Command as persisted in the mirror
type CommandModel struct {
	Command
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// PersonaModel is a Persona as persisted in the mirror
type PersonaModel struct {
	Persona
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// RuleModel is a Rule as persisted in the mirror
type RuleModel struct {
	Rule
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	LastUpdated time.Time `json:"lastUpdated"`
}
