// Package policy implements the decision rule that classifies tool
// invocations as requiring human approval or not. The engine is a pure
// table lookup: it holds no state and is safe for concurrent use.
package policy

import "strings"

// Rule describes how one tool category is gated.
// Exactly one of Always or Patterns should be set; a rule with neither
// never requires confirmation.
type Rule struct {
	// Always requires confirmation for every invocation of the tool,
	// regardless of its input.
	Always bool `yaml:"always"`

	// Patterns requires confirmation when the tool's command string
	// contains any listed pattern as a case-sensitive substring.
	// Patterns are checked in order; the first match wins.
	Patterns []string `yaml:"patterns"`
}

// Config is the policy rule table.
type Config struct {
	// Skip lists tools that never require confirmation. Skip takes
	// precedence over Rules.
	Skip []string `yaml:"skip"`

	// Rules maps tool names to their gating rule. Tools absent from the
	// table never require confirmation: sensitive tools must be
	// enumerated explicitly.
	Rules map[string]Rule `yaml:"rules"`
}

// Default returns the built-in rule table: read-style tools are skipped,
// mutating tools always confirm, and shell commands confirm only when they
// contain a destructive pattern.
func Default() Config {
	return Config{
		Skip: []string{"Read", "Glob", "Grep", "WebFetch", "WebSearch", "Task", "TodoWrite"},
		Rules: map[string]Rule{
			"Bash": {Patterns: []string{
				"rm", "sudo", "chmod", "chown", "mv",
				"git push", "git reset", "npm publish",
			}},
			"Write":        {Always: true},
			"Edit":         {Always: true},
			"NotebookEdit": {Always: true},
		},
	}
}

// Engine evaluates the rule table for tool invocations.
type Engine struct {
	skip  map[string]struct{}
	rules map[string]Rule
}

// NewEngine builds an engine from a config. An empty config gates nothing.
func NewEngine(cfg Config) *Engine {
	skip := make(map[string]struct{}, len(cfg.Skip))
	for _, name := range cfg.Skip {
		skip[name] = struct{}{}
	}
	return &Engine{skip: skip, rules: cfg.Rules}
}

// NeedsConfirmation reports whether executing the tool with the given input
// requires human approval.
func (e *Engine) NeedsConfirmation(tool string, input map[string]any) bool {
	ok, _ := e.evaluate(tool, input)
	return ok
}

// Match is NeedsConfirmation plus the pattern that triggered the decision.
// The pattern is empty for always-confirm rules.
func (e *Engine) Match(tool string, input map[string]any) (pattern string, confirm bool) {
	confirm, pattern = e.evaluate(tool, input)
	return pattern, confirm
}

func (e *Engine) evaluate(tool string, input map[string]any) (bool, string) {
	if _, skipped := e.skip[tool]; skipped {
		return false, ""
	}

	rule, ok := e.rules[tool]
	if !ok {
		// Unknown tools are not gated: fail open.
		return false, ""
	}

	if rule.Always {
		return true, ""
	}

	if len(rule.Patterns) > 0 {
		command, _ := input["command"].(string)
		for _, p := range rule.Patterns {
			if strings.Contains(command, p) {
				return true, p
			}
		}
	}

	return false, ""
}
