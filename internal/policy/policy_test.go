package policy

import "testing"

func defaultEngine() *Engine {
	return NewEngine(Default())
}

func TestSkipToolsNeverConfirm(t *testing.T) {
	t.Parallel()

	e := defaultEngine()
	skip := []string{"Read", "Glob", "Grep", "WebFetch", "WebSearch", "Task", "TodoWrite"}

	for _, tool := range skip {
		if e.NeedsConfirmation(tool, map[string]any{"command": "rm -rf /"}) {
			t.Errorf("%s: skip tool should never confirm, even with dangerous payload", tool)
		}
	}
}

func TestAlwaysConfirmTools(t *testing.T) {
	t.Parallel()

	e := defaultEngine()

	for _, tool := range []string{"Write", "Edit", "NotebookEdit"} {
		if !e.NeedsConfirmation(tool, nil) {
			t.Errorf("%s: want confirmation with nil input", tool)
		}
		if !e.NeedsConfirmation(tool, map[string]any{"file_path": "/tmp/a"}) {
			t.Errorf("%s: want confirmation with any input", tool)
		}
	}
}

func TestPatternRule(t *testing.T) {
	t.Parallel()

	e := defaultEngine()

	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"destructive rm", "rm -rf /tmp/x", true},
		{"sudo", "sudo apt install jq", true},
		{"git push", "git push origin main", true},
		{"harmless ls", "ls -la", false},
		{"harmless echo", "echo hello", false},
		{"empty command", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := e.NeedsConfirmation("Bash", map[string]any{"command": tt.command})
			if got != tt.want {
				t.Errorf("NeedsConfirmation(Bash, %q): got %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestPatternMatchIsCaseSensitive(t *testing.T) {
	t.Parallel()

	e := defaultEngine()
	if e.NeedsConfirmation("Bash", map[string]any{"command": "SUDO echo"}) {
		t.Error("pattern matching must be case-sensitive")
	}
}

func TestUnknownToolFailsOpen(t *testing.T) {
	t.Parallel()

	e := defaultEngine()
	if e.NeedsConfirmation("SomeNewTool", map[string]any{"command": "rm -rf /"}) {
		t.Error("unknown tools must not be gated")
	}
}

func TestMatchReportsFirstPattern(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{
		Rules: map[string]Rule{
			"Bash": {Patterns: []string{"rm", "sudo"}},
		},
	})

	pattern, confirm := e.Match("Bash", map[string]any{"command": "sudo rm -rf /"})
	if !confirm {
		t.Fatal("want confirmation")
	}
	// "rm" is listed first and is contained in the command.
	if pattern != "rm" {
		t.Errorf("pattern: got %q, want %q", pattern, "rm")
	}
}

func TestMatchAlwaysRuleHasNoPattern(t *testing.T) {
	t.Parallel()

	e := defaultEngine()
	pattern, confirm := e.Match("Write", map[string]any{"file_path": "/etc/hosts"})
	if !confirm {
		t.Fatal("want confirmation")
	}
	if pattern != "" {
		t.Errorf("pattern: got %q, want empty for always rule", pattern)
	}
}

func TestEmptyConfigGatesNothing(t *testing.T) {
	t.Parallel()

	e := NewEngine(Config{})
	if e.NeedsConfirmation("Bash", map[string]any{"command": "rm -rf /"}) {
		t.Error("empty config must not gate anything")
	}
}
