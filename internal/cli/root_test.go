package cli

import (
	"strings"
	"testing"
)

func TestCommandRegistration(t *testing.T) {
	want := []string{"start", "stop", "status", "list", "clear", "validate", "mcp", "version"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("expected %q command to be registered", name)
		}
	}
}

func TestCommandsRequireInitializedStore(t *testing.T) {
	origSessions := Sessions
	origConfig := Config
	defer func() {
		Sessions = origSessions
		Config = origConfig
	}()
	Sessions = nil
	Config = nil

	for _, cmd := range []string{"start", "stop", "status", "list", "clear", "validate", "mcp"} {
		for _, c := range rootCmd.Commands() {
			if c.Name() != cmd {
				continue
			}
			args := []string{}
			if cmd == "validate" {
				args = []string{"some-session"}
			}
			err := c.RunE(c, args)
			if err == nil || !strings.Contains(err.Error(), "not initialized") {
				t.Errorf("%s: expected initialization error, got %v", cmd, err)
			}
		}
	}
}

func TestSessionEnv(t *testing.T) {
	env := sessionEnv("20250115_100000_ab12cd34")

	found := false
	for _, kv := range env {
		if kv == "RECLI_SESSION_ID=20250115_100000_ab12cd34" {
			found = true
		}
	}
	if !found {
		t.Error("expected RECLI_SESSION_ID in session environment")
	}
	if len(env) < 2 {
		t.Error("expected inherited environment to be preserved")
	}
}
