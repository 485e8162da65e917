package main

import (
	"testing"

	"github.com/jimezsa/gigscope/internal/cmd"
)

func TestApplyEnvDefaults(t *testing.T) {
	t.Setenv("GIGSCOPE_JSON", "yes")
	t.Setenv("GIGSCOPE_PLAIN", "0")
	t.Setenv("GIGSCOPE_VERBOSE", "on")
	t.Setenv("GIGSCOPE_COLOR", "never")

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)
	if !cli.JSON || cli.Plain || !cli.Verbose || cli.Color != "never" {
		t.Fatalf("unexpected flags %+v", cli)
	}
}

func TestBuildVersion(t *testing.T) {
	defer func(v, c, d string) { version, commit, date = v, c, d }(version, commit, date)

	version, commit, date = "1.2.0", "", ""
	if got := buildVersion(); got != "1.2.0" {
		t.Fatalf("got %q", got)
	}
	commit, date = "abc123", "2025-01-02"
	if got := buildVersion(); got != "1.2.0 (abc123, 2025-01-02)" {
		t.Fatalf("got %q", got)
	}
}
