package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome points HOME at a temp directory so ~/.armbench/config.yaml on
// the machine running the tests is never read, and clears ARMBENCH_*
// overrides.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, name := range []string{
		"ARMBENCH_PROBABILITIES", "ARMBENCH_ROUNDS", "ARMBENCH_STRATEGY", "ARMBENCH_EPSILON",
		"ARMBENCH_ALPHA", "ARMBENCH_SEED", "ARMBENCH_LOG_LEVEL", "ARMBENCH_OUTPUT_FORMAT",
	} {
		t.Setenv(name, "")
	}
	return home
}

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()
	if rootCmd.Use != "armbench" {
		t.Errorf("Use = %q, want armbench", rootCmd.Use)
	}
	if rootCmd.PersistentFlags().Lookup("json") == nil {
		t.Error("missing persistent --json flag")
	}

	want := map[string]bool{"version": false, "run": false, "strategies": false, "config": false, "runs": false, "mcp-server": false}
	for _, sub := range rootCmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "armbench version "+version) {
		t.Errorf("output = %q", stdout)
	}

	stdout, _, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decoding %q: %v", stdout, err)
	}
	if got["version"] != version || got["commit"] != commit || got["date"] != date {
		t.Errorf("version json = %v", got)
	}
}

func TestStrategiesCmd(t *testing.T) {
	stdout, _, err := execute(t, "strategies")
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want header plus 7 strategies:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"epsilon-decay", "decay", "epsilon,alpha", "(baseline)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestStrategiesCmd_JSON(t *testing.T) {
	stdout, _, err := execute(t, "strategies", "--json")
	if err != nil {
		t.Fatalf("strategies --json: %v", err)
	}

	var got struct {
		Strategies []struct {
			Name   string   `json:"name"`
			Params []string `json:"params"`
		} `json:"strategies"`
		Aliases map[string]string `json:"aliases"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Count != 7 || len(got.Strategies) != 7 {
		t.Errorf("count = %d, len = %d, want 7", got.Count, len(got.Strategies))
	}
	if got.Aliases["naive"] != "naive-random" {
		t.Errorf("alias naive = %q", got.Aliases["naive"])
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q", got)
	}
	if got := orDash("x"); got != "x" {
		t.Errorf("orDash(\"x\") = %q", got)
	}
}
