package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/armbench/internal/store"
)

// storeRun runs a short simulation into db and returns its run id.
func storeRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	full := append([]string{"run", "--format", "sqlite", "--out", db, "--json"}, args...)
	stdout, _, err := execute(t, full...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var result struct {
		RunID  string `json:"run_id"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decoding run result %q: %v", stdout, err)
	}
	if result.Output != db {
		t.Errorf("output = %q, want %q", result.Output, db)
	}
	return result.RunID
}

func TestRunsCmd_ListShowDelete(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	first := storeRun(t, db, "0.2", "0.8", "--rounds", "30", "--strategy", "oracle", "--seed", "1")
	second := storeRun(t, db, "0.4", "0.6", "0.5", "--rounds", "15", "--strategy", "naive", "--seed", "2")

	stdout, _, err := execute(t, "runs", "list", "--db", db)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	for _, want := range []string{"RUN ID", first, second, "Oracle", "Naive Random"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("list missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "runs", "show", first, "--db", db)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	for _, want := range []string{"seed 1", "Oracle - 30 Plays", "Arm #2\t30\t", "Total Regret: "} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "runs", "show", second, "--db", db, "--rounds")
	if err != nil {
		t.Fatalf("runs show --rounds: %v", err)
	}
	header := "arm_prob_1,arm_prob_2,arm_prob_3,regret\n"
	idx := strings.Index(stdout, header)
	if idx < 0 {
		t.Fatalf("show --rounds missing CSV header:\n%s", stdout)
	}
	rows := strings.Split(strings.TrimRight(stdout[idx+len(header):], "\n"), "\n")
	if len(rows) != 15 {
		t.Errorf("got %d stored rounds, want 15", len(rows))
	}
	if !strings.HasPrefix(rows[0], "0.50000,0.50000,0.50000,") {
		t.Errorf("first stored round = %q, want prior estimates", rows[0])
	}

	if _, _, err := execute(t, "runs", "delete", first, "--db", db); err != nil {
		t.Fatalf("runs delete: %v", err)
	}

	stdout, _, err = execute(t, "runs", "list", "--db", db, "--json")
	if err != nil {
		t.Fatalf("runs list --json: %v", err)
	}
	var listed struct {
		Runs []struct {
			RunID string `json:"run_id"`
		} `json:"runs"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(stdout), &listed); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if listed.Count != 1 || listed.Runs[0].RunID != second {
		t.Errorf("after delete runs = %+v, want only %s", listed.Runs, second)
	}
}

func TestRunsCmd_ShowJSON(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	id := storeRun(t, db, "0.3", "0.7", "--rounds", "5", "--strategy", "constant", "--seed", "3")

	stdout, _, err := execute(t, "runs", "show", id, "--db", db, "--json", "--rounds")
	if err != nil {
		t.Fatalf("runs show --json: %v", err)
	}

	var got struct {
		Run struct {
			Seed   uint64 `json:"seed"`
			Played int    `json:"played"`
		} `json:"run"`
		Arms []struct {
			Arm   int   `json:"arm"`
			Plays int64 `json:"plays"`
		} `json:"arms"`
		Rounds []struct {
			Round    int `json:"round"`
			Selected int `json:"selected"`
		} `json:"rounds"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Run.Seed != 3 || got.Run.Played != 5 {
		t.Errorf("run = %+v", got.Run)
	}
	if len(got.Arms) != 2 || got.Arms[0].Plays != 5 || got.Arms[1].Plays != 0 {
		t.Errorf("arms = %+v, want every play on the first arm", got.Arms)
	}
	if len(got.Rounds) != 5 {
		t.Fatalf("len(rounds) = %d, want 5", len(got.Rounds))
	}
	for _, r := range got.Rounds {
		if r.Selected != 0 {
			t.Errorf("round %d selected %d, want 0", r.Round, r.Selected)
		}
	}
}

func TestRunsCmd_Empty(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	stdout, _, err := execute(t, "runs", "list", "--db", db)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(stdout, "No runs stored.") {
		t.Errorf("output = %q", stdout)
	}
}

func TestRunsCmd_UnknownRun(t *testing.T) {
	isolateHome(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	_, _, err := execute(t, "runs", "show", "missing", "--db", db)
	if !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("show: expected ErrRunNotFound, got %v", err)
	}
	_, _, err = execute(t, "runs", "delete", "missing", "--db", db)
	if !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("delete: expected ErrRunNotFound, got %v", err)
	}
}

func TestRunsCmd_DefaultDB(t *testing.T) {
	home := isolateHome(t)

	stdout, _, err := execute(t, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(stdout, "No runs stored.") {
		t.Errorf("output = %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(home, ".armbench", "runs.db")); err != nil {
		t.Errorf("default database not created: %v", err)
	}
}
