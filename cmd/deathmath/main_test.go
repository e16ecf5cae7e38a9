package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Technolog796/DeathMath/internal/aggregate"
	"github.com/Technolog796/DeathMath/internal/leaderboard"
)

func TestSelectDatasets(t *testing.T) {
	t.Parallel()

	all, err := selectDatasets(nil)
	if err != nil {
		t.Fatalf("selectDatasets(nil): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("default datasets = %d, want 2", len(all))
	}

	picked, err := selectDatasets([]string{" Math ", "physics"})
	if err != nil {
		t.Fatalf("selectDatasets: %v", err)
	}
	if len(picked) != 2 || picked[0].Name() != "russianmath" || picked[1].Name() != "russianphysics" {
		t.Fatalf("picked: %v", picked)
	}

	if _, err := selectDatasets([]string{"chemistry"}); err == nil {
		t.Fatal("expected error for unknown dataset")
	}
	if _, err := selectDatasets([]string{" ", ""}); err == nil {
		t.Fatal("expected error when nothing is selected")
	}
}

func TestResolveLeaderboardPath(t *testing.T) {
	if got := resolveLeaderboardPath("", "/tmp/custom.db"); got != "/tmp/custom.db" {
		t.Fatalf("flag path ignored: %q", got)
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := `
model_list:
  - gpt-test
storage:
  leaderboard_path: /var/lib/deathmath/lb.db
gpt-test:
  api_type: openai
  endpoints:
    - api_base: http://localhost:1
      api_key: test-key
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if got := resolveLeaderboardPath(cfgPath, ""); got != "/var/lib/deathmath/lb.db" {
		t.Fatalf("config path ignored: %q", got)
	}
	if got := resolveLeaderboardPath(filepath.Join(dir, "absent.yaml"), ""); got != defaultLeaderboardPath {
		t.Fatalf("missing config should fall back: %q", got)
	}
}

func TestWriteReportFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "report.md")
	scores := []aggregate.ModelScore{
		{
			Model:   "model-a",
			Overall: aggregate.DatasetScore{Dataset: "overall", Attempted: 4, Correct: 3, Accuracy: 0.75},
			Datasets: []aggregate.DatasetScore{
				{Dataset: "math", Attempted: 4, Correct: 3, Accuracy: 0.75},
			},
		},
	}

	if err := writeReportFile(path, scores, 12*time.Second); err != nil {
		t.Fatalf("writeReportFile: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "model-a") || !strings.Contains(string(b), "75.00%") {
		t.Fatalf("report content:\n%s", b)
	}
}

func TestLeaderboardCommand(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "lb.db")
	store, err := leaderboard.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	scores := []aggregate.ModelScore{
		{
			Model:   "model-a",
			Overall: aggregate.DatasetScore{Dataset: "overall", Attempted: 10, Correct: 9, Accuracy: 0.9},
		},
	}
	if err := store.SaveRun(context.Background(), "run-1", scores); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"leaderboard", "--db", dbPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "model-a") {
		t.Fatalf("output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "90.00%") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestLeaderboardCommand_Empty(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "lb.db")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"leaderboard", "--db", dbPath})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "No entries") {
		t.Fatalf("output:\n%s", out.String())
	}
}
