package stats

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"helixpi/internal/model"
	"helixpi/internal/vector"
)

func sampleArtifacts(runID string) RunArtifacts {
	output := model.NewOutput()
	output.Entities["hero"] = model.Tree{Root: model.Sequence{ID: "s", Children: []model.Entity{
		model.Move{ID: "m", Direction: model.Right, Amount: 1},
		model.Noop{ID: "n"},
	}}}
	output.Entities["ant"] = model.Tree{Root: model.Move{ID: "a", Direction: model.Up, Amount: 2}}
	output.ErrorLevels["hero"] = map[string]float64{"walk": 0, "_total": 0}
	output.Positions["hero"] = map[string][]vector.Vector{"walk": {{X: 0, Y: 0}, {X: 1, Y: 0}}}

	return RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Seed:           1,
			Actors:         []string{"ant", "hero"},
			Scenarios:      1,
			PopulationSize: 16,
			Generations:    3,
			Workers:        2,
		},
		Output: output,
		Actors: []model.ActorSummary{
			{Actor: "ant", Path: "simple", Scenarios: 1, Generations: 1, Converged: true, BestFitness: 1},
			{Actor: "hero", Path: "simple", Scenarios: 1, Generations: 1, Converged: true, BestFitness: 3},
		},
		Diagnostics: []model.GenerationDiagnostics{
			{Actor: "hero", Phase: "walk", Generation: 1, Population: 16, BestFitness: 3, MeanFitness: 40.5, StdDevFitness: 2.25, MeanSize: 4, Diversity: 9},
			{Actor: "ant", Phase: "walk", Generation: 1, Population: 16, BestFitness: 1, MeanFitness: 12, StdDevFitness: 0.5, MeanSize: 2, Diversity: 5},
		},
		TopEntities: []model.TopEntityRecord{{Actor: "hero", Rank: 1, Fitness: 3, Fingerprint: "seq", Entity: output.Entities["hero"]}},
		Lineage: []model.LineageRecord{{
			Actor:      "hero",
			Phase:      "walk",
			EntityID:   "m",
			ParentIDs:  []string{"p1", "p2"},
			Generation: 2,
			Operation:  "swap",
		}},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{configFile, outputFile, actorsFile, diagnosticsFile, programsFile, topEntitiesFile, lineageFile}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		want, err := os.ReadFile(filepath.Join(runDir, file))
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		got, err := os.ReadFile(filepath.Join(exportedDir, file))
		if err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
		if string(got) != string(want) {
			t.Fatalf("exported %s differs from source", file)
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestExportRunArtifactsMissingRun(t *testing.T) {
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected missing run directory error")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "", t.TempDir()); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-read")
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(cfg, artifacts.Config) {
		t.Fatalf("config mismatch: got=%+v want=%+v", cfg, artifacts.Config)
	}

	output, ok, err := ReadOutput(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read output: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(output.Entities["hero"].Root, artifacts.Output.Entities["hero"].Root) {
		t.Fatalf("hero program mismatch: %#v", output.Entities["hero"].Root)
	}
	if got := output.Positions["hero"]["walk"]; len(got) != 2 || got[1] != (vector.Vector{X: 1, Y: 0}) {
		t.Fatalf("unexpected positions: %+v", got)
	}

	top, ok, err := ReadTopEntities(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read top entities: ok=%t err=%v", ok, err)
	}
	if len(top) != 1 || top[0].Rank != 1 || top[0].Entity.Root == nil {
		t.Fatalf("unexpected top entities: %+v", top)
	}

	lineage, ok, err := ReadLineage(baseDir, "run-read")
	if err != nil || !ok || !reflect.DeepEqual(lineage, artifacts.Lineage) {
		t.Fatalf("unexpected lineage: ok=%t err=%v lineage=%+v", ok, err, lineage)
	}
	diagnostics, ok, err := ReadDiagnostics(baseDir, "run-read")
	if err != nil || !ok || len(diagnostics) != len(artifacts.Diagnostics) {
		t.Fatalf("unexpected diagnostics: ok=%t err=%v diagnostics=%+v", ok, err, diagnostics)
	}

	if _, ok, err := ReadDiagnostics(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing diagnostics to report ok=false, got ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config to report ok=false, got ok=%t err=%v", ok, err)
	}
}

func TestDiagnosticsCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), diagnosticsFile)
	want := sampleArtifacts("csv").Diagnostics
	if err := WriteDiagnosticsCSV(path, want); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	got, err := ReadDiagnosticsCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("csv round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}
}

func TestRenderProgramsOrdersActors(t *testing.T) {
	got := RenderPrograms(sampleArtifacts("render").Output)
	want := "# ant\nmove up 2\n\n# hero\nmove right 1\nnoop\n"
	if got != want {
		t.Fatalf("unexpected programs:\n%s\nwant:\n%s", got, want)
	}
}

func TestRunIndexAppendAndList(t *testing.T) {
	baseDir := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2025-01-01T00:00:00Z", Seed: 1},
		{RunID: "b", CreatedAtUTC: "2025-01-02T00:00:00Z", Seed: 2},
		{RunID: "c", CreatedAtUTC: "2025-01-02T00:00:00Z", Seed: 3},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "a", CreatedAtUTC: "2025-01-01T00:00:00Z", Seed: 9}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	listed, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	order := make([]string, 0, len(listed))
	for _, entry := range listed {
		order = append(order, entry.RunID)
	}
	if !reflect.DeepEqual(order, []string{"c", "b", "a"}) {
		t.Fatalf("unexpected order: %v", order)
	}
	if listed[2].Seed != 9 {
		t.Fatalf("expected replaced entry, got %+v", listed[2])
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	listed, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty index, got %+v", listed)
	}
}

func TestIndexEntry(t *testing.T) {
	entry := IndexEntry("r", "2025-01-01T00:00:00Z", 4, []model.ActorSummary{
		{Actor: "a", Converged: true, BestFitness: 2},
		{Actor: "b", Converged: false, BestFitness: 80},
	})
	if entry.Converged || entry.WorstFitness != 80 || entry.Actors != 2 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if IndexEntry("r", "", 0, nil).Converged {
		t.Fatal("a run without actors is not converged")
	}
}
