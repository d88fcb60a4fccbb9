package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"helixpi/internal/model"
	"helixpi/internal/render"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	outputFile      = "output.json"
	actorsFile      = "actors.json"
	diagnosticsFile = "diagnostics.csv"
	programsFile    = "programs.txt"
	topEntitiesFile = "top_entities.json"
	lineageFile     = "lineage.json"
)

// RunConfig records the parameters a run was started with.
type RunConfig struct {
	RunID                string   `json:"run_id"`
	Seed                 int64    `json:"seed"`
	Actors               []string `json:"actors"`
	Scenarios            int      `json:"scenarios"`
	PopulationSize       int      `json:"population_size"`
	Generations          int      `json:"generations"`
	ConvergenceThreshold float64  `json:"convergence_threshold"`
	AllTimeBestCap       int      `json:"all_time_best_cap"`
	FinalistCount        int      `json:"finalist_count"`
	EliteCount           int      `json:"elite_count"`
	BreedSampleSize      int      `json:"breed_sample_size"`
	MutationRate         float64  `json:"mutation_rate"`
	ResultCount          int      `json:"result_count"`
	Workers              int      `json:"workers"`
	StoreKind            string   `json:"store_kind,omitempty"`
}

type RunArtifacts struct {
	Config      RunConfig
	Output      model.Output
	Actors      []model.ActorSummary
	Diagnostics []model.GenerationDiagnostics
	TopEntities []model.TopEntityRecord
	Lineage     []model.LineageRecord
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Seed         int64   `json:"seed"`
	Actors       int     `json:"actors"`
	Converged    bool    `json:"converged"`
	WorstFitness float64 `json:"worst_fitness"`
}

// IndexEntry summarizes a run for the run index. Converged is true only when
// every actor converged; WorstFitness is the highest best fitness of any actor.
func IndexEntry(runID, createdAtUTC string, seed int64, actors []model.ActorSummary) RunIndexEntry {
	entry := RunIndexEntry{
		RunID:        runID,
		CreatedAtUTC: createdAtUTC,
		Seed:         seed,
		Actors:       len(actors),
		Converged:    len(actors) > 0,
	}
	for i, actor := range actors {
		if !actor.Converged {
			entry.Converged = false
		}
		if i == 0 || actor.BestFitness > entry.WorstFitness {
			entry.WorstFitness = actor.BestFitness
		}
	}
	return entry
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, outputFile), artifacts.Output); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, actorsFile), artifacts.Actors); err != nil {
		return "", err
	}
	if err := WriteDiagnosticsCSV(filepath.Join(runDir, diagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, programsFile), []byte(RenderPrograms(artifacts.Output)), 0o644); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topEntitiesFile), artifacts.TopEntities); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), artifacts.Lineage); err != nil {
		return "", err
	}
	return runDir, nil
}

// RenderPrograms prints every actor's program, actors in name order.
func RenderPrograms(output model.Output) string {
	actors := make([]string, 0, len(output.Entities))
	for actor := range output.Entities {
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	var b strings.Builder
	for i, actor := range actors {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n", actor)
		if root := output.Entities[actor].Root; root != nil {
			b.WriteString(render.Render(root, 0))
		}
	}
	return b.String()
}

func WriteDiagnosticsCSV(path string, diagnostics []model.GenerationDiagnostics) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if diagnostics == nil {
		diagnostics = []model.GenerationDiagnostics{}
	}
	if err := gocsv.Marshal(diagnostics, file); err != nil {
		return fmt.Errorf("write diagnostics csv: %w", err)
	}
	return file.Sync()
}

func ReadDiagnosticsCSV(path string) ([]model.GenerationDiagnostics, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var diagnostics []model.GenerationDiagnostics
	if err := gocsv.Unmarshal(file, &diagnostics); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return []model.GenerationDiagnostics{}, nil
		}
		return nil, fmt.Errorf("read diagnostics csv: %w", err)
	}
	if diagnostics == nil {
		diagnostics = []model.GenerationDiagnostics{}
	}
	return diagnostics, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies every file of a run directory to outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadOutput(baseDir, runID string) (model.Output, bool, error) {
	var out model.Output
	ok, err := readJSON(filepath.Join(baseDir, runID, outputFile), &out)
	return out, ok, err
}

func ReadTopEntities(baseDir, runID string) ([]model.TopEntityRecord, bool, error) {
	var top []model.TopEntityRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topEntitiesFile), &top)
	return top, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, lineageFile), &lineage)
	return lineage, ok, err
}

// ReadDiagnostics reads the diagnostics.csv of a run.
func ReadDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	path := filepath.Join(baseDir, runID, diagnosticsFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	diagnostics, err := ReadDiagnosticsCSV(path)
	if err != nil {
		return nil, false, err
	}
	return diagnostics, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
