// Package helixpi is the public entry point: it runs the program search over
// recorded scenarios, persists each run and writes its artifact directory.
package helixpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"helixpi/internal/config"
	"helixpi/internal/engine"
	"helixpi/internal/model"
	"helixpi/internal/stats"
	"helixpi/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "helixpi.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// Config supplies the search parameters; nil means the embedded defaults.
	Config *config.Config
	Logger *slog.Logger
}

type Client struct {
	store     storage.Store
	storeKind string
	cfg       *config.Config
	logger    *slog.Logger

	artifactsDir string
	exportsDir   string

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	Input model.Input
	Seed  int64
	// Workers overrides evolution.workers when positive.
	Workers int
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Output       model.Output
	Actors       []model.ActorSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Seed         int64
	Actors       int
	Converged    bool
	WorstFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RunQuery names a run either by id or as the most recent one.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = cfg.Store.Kind
	}
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.DBPath
	}
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = cfg.Artifacts.Dir
	}
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		storeKind:    storeKind,
		cfg:          cfg,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Execute runs the search without recording anything. It matches the worker
// entry point.
func (c *Client) Execute(ctx context.Context, input model.Input, seed int64) (model.Output, error) {
	result, err := engine.Run(ctx, input, seed, c.engineConfig(0))
	if err != nil {
		return model.Output{}, err
	}
	return result.Output, nil
}

// Run searches a program for every actor in req.Input, then stores the run
// and writes its artifacts under the artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.Workers < 0 {
		return RunSummary{}, errors.New("workers must be >= 0")
	}

	result, err := engine.Run(ctx, req.Input, req.Seed, c.engineConfig(req.Workers))
	if err != nil {
		return RunSummary{}, err
	}

	runID := ulid.Make().String()
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    createdAt,
		Seed:            req.Seed,
		Actors:          result.Actors,
		Output:          result.Output,
	}
	top := topEntities(result)

	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save diagnostics: %w", err)
	}
	if err := c.store.SaveTopEntities(ctx, runID, top); err != nil {
		return RunSummary{}, fmt.Errorf("save top entities: %w", err)
	}
	if err := c.store.SaveLineage(ctx, runID, result.Lineage); err != nil {
		return RunSummary{}, fmt.Errorf("save lineage: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:      c.runConfig(runID, req, result),
		Output:      result.Output,
		Actors:      result.Actors,
		Diagnostics: result.Diagnostics,
		TopEntities: top,
		Lineage:     result.Lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntry(runID, createdAt, req.Seed, result.Actors)); err != nil {
		return RunSummary{}, err
	}

	c.logger.Info("run recorded", "run_id", runID, "actors", len(result.Actors), "dir", runDir)
	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Output:       result.Output,
		Actors:       append([]model.ActorSummary(nil), result.Actors...),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Seed:         e.Seed,
			Actors:       e.Actors,
			Converged:    e.Converged,
			WorstFitness: e.WorstFitness,
		})
	}
	return out, nil
}

// Output returns the recorded output of a run. Runs from earlier processes
// are read back from their artifact directory when the store does not know
// them.
func (c *Client) Output(ctx context.Context, req RunQuery) (model.Output, error) {
	runID, err := c.resolveRunID(req, "output")
	if err != nil {
		return model.Output{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.Output{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.Output{}, err
	}
	if ok {
		return run.Output, nil
	}
	output, ok, err := stats.ReadOutput(c.artifactsDir, runID)
	if err != nil {
		return model.Output{}, err
	}
	if !ok {
		return model.Output{}, fmt.Errorf("run not found: %s", runID)
	}
	return output, nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limited(diagnostics, req.Limit), nil
}

func (c *Client) TopEntities(ctx context.Context, req RunQuery) ([]model.TopEntityRecord, error) {
	runID, err := c.resolveRunID(req, "top entities")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopEntities(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopEntities(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top entities not found for run id: %s", runID)
	}
	return limited(top, req.Limit), nil
}

func (c *Client) Lineage(ctx context.Context, req RunQuery) ([]model.LineageRecord, error) {
	runID, err := c.resolveRunID(req, "lineage")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		lineage, ok, err = stats.ReadLineage(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	return limited(lineage, req.Limit), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(RunQuery{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(req RunQuery, what string) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if req.RunID != "" {
		return req.RunID, nil
	}
	if !req.Latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) engineConfig(workers int) engine.Config {
	search := c.cfg.Evolution.MonitorConfig(nil)
	if workers > 0 {
		search.Workers = workers
	}
	return engine.Config{Search: search, Logger: c.logger}
}

func (c *Client) runConfig(runID string, req RunRequest, result engine.Result) stats.RunConfig {
	e := c.cfg.Evolution
	workers := e.Workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	actors := make([]string, 0, len(result.Actors))
	for _, a := range result.Actors {
		actors = append(actors, a.Actor)
	}
	return stats.RunConfig{
		RunID:                runID,
		Seed:                 req.Seed,
		Actors:               actors,
		Scenarios:            len(req.Input.Scenarios),
		PopulationSize:       e.PopulationSize,
		Generations:          e.Generations,
		ConvergenceThreshold: e.ConvergenceThreshold,
		AllTimeBestCap:       e.AllTimeBestCap,
		FinalistCount:        e.FinalistCount,
		EliteCount:           e.EliteCount,
		BreedSampleSize:      e.BreedSampleSize,
		MutationRate:         e.MutationRate,
		ResultCount:          e.ResultCount,
		Workers:              workers,
		StoreKind:            c.storeKind,
	}
}

// topEntities flattens each actor's finalists into ranked records, actors in
// name order.
func topEntities(result engine.Result) []model.TopEntityRecord {
	actors := make([]string, 0, len(result.Finalists))
	for actor := range result.Finalists {
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	var top []model.TopEntityRecord
	for _, actor := range actors {
		for i, scored := range result.Finalists[actor] {
			top = append(top, model.TopEntityRecord{
				VersionedRecord: storage.CurrentVersion(),
				Actor:           actor,
				Rank:            i + 1,
				Fitness:         scored.Fitness,
				Fingerprint:     model.Fingerprint(scored.Entity),
				Entity:          model.Tree{Root: scored.Entity},
			})
		}
	}
	return top
}

func limited[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
