package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"helixpi/internal/config"
	"helixpi/internal/model"
	"helixpi/internal/worker"
	"helixpi/pkg/helixpi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// globalFlags are shared by every command that touches the store or the
// artifact directory.
type globalFlags struct {
	configPath   string
	storeKind    string
	dbPath       string
	artifactsDir string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "helixpictl",
		Short:         "Evolve behaviour programs that reproduce recorded actor trajectories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (defaults are embedded)")
	root.PersistentFlags().StringVar(&g.storeKind, "store", "", "store backend: memory|sqlite")
	root.PersistentFlags().StringVar(&g.dbPath, "db-path", "", "sqlite database path")
	root.PersistentFlags().StringVar(&g.artifactsDir, "artifacts-dir", "", "run artifact directory")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newRunCmd(g),
		newServeCmd(g),
		newRunsCmd(g),
		newDiagnosticsCmd(g),
		newTopCmd(g),
		newExportCmd(g),
		newRenderCmd(),
		newInterpolateCmd(),
		newRangesCmd(),
	)
	return root
}

func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.storeKind != "" {
		cfg.Store.Kind = g.storeKind
	}
	if g.dbPath != "" {
		cfg.Store.DBPath = g.dbPath
	}
	if g.artifactsDir != "" {
		cfg.Artifacts.Dir = g.artifactsDir
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (g *globalFlags) client(cmd *cobra.Command) (*helixpi.Client, *config.Config, *slog.Logger, error) {
	cfg, logger, err := g.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := helixpi.New(helixpi.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, nil, nil, err
	}
	return client, cfg, logger, nil
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		inputPath  string
		outputPath string
		seed       int64
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search a program for every actor in an input payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var input model.Input
			if err := readJSONFile(cmd, inputPath, &input); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			client, _, _, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), helixpi.RunRequest{Input: input, Seed: seed, Workers: workers})
			if err != nil {
				return err
			}
			if outputPath != "" {
				if err := writeJSONFile(outputPath, summary.Output); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run completed run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
			for _, a := range summary.Actors {
				fmt.Fprintf(out, "actor=%s path=%s scenarios=%d generations=%d converged=%t fitness=%.4f size=%d\n",
					a.Actor, a.Path, a.Scenarios, a.Generations, a.Converged, a.BestFitness, a.FinalSize)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input payload JSON file (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "write the output payload JSON to this file")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel fitness workers (0 = evolution.workers)")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search over a WebSocket endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cfg, logger, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           worker.NewServer(client.Execute, logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("worker listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				logger.Info("worker shutting down")
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, _, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			items, err := client.Runs(cmd.Context(), helixpi.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, item := range items {
				fmt.Fprintf(out, "run_id=%s created_at=%s seed=%d actors=%d converged=%t worst_fitness=%.4f\n",
					item.RunID, item.CreatedAtUTC, item.Seed, item.Actors, item.Converged, item.WorstFitness)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func addRunQueryFlags(cmd *cobra.Command, q *helixpi.RunQuery) {
	cmd.Flags().StringVar(&q.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&q.Latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum rows (0 = all)")
}

func newDiagnosticsCmd(g *globalFlags) *cobra.Command {
	var q helixpi.RunQuery
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation search diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, _, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			diagnostics, err := client.Diagnostics(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range diagnostics {
				fmt.Fprintf(out, "actor=%s phase=%s generation=%d population=%d best=%.4f mean=%.4f stddev=%.4f mean_size=%.2f diversity=%d\n",
					d.Actor, d.Phase, d.Generation, d.Population, d.BestFitness, d.MeanFitness, d.StdDevFitness, d.MeanSize, d.Diversity)
			}
			return nil
		},
	}
	addRunQueryFlags(cmd, &q)
	return cmd
}

func newTopCmd(g *globalFlags) *cobra.Command {
	var q helixpi.RunQuery
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the best programs recorded for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, _, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			top, err := client.TopEntities(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, item := range top {
				fmt.Fprintf(out, "actor=%s rank=%d fitness=%.4f fingerprint=%s size=%d\n",
					item.Actor, item.Rank, item.Fitness, item.Fingerprint, model.Size(item.Entity.Root))
			}
			return nil
		},
	}
	addRunQueryFlags(cmd, &q)
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var req helixpi.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifact directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, _, err := g.client(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			exported, err := client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&req.OutDir, "out", "", "export directory (default exports)")
	return cmd
}

func readJSONFile(cmd *cobra.Command, path string, out any) error {
	data, err := readAll(cmd, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
