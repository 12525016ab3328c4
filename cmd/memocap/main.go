package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/memocap"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "memocap",
	Short:         "Memo capability classification for ArkTS sources",
	Long:          "Memocap parses ArkTS sources with tree-sitter, decides which functions, lambdas, parameters and calls carry memo semantics, and writes the decisions to a SQLite database for queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .memocap/memocap.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log per-file progress to stderr")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(queryCmd)
}

var (
	flagForce  bool
	flagConfig string
	flagSerial bool
	flagDryRun bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [path]",
	Short: "Classify a source tree",
	Long:  "Classifies every .ets/.ts file under path and stores the decisions. Unchanged files are skipped unless the configuration changed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and classify from scratch")
	classifyCmd.Flags().StringVar(&flagConfig, "config", "", "Risor configuration script (default: memocap.risor in the repo root, if present)")
	classifyCmd.Flags().BoolVar(&flagSerial, "serial", false, "classify files one at a time")
	classifyCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "classify in memory and print the decisions instead of storing them")
}

func runClassify(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("classify", err)
	}
	repoRoot := findRepoRoot(targetDir)

	log, err := newLogger(flagVerbose)
	if err != nil {
		return outputError("classify", err)
	}
	defer func() { _ = log.Sync() }()

	opts := []memocap.Option{
		memocap.WithLogger(log),
		memocap.WithParallel(!flagSerial),
	}
	if script := resolveConfigPath(repoRoot); script != "" {
		opts = append(opts, memocap.WithConfigScript(script))
	}

	dbPath := ""
	if !flagDryRun {
		dbPath = resolveDBPath(repoRoot)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return outputError("classify", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
		}
		// Handle --force: delete the DB file entirely.
		if flagForce {
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
					return outputError("classify", fmt.Errorf("removing database for --force: %w", err))
				}
			}
			fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
		}
	}

	engine, err := memocap.New(dbPath, opts...)
	if err != nil {
		return outputError("classify", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	sum, runErr := engine.ClassifyDirectory(context.Background(), targetDir)
	if sum == nil {
		return outputError("classify", fmt.Errorf("classifying: %w", runErr))
	}

	fmt.Fprintf(os.Stderr, "Classified %s in %s (%d classified, %d unchanged, %d removed, %d failed, %d decisions)\n",
		targetDir,
		time.Since(start).Round(time.Millisecond),
		sum.Classified, sum.Unchanged, sum.Removed, sum.Failed, sum.Decisions,
	)
	if dbPath != "" {
		fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	}

	if flagDryRun {
		decisions, err := allDecisions(engine.Query())
		if err != nil {
			return outputError("classify", err)
		}
		total := len(decisions)
		if err := outputResult(CLIResult{
			Command:    "classify",
			Results:    decisions,
			TotalCount: &total,
		}); err != nil {
			return err
		}
	}

	if runErr != nil {
		return outputError("classify", runErr)
	}
	return nil
}

// allDecisions lists every stored decision in file order.
func allDecisions(qb *memocap.QueryBuilder) ([]CLIDecision, error) {
	units, err := qb.Units()
	if err != nil {
		return nil, err
	}
	out := []CLIDecision{}
	for _, u := range units {
		ds, err := qb.Decisions(u.Path)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			out = append(out, decisionToCLI(d, u.Path))
		}
	}
	return out, nil
}

// newLogger builds the console logger. Warnings (partial parses, failed
// files) always show; --verbose adds per-file debug lines.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// resolveTargetDir returns the absolute path of the directory to classify.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".memocap", "memocap.db")
}

// defaultConfigName is picked up from the repo root when --config is unset.
const defaultConfigName = "memocap.risor"

// resolveConfigPath returns the configuration script to load, or "" for the
// built-in defaults. An explicit --config is relative to the working
// directory.
func resolveConfigPath(repoRoot string) string {
	if flagConfig != "" {
		if abs, err := filepath.Abs(flagConfig); err == nil {
			return abs
		}
		return flagConfig
	}
	p := filepath.Join(repoRoot, defaultConfigName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
