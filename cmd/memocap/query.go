package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	"github.com/jward/memocap"
	"github.com/jward/memocap/internal/store"
)

var (
	flagLimit  int
	flagOffset int
	flagSort   string
	flagOrder  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored classification results",
	Long:  "Run queries against a classified source tree. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagSort, "sort", "", "sort field: file|name|kind")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")

	queryCmd.AddCommand(unitsCmd)
	queryCmd.AddCommand(decisionsCmd)
	queryCmd.AddCommand(callsCmd)
	queryCmd.AddCommand(importsCmd)
	queryCmd.AddCommand(atCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openStore opens the Store from the --db flag path (or default).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'memocap classify' first)", dbPath)
	}

	return store.NewStore(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
// If the path is already absolute, it's returned as-is.
// Otherwise, it's resolved relative to the current working directory.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// writeJSON encodes v as indented JSON with deterministic map order.
func writeJSON(v any) error {
	return json.MarshalWrite(os.Stdout, v, json.Deterministic(true), jsontext.WithIndent("  "))
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	if err := writeJSON(result); err != nil {
		return err
	}
	_, err := fmt.Fprintln(os.Stdout)
	return err
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	_ = writeJSON(result)
	fmt.Fprintln(os.Stdout)
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() memocap.Pagination {
	return memocap.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildSort creates a Sort from CLI flags.
func buildSort() memocap.Sort {
	var field memocap.SortField
	switch flagSort {
	case "name":
		field = memocap.SortByName
	case "kind":
		field = memocap.SortByKind
	default:
		field = memocap.SortByFile
	}

	var order memocap.SortOrder
	switch flagOrder {
	case "desc":
		order = memocap.Desc
	default:
		order = memocap.Asc
	}

	return memocap.Sort{Field: field, Order: order}
}

func unitToCLI(u *store.Unit) CLIUnit {
	out := CLIUnit{
		ID:            u.ID,
		Path:          u.Path,
		Module:        u.Module,
		Hash:          u.Hash,
		RunID:         u.RunID,
		DecisionCount: u.DecisionCount,
	}
	if !u.LastClassified.IsZero() {
		out.LastClassified = u.LastClassified.UTC().Format(time.RFC3339)
	}
	return out
}

func decisionToCLI(d *store.Decision, path string) CLIDecision {
	return CLIDecision{
		ID:        d.ID,
		File:      path,
		Kind:      d.Kind,
		Name:      d.Name,
		StartLine: d.StartLine,
		StartCol:  d.StartCol,
		Metadata:  d.Metadata,
	}
}

func decisionsToCLI(ds []*store.Decision, path string) []CLIDecision {
	out := make([]CLIDecision, len(ds))
	for i, d := range ds {
		out[i] = decisionToCLI(d, path)
	}
	return out
}

// --- Unit Commands ---

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List classified units",
	Args:  cobra.NoArgs,
	RunE:  runUnits,
}

func runUnits(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("units", err)
	}
	defer s.Close()

	units, err := memocap.NewQueryBuilder(s).Units()
	if err != nil {
		return outputError("units", err)
	}
	cliUnits := make([]CLIUnit, len(units))
	for i, u := range units {
		cliUnits[i] = unitToCLI(u)
	}
	total := len(cliUnits)
	return outputResult(CLIResult{
		Command:    "units",
		Results:    cliUnits,
		TotalCount: &total,
	})
}

var (
	flagKind       string
	flagPathPrefix string
	flagModule     string
	flagTop        int
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions <file>",
	Short: "List the decisions stored for a file in source order",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisions,
}

var callsCmd = &cobra.Command{
	Use:   "calls <file>",
	Short: "List the calls in a file that must be rewritten as memo calls",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalls,
}

func init() {
	decisionsCmd.Flags().StringVar(&flagKind, "kind", "", "filter by node kind (e.g. Call, Parameter)")

	searchCmd.Flags().StringVar(&flagKind, "kind", "", "filter by node kind (e.g. Call, Parameter)")
	searchCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "filter by file path prefix")
	searchCmd.Flags().StringVar(&flagModule, "module", "", "filter by module name")

	summaryCmd.Flags().IntVar(&flagTop, "top", 10, "number of units to list by decision count")
}

func runDecisions(cmd *cobra.Command, args []string) error {
	return runFileDecisions("decisions", args[0], func(qb *memocap.QueryBuilder, file string) ([]*store.Decision, error) {
		ds, err := qb.Decisions(file)
		if err != nil || flagKind == "" {
			return ds, err
		}
		var out []*store.Decision
		for _, d := range ds {
			if d.Kind == flagKind {
				out = append(out, d)
			}
		}
		return out, nil
	})
}

func runCalls(cmd *cobra.Command, args []string) error {
	return runFileDecisions("calls", args[0], (*memocap.QueryBuilder).MemoCalls)
}

func runFileDecisions(command, fileArg string, fetch func(*memocap.QueryBuilder, string) ([]*store.Decision, error)) error {
	s, err := openStore()
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	file, err := resolveFilePath(fileArg)
	if err != nil {
		return outputError(command, err)
	}
	qb := memocap.NewQueryBuilder(s)
	u, err := qb.Unit(file)
	if err != nil {
		return outputError(command, err)
	}
	if u == nil {
		return outputError(command, fmt.Errorf("file not classified: %s", fileArg))
	}

	ds, err := fetch(qb, file)
	if err != nil {
		return outputError(command, err)
	}
	total := len(ds)
	return outputResult(CLIResult{
		Command:    command,
		Results:    decisionsToCLI(ds, file),
		TotalCount: &total,
	})
}

var importsCmd = &cobra.Command{
	Use:   "imports <file>",
	Short: "List the marker imports a file needs",
	Args:  cobra.ExactArgs(1),
	RunE:  runImports,
}

func runImports(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("imports", err)
	}
	defer s.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("imports", err)
	}
	imps, err := memocap.NewQueryBuilder(s).Imports(file)
	if err != nil {
		return outputError("imports", err)
	}
	cliImports := make([]CLIImport, len(imps))
	for i, imp := range imps {
		cliImports[i] = CLIImport{File: file, Symbol: imp.Symbol, Source: imp.Source}
	}
	total := len(cliImports)
	return outputResult(CLIResult{
		Command:    "imports",
		Results:    cliImports,
		TotalCount: &total,
	})
}

// --- Position-Based Commands ---

var atCmd = &cobra.Command{
	Use:   "at <file> <line> <col>",
	Short: "Find the decision for the node at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runAt,
}

func runAt(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("at", err)
	}
	defer s.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("at", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("at", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("at", err)
	}

	d, err := memocap.NewQueryBuilder(s).DecisionAt(file, line, col)
	if err != nil {
		return outputError("at", err)
	}
	if d == nil {
		return outputResult(CLIResult{
			Command: "at",
			Results: nil,
		})
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "at",
		Results:    decisionToCLI(d, file),
		TotalCount: &one,
	})
}

// --- Discovery Commands ---

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search decisions by name glob",
	Long:  "Search for decisions whose node name matches a glob pattern. Use * as wildcard (e.g. 'render*').",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("search", err)
	}
	defer s.Close()

	filter := memocap.DecisionFilter{Module: flagModule}
	if flagKind != "" {
		filter.Kinds = []string{flagKind}
	}
	if flagPathPrefix != "" {
		prefix, err := resolveFilePath(flagPathPrefix)
		if err != nil {
			return outputError("search", err)
		}
		filter.PathPrefix = prefix
	}

	result, err := memocap.NewQueryBuilder(s).SearchDecisions(args[0], filter, buildSort(), buildPagination())
	if err != nil {
		return outputError("search", err)
	}
	cliDecisions := make([]CLIDecision, len(result.Items))
	for i, r := range result.Items {
		cliDecisions[i] = decisionToCLI(&r.Decision, r.Path)
	}
	return outputResult(CLIResult{
		Command:    "search",
		Results:    cliDecisions,
		TotalCount: &result.TotalCount,
	})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the classified codebase",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("summary", err)
	}
	defer s.Close()

	sum, err := memocap.NewQueryBuilder(s).ProjectSummary(flagTop)
	if err != nil {
		return outputError("summary", err)
	}
	out := CLIProjectSummary{
		UnitCount:     sum.UnitCount,
		DecisionCount: sum.DecisionCount,
		ImportCount:   sum.ImportCount,
		KindCounts:    sum.KindCounts,
		TopUnits:      make([]CLIUnitStats, len(sum.TopUnits)),
	}
	for i, u := range sum.TopUnits {
		out.TopUnits[i] = CLIUnitStats{Path: u.Path, Module: u.Module, Decisions: u.Decisions}
	}
	return outputResult(CLIResult{
		Command: "summary",
		Results: out,
	})
}
