package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
)

// formatUnitsText formats CLIUnit results as aligned columns.
func formatUnitsText(w io.Writer, units []CLIUnit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODULE\tDECISIONS\tPATH")
	for _, u := range units {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", u.ID, u.Module, u.DecisionCount, u.Path)
	}
	tw.Flush()
}

// formatDecisionsText formats CLIDecision results as aligned columns.
func formatDecisionsText(w io.Writer, ds []CLIDecision) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tFILE\tLINE\tCOL\tMETADATA")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			d.Kind, d.Name, d.File, d.StartLine, d.StartCol, formatMetadata(d.Metadata))
	}
	tw.Flush()
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return strings.Join(parts, ",")
}

// formatImportsText formats CLIImport results as aligned columns.
func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSOURCE\tFILE")
	for _, imp := range imports {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", imp.Symbol, imp.Source, imp.File)
	}
	tw.Flush()
}

// formatSummaryText formats CLIProjectSummary as readable text.
func formatSummaryText(w io.Writer, summary CLIProjectSummary) {
	fmt.Fprintln(w, "Project Summary")
	fmt.Fprintln(w, "===============")
	fmt.Fprintf(w, "Units: %d\n", summary.UnitCount)
	fmt.Fprintf(w, "Decisions: %d\n", summary.DecisionCount)
	fmt.Fprintf(w, "Imports: %d\n", summary.ImportCount)
	fmt.Fprintln(w)

	if len(summary.KindCounts) > 0 {
		fmt.Fprintln(w, "Decisions by Kind:")
		kinds := make([]string, 0, len(summary.KindCounts))
		for kind := range summary.KindCounts {
			kinds = append(kinds, kind)
		}
		slices.Sort(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, summary.KindCounts[kind])
		}
		fmt.Fprintln(w)
	}

	if len(summary.TopUnits) > 0 {
		fmt.Fprintln(w, "Top Units by Decisions:")
		for _, u := range summary.TopUnits {
			fmt.Fprintf(w, "  %s - %d decisions\n", u.Module, u.Decisions)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLIUnit:
		formatUnitsText(w, v)
	case []CLIDecision:
		formatDecisionsText(w, v)
	case CLIDecision:
		formatDecisionsText(w, []CLIDecision{v})
	case []CLIImport:
		formatImportsText(w, v)
	case CLIProjectSummary:
		formatSummaryText(w, v)
	case nil:
		// No output for nil results (e.g., at with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIUnit:
		return len(r)
	case []CLIDecision:
		return len(r)
	case []CLIImport:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
