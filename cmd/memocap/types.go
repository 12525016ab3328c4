package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIUnit is a JSON-friendly unit representation.
type CLIUnit struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	Module         string `json:"module"`
	Hash           string `json:"hash"`
	RunID          string `json:"run_id,omitempty"`
	DecisionCount  int    `json:"decision_count"`
	LastClassified string `json:"last_classified,omitempty"`
}

// CLIDecision is a JSON-friendly decision representation.
type CLIDecision struct {
	ID        int64          `json:"id"`
	File      string         `json:"file,omitempty"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name,omitempty"`
	StartLine int            `json:"start_line"`
	StartCol  int            `json:"start_col"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CLIImport is a JSON-friendly import representation.
type CLIImport struct {
	File   string `json:"file,omitempty"`
	Symbol string `json:"symbol"`
	Source string `json:"source"`
}

// CLIUnitStats is one entry of CLIProjectSummary.TopUnits.
type CLIUnitStats struct {
	Path      string `json:"path"`
	Module    string `json:"module"`
	Decisions int    `json:"decisions"`
}

// CLIProjectSummary is a JSON-friendly project summary.
type CLIProjectSummary struct {
	UnitCount     int            `json:"unit_count"`
	DecisionCount int            `json:"decision_count"`
	ImportCount   int            `json:"import_count"`
	KindCounts    map[string]int `json:"kind_counts"`
	TopUnits      []CLIUnitStats `json:"top_units"`
}
