// Package memocap classifies which functions, lambdas, parameters, types
// and call sites of an ArkTS-like UI program are memo-capable, marks them,
// and records the marker imports each compilation unit needs.
//
// # Pipeline
//
// Each source file goes through three steps:
//
//  1. Parse: tree-sitter parses the file with the TypeScript grammar after a
//     pre-pass that turns @memo-style markers into comments, and the syntax
//     tree is lowered into an arena-backed AST with bound declarations.
//
//  2. Classify: a post-order pass classifies every understood node kind,
//     annotates nodes that inherit capability from @Builder or
//     @BuilderParam, and propagates capability through the bodies of
//     capable functions to their call sites, returns and trailing lambdas.
//
//  3. Store: decisions and requested imports are written to SQLite (or an
//     in-memory backend) per unit, replacing the previous classification.
//
// # Usage
//
// Create an Engine, classify source files, and query:
//
//	e, err := memocap.New("memocap.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	sum, err := e.ClassifyDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	calls, err := q.MemoCalls("/abs/path/pages/Index.ets")
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.Units]: every classified unit.
//   - [QueryBuilder.Decisions]: all decisions in a file.
//   - [QueryBuilder.DecisionsByKind]: decisions of one node kind across files.
//   - [QueryBuilder.MemoCalls]: call sites that invoke capable callees.
//   - [QueryBuilder.Imports]: marker imports a file needs.
//   - [QueryBuilder.DecisionAt]: the decision at a source position.
//   - [QueryBuilder.ListDecisions], [QueryBuilder.SearchDecisions]: paged,
//     filtered and sorted decision listings, the latter by name glob.
//   - [QueryBuilder.ProjectSummary]: counts by kind and the busiest units.
//
// # Incremental Classification
//
// [Engine.ClassifyFiles] detects unchanged files via content hashing and
// skips them. A configuration change (different marker modules or gensym
// prefix) reclassifies everything. Identical content seen twice in one
// Engine's lifetime is classified once and served from a result cache.
//
// # Configuration
//
// The classifier reads a Risor script that registers the module each marker
// is imported from:
//
//	marker("memo", "arkui.stateManagement.runtime")
//	gensym_prefix("gensym___")
//
// See the internal/runtime package for the full set of host functions.
package memocap
