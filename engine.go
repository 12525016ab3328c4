package memocap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jward/memocap/internal/frontend"
	"github.com/jward/memocap/internal/imports"
	"github.com/jward/memocap/internal/memo"
	"github.com/jward/memocap/internal/runtime"
	"github.com/jward/memocap/internal/store"
)

// metaConfigFingerprint records the configuration the stored decisions
// were produced under.
const metaConfigFingerprint = "config_fingerprint"

// Engine orchestrates the memocap pipeline: file discovery, change
// detection, classification and query access.
type Engine struct {
	store store.Backend
	cfg   memo.Config
	log   *zap.Logger

	configScript string
	hasConfig    bool

	// useParallel enables the parallel classification pipeline.
	useParallel bool
	// force reclassifies every file regardless of its stored hash.
	force bool

	cacheSize int64
	results   *resultCache
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the classifier configuration directly.
func WithConfig(cfg memo.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
		e.hasConfig = true
	}
}

// WithConfigScript loads the configuration from a Risor script on disk.
// Imports inside the script resolve against the script's directory.
func WithConfigScript(path string) Option {
	return func(e *Engine) {
		e.configScript = path
	}
}

// WithLogger sets the logger for the engine and everything it drives.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithParallel controls parallel classification. When true (default),
// ClassifyFiles uses a worker pool for parsing and classification, with
// the calling goroutine committing batches to the backend. Set to false
// for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithForce makes every run reclassify all files, ignoring stored hashes.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithResultCache bounds the number of classification results kept in
// memory, keyed by content and configuration. Zero disables the cache.
func WithResultCache(entries int64) Option {
	return func(e *Engine) {
		e.cacheSize = entries
	}
}

// New creates an Engine backed by a SQLite database at dbPath. An empty
// dbPath selects the in-memory backend, whose results vanish on Close.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:         memo.DefaultConfig(),
		log:         zap.NewNop(),
		useParallel: true, // default to parallel classification
		cacheSize:   1024,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.configScript != "" {
		if e.hasConfig {
			return nil, fmt.Errorf("memocap: WithConfig and WithConfigScript are mutually exclusive")
		}
		rt := runtime.NewRuntime(filepath.Dir(e.configScript), runtime.WithLogger(e.log))
		cfg, err := rt.LoadConfigFile(context.Background(), filepath.Base(e.configScript))
		if err != nil {
			return nil, fmt.Errorf("memocap: load config: %w", err)
		}
		e.cfg = cfg
	}

	s, err := openBackend(dbPath)
	if err != nil {
		return nil, err
	}
	e.store = s

	if e.cacheSize > 0 {
		rc, err := newResultCache(e.cacheSize)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("memocap: result cache: %w", err)
		}
		e.results = rc
	}
	return e, nil
}

func openBackend(dbPath string) (store.Backend, error) {
	if dbPath == "" {
		m, err := store.NewMemStore()
		if err != nil {
			return nil, fmt.Errorf("memocap: create store: %w", err)
		}
		return m, nil
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("memocap: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("memocap: migrate: %w", err)
	}
	return s, nil
}

// Close releases the Engine's database and cache resources.
func (e *Engine) Close() error {
	e.results.close()
	return e.store.Close()
}

// Store returns the underlying backend for direct access.
func (e *Engine) Store() Backend {
	return e.store
}

// Config returns the configuration the engine classifies with.
func (e *Engine) Config() memo.Config {
	return e.cfg
}

// Query returns a new QueryBuilder wrapping the backend.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.store)
}

// ConfigChanged reports whether the stored decisions were produced under a
// different configuration. True on a fresh database.
func (e *Engine) ConfigChanged() bool {
	stored, ok, err := e.store.GetMetadata(metaConfigFingerprint)
	if err != nil || !ok {
		return true
	}
	return stored != e.cfg.Fingerprint()
}

// ClassifySource classifies one compilation unit held in memory. Nothing
// is persisted. When the source has syntax errors the decisions for the
// recoverable part are returned together with an error wrapping
// frontend.ErrSyntax.
func (e *Engine) ClassifySource(ctx context.Context, path string, src []byte) (*UnitResult, error) {
	return e.classifyUnit(ctx, path, "", src)
}

// classifyUnit parses and classifies src with a fresh decision cache.
func (e *Engine) classifyUnit(ctx context.Context, path, module string, src []byte) (res *UnitResult, err error) {
	key := resultKey(src, e.cfg.Fingerprint())
	if cached, ok := e.results.get(key); ok {
		e.log.Debug("memocap: result cache hit", zap.String("path", path))
		return cached.relocate(path, module), nil
	}

	var popts []frontend.Option
	if module != "" {
		popts = append(popts, frontend.WithModule(module))
	}
	tree, parseErr := frontend.Parse(ctx, src, path, popts...)
	if parseErr != nil && !errors.Is(parseErr, frontend.ErrSyntax) {
		return nil, parseErr
	}

	defer recoverUnregistered(path, &res, &err)
	pass := memo.NewPass(tree, memo.WithConfig(e.cfg), memo.WithLogger(e.log.Named("memo")))
	res = &UnitResult{Result: *pass.Run(), Hash: store.HashContent(src)}

	if parseErr != nil {
		return res, parseErr
	}
	e.results.set(key, res)
	return res, nil
}

// recoverUnregistered turns a marker written without a registered source
// module into a classification error. Any other panic is a bug and
// propagates.
func recoverUnregistered(path string, res **UnitResult, err *error) {
	r := recover()
	if r == nil {
		return
	}
	ue, ok := r.(*imports.UnregisteredSourceError)
	if !ok {
		panic(r)
	}
	*res = nil
	*err = fmt.Errorf("memocap: classify %s: %w", path, ue)
}

// source is one file queued for classification.
type source struct {
	path   string
	module string // empty: derived from path
}

// ClassifyFiles classifies the given file paths. When WithParallel is
// enabled, uses a worker pool for concurrent classification with batched
// writes. Otherwise falls back to the serial path.
//
// For each file:
// 1. Skip unsupported extensions
// 2. Skip unchanged files (same content hash, same configuration)
// 3. Parse and classify with a fresh decision cache
// 4. Replace the stored unit with the new decisions and imports
//
// Errors on individual files are logged and skipped; processing continues.
func (e *Engine) ClassifyFiles(ctx context.Context, paths []string) (*RunSummary, error) {
	srcs := make([]source, 0, len(paths))
	for _, p := range paths {
		srcs = append(srcs, source{path: p})
	}
	return e.classifySources(ctx, srcs)
}

func (e *Engine) classifySources(ctx context.Context, srcs []source) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{RunID: uuid.New().String()}
	force := e.force || e.ConfigChanged()

	supported := srcs[:0:0]
	for _, src := range srcs {
		if _, ok := frontend.LanguageForFile(src.path); ok {
			supported = append(supported, src)
		}
	}
	srcs = supported

	var err error
	if e.useParallel {
		err = e.classifyParallel(ctx, srcs, sum, force)
	} else {
		err = e.classifySerial(ctx, srcs, sum, force)
	}
	if err == nil {
		if serr := e.store.SetMetadata(metaConfigFingerprint, e.cfg.Fingerprint()); serr != nil {
			err = fmt.Errorf("memocap: %w", serr)
		}
	}
	sum.Duration = time.Since(start)

	e.log.Info("memocap: run done",
		zap.String("run_id", sum.RunID),
		zap.Int("classified", sum.Classified),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("decisions", sum.Decisions),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", sum.Duration))
	return sum, err
}

func (e *Engine) classifySerial(ctx context.Context, srcs []source, sum *RunSummary, force bool) error {
	var errs []error
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, skip, err := e.prepareFile(src, sum.RunID, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", src.path, err))
			continue
		}
		if skip {
			sum.Unchanged++
			continue
		}
		if err := e.classifyFile(ctx, item); err != nil {
			errs = append(errs, fmt.Errorf("classify %s: %w", src.path, err))
			continue
		}
		if err := e.commit(item, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return e.summarize(sum, errs)
}

// summarize folds per-file errors into the summary and the returned error.
func (e *Engine) summarize(sum *RunSummary, errs []error) error {
	sum.Failed = len(errs)
	for _, err := range errs {
		e.log.Warn("memocap: file failed", zap.Error(err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("classification had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// skipDirs are directories excluded from classification.
var skipDirs = map[string]bool{
	"node_modules": true,
	"oh_modules":   true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
}

// ClassifyDirectory walks root and classifies all files with supported
// extensions. Module names are the file paths relative to root without
// extension. If root is inside a git repository, uses git ls-files to
// respect .gitignore. Falls back to a filesystem walk otherwise. Units
// stored for files under root that no longer exist are removed.
func (e *Engine) ClassifyDirectory(ctx context.Context, root string) (*RunSummary, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("memocap: %w", err)
	}
	paths, err := gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available; fall back to walk.
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}

	srcs := make([]source, 0, len(paths))
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		srcs = append(srcs, source{path: p, module: moduleName(root, p)})
		present[p] = true
	}

	sum, runErr := e.classifySources(ctx, srcs)
	removed, err := e.pruneMissing(root, present)
	if err != nil && runErr == nil {
		runErr = err
	}
	sum.Removed = removed
	return sum, runErr
}

// moduleName derives a slash-separated module name for path under root.
func moduleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// pruneMissing deletes stored units under root whose files are gone.
func (e *Engine) pruneMissing(root string, present map[string]bool) (int, error) {
	units, err := e.store.Units()
	if err != nil {
		return 0, fmt.Errorf("memocap: list units: %w", err)
	}
	prefix := root + string(filepath.Separator)
	var stale []int64
	for _, u := range units {
		if strings.HasPrefix(u.Path, prefix) && !present[u.Path] {
			stale = append(stale, u.ID)
		}
	}
	if err := e.store.DeleteUnits(stale); err != nil {
		return 0, fmt.Errorf("memocap: prune units: %w", err)
	}
	if len(stale) > 0 {
		e.log.Info("memocap: pruned units", zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported extensions.
func gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := frontend.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available. Skips hidden directories and build output.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := frontend.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// readSource reads a file for classification.
func readSource(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}
