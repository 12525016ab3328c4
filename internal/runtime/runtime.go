// Package runtime evaluates memocap configuration scripts.
//
// Configuration is written in Risor. Scripts call host functions to
// register the module each marker symbol is imported from and the prefix of
// synthesized parameters. The embedded defaults.risor runs first, so a user
// script only states what it changes.
package runtime

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/memocap/internal/memo"
)

//go:embed defaults.risor
var defaultsScript string

// Runtime embeds a Risor VM and provides configuration host functions to
// config scripts.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	log        *zap.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(log *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = log
	}
}

// NewRuntime creates a Runtime that resolves relative script paths and
// imports against scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultConfig evaluates the embedded default script alone.
func (r *Runtime) DefaultConfig(ctx context.Context) (memo.Config, error) {
	b := newConfigBuilder()
	if err := r.eval(ctx, defaultsScript, "defaults.risor", b.globals()); err != nil {
		return memo.Config{}, err
	}
	return b.cfg, nil
}

// LoadConfig evaluates source on top of the defaults.
func (r *Runtime) LoadConfig(ctx context.Context, source string) (memo.Config, error) {
	return r.loadConfig(ctx, source, "<inline>")
}

// LoadConfigFile evaluates the script at path on top of the defaults.
func (r *Runtime) LoadConfigFile(ctx context.Context, path string) (memo.Config, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return memo.Config{}, err
	}
	return r.loadConfig(ctx, src, path)
}

func (r *Runtime) loadConfig(ctx context.Context, source, label string) (memo.Config, error) {
	b := newConfigBuilder()
	globals := b.globals()
	if err := r.eval(ctx, defaultsScript, "defaults.risor", globals); err != nil {
		return memo.Config{}, err
	}
	if err := r.eval(ctx, source, label, globals); err != nil {
		return memo.Config{}, err
	}
	r.log.Debug("runtime: config loaded",
		zap.String("script", label),
		zap.String("fingerprint", b.cfg.Fingerprint()))
	return b.cfg, nil
}

// RunSource executes Risor source code directly with the standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{log: r.log.Named("script")}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
