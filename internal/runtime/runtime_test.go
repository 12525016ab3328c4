package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/memocap/internal/memo"
)

// --- Config loading ---

func TestDefaultConfig_MatchesBuiltIn(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	cfg, err := rt.DefaultConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, memo.DefaultConfig(), cfg)
	assert.Equal(t, memo.DefaultConfig().Fingerprint(), cfg.Fingerprint())
}

func TestLoadConfig_OverridesMarkerModule(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	cfg, err := rt.LoadConfig(context.Background(), `
marker("memo", "@ohos.arkui.runtime")
marker("Builder", "@ohos.arkui.component")
`)
	require.NoError(t, err)
	assert.Equal(t, "@ohos.arkui.runtime", cfg.Markers[memo.MarkerMemo])
	assert.Equal(t, "@ohos.arkui.component", cfg.Markers[memo.MarkerBuilder])
	assert.Equal(t, memo.DefaultRuntimeModule, cfg.Markers[memo.MarkerMemoSkip])
	assert.Equal(t, memo.DefaultGensymPrefix, cfg.GensymPrefix)
}

func TestLoadConfig_Unmarker(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	cfg, err := rt.LoadConfig(context.Background(), `unmarker("memo_entry")`)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Markers, memo.MarkerMemoEntry)
	assert.Len(t, cfg.Markers, 3)
}

func TestLoadConfig_GensymPrefix(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	cfg, err := rt.LoadConfig(context.Background(), `gensym_prefix("__synth")`)
	require.NoError(t, err)
	assert.Equal(t, "__synth", cfg.GensymPrefix)
}

func TestLoadConfig_MarkersVisibleToScript(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	_, err := rt.LoadConfig(context.Background(), `
m := markers()
assert(m["memo"] == "arkui.stateManagement.runtime", 'unexpected module ' + m["memo"])
assert(len(m) == 4, 'expected 4 markers')
`)
	require.NoError(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
	}{
		{"unknown marker", `marker("memoize", "x")`},
		{"empty module", `marker("memo", "")`},
		{"wrong arity", `marker("memo")`},
		{"non-string prefix", `gensym_prefix(1)`},
		{"syntax", `marker(`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRuntime("").LoadConfig(context.Background(), tt.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "runtime: script <inline>")
		})
	}
}

func TestLoadConfigFile_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memocap.risor"),
		[]byte(`gensym_prefix("tmp_")`), 0644))

	cfg, err := NewRuntime(dir).LoadConfigFile(context.Background(), "memocap.risor")
	require.NoError(t, err)
	assert.Equal(t, "tmp_", cfg.GensymPrefix)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := NewRuntime(t.TempDir()).LoadConfigFile(context.Background(), "nope.risor")
	require.Error(t, err)
}

func TestLoadConfigFile_FromFSWithImport(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"config.risor": &fstest.MapFile{Data: []byte(`
import modules
marker("memo", modules.runtime)
`)},
		"modules.risor": &fstest.MapFile{Data: []byte(`runtime := "@kit.ArkUI"`)},
	}

	cfg, err := NewRuntime("", WithRuntimeFS(mapFS)).LoadConfigFile(context.Background(), "/config.risor")
	require.NoError(t, err)
	assert.Equal(t, "@kit.ArkUI", cfg.Markers[memo.MarkerMemo])
}

// --- Scripts ---

func TestRunSource_LogGoesToLogger(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	rt := NewRuntime("", WithLogger(zap.New(core)))

	err := rt.RunSource(context.Background(), `log.Info("hello")`, nil)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}

func TestRunSource_ExtraGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	err := rt.RunSource(context.Background(), `assert(answer == 42, 'expected 42')`,
		map[string]any{"answer": 42})
	require.NoError(t, err)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()
	content := `x := 42`
	mapFS := fstest.MapFS{
		"conf/a.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/conf/a.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.log)
}
