package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerCreatesFileWithoutSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := filepath.Join(t.TempDir(), "nested", "desk.json")

	initial := DefaultConfigWithRoot(t.TempDir())
	initial.MaxDebateRounds = 3
	initial.FinnhubAPIKey = "fh-secret"
	mgr, err := NewManager(WithConfigPath(path), WithInitialConfig(initial))
	require.NoError(t, err)
	assert.Equal(t, path, mgr.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fh-secret")
	assert.NotContains(t, string(data), "sk-env")
	assert.Contains(t, string(data), `"max_debate_rounds": 3`)

	cfg := mgr.Get()
	assert.Equal(t, 3, cfg.MaxDebateRounds)
	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
}

func TestManagerKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_risk_rounds": 2}`), 0o644))

	mgr, err := NewManager(WithConfigPath(path), WithInitialConfig(DefaultConfigWithRoot(t.TempDir())))
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.Equal(t, 2, cfg.MaxRiskDiscussRounds)
	assert.Equal(t, 1, cfg.MaxDebateRounds, "omitted fields keep defaults")
	assert.Equal(t, filepath.Dir(path), cfg.ProjectDir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"max_risk_rounds": 2}`, string(data))
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"max_debate_rounds": -1}`), 0o644))
	_, err := LoadFile(bad)
	assert.ErrorContains(t, err, "max_debate_rounds")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0o644))
	_, err = LoadFile(broken)
	assert.Error(t, err)

	_, err = NewManager()
	assert.Error(t, err)
}

func TestManagerWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.json")
	mgr, err := NewManager(WithConfigPath(path), WithDebounce(50*time.Millisecond), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 4)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	// an invalid edit is skipped and the last good config stays
	require.NoError(t, os.WriteFile(path, []byte(`{"max_tool_rounds": 0}`), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 8, mgr.Get().MaxToolRounds)

	cfg := mgr.Get()
	cfg.MaxRiskDiscussRounds = 2
	require.NoError(t, WriteFile(path, &cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, 2, got.MaxRiskDiscussRounds)
		assert.Equal(t, 2, mgr.Get().MaxRiskDiscussRounds)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.Validate())

	cfg.SelectedAnalysts = []string{"market", "astrology"}
	assert.ErrorContains(t, cfg.Validate(), "astrology")

	cfg = DefaultConfigWithRoot(t.TempDir())
	cfg.SelectedAnalysts = []string{"news", "news"}
	assert.ErrorContains(t, cfg.Validate(), "twice")

	cfg = DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfigWithRoot(t.TempDir())
	cfg.MaxDebateRounds = 0
	cfg.MaxRiskDiscussRounds = 0
	assert.NoError(t, cfg.Validate(), "zero rounds skip straight to the judge")
}

func TestParseAnalysts(t *testing.T) {
	assert.Equal(t, []string{"market", "news"}, ParseAnalysts(" Market, ,news "))
	assert.Nil(t, ParseAnalysts(""))
}

func TestReloadablePinsCredentials(t *testing.T) {
	base := DefaultConfigWithRoot(t.TempDir())
	base.OpenAIAPIKey = "sk-base"

	fresh := *DefaultConfigWithRoot("/elsewhere")
	fresh.OpenAIAPIKey = "sk-other"
	fresh.MaxDebateRounds = 4
	fresh.OnlineTools = false

	got := Reloadable(base, fresh)
	assert.Equal(t, "sk-base", got.OpenAIAPIKey)
	assert.Equal(t, base.ProjectDir, got.ProjectDir)
	assert.Equal(t, 4, got.MaxDebateRounds)
	assert.False(t, got.OnlineTools)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfigWithRoot(filepath.Join(t.TempDir(), "root"))
	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.ResultsDir, cfg.DataCacheDir, filepath.Dir(cfg.DBPath)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSecrets(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "fh-env")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.OpenAIAPIKey = "sk-file"
	cfg.FillSecretsFromEnv()
	assert.Equal(t, "sk-file", cfg.OpenAIAPIKey, "file values win")
	assert.Equal(t, "fh-env", cfg.FinnhubAPIKey)

	stripped := cfg.WithoutSecrets()
	assert.Empty(t, stripped.OpenAIAPIKey)
	assert.Empty(t, stripped.FinnhubAPIKey)
	assert.Equal(t, "sk-file", cfg.OpenAIAPIKey, "original untouched")
	assert.Equal(t, cfg.DeepThinkLLM, stripped.DeepThinkLLM)
}
