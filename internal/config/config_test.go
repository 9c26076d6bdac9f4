package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalConfig = `{
	"port": 8080,
	"embedding": {"dimension": 3},
	"ai": {
		"providers": {"local": {"type": "local", "data": {}}},
		"embed": {"provider": "local", "model": "hash"},
		"insight": [{"provider": "local", "model": "echo"}],
		"answer": [{"provider": "local", "model": "echo"}]
	}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.Chunk.MaxChars)
	require.Equal(t, 200, cfg.Chunk.OverlapChars)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, 10, cfg.Retrieval.HistoryTurns)
	require.Equal(t, "memory", cfg.VectorStore.Type)
	require.Equal(t, "0 3 * * *", cfg.Jobs.EmbeddingCacheCleanup)
	require.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	body := `{
		"port": 8080,
		"embedding": {"dimension": 3},
		"ai": {
			"providers": {"local": {"type": "local"}},
			"embed": {"provider": "missing", "model": "m"},
			"insight": [{"provider": "local", "model": "m"}],
			"answer": [{"provider": "local", "model": "m"}]
		}
	}`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing")
}

func TestValidateOverlapMustBeSmallerThanSize(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	cfg.Chunk.MaxChars = 100
	cfg.Chunk.OverlapChars = 100
	require.Error(t, cfg.Validate())
}

func TestValidatePgvectorNeedsDatabase(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	cfg.VectorStore.Type = "pgvector"
	require.Error(t, cfg.Validate())
	cfg.Database.DSN = "postgres://localhost/siteinsight"
	require.NoError(t, cfg.Validate())
}

func TestValidatePersistentChromemNeedsDatabase(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	cfg.VectorStore = VectorStoreConfig{Type: "chromem"}
	require.NoError(t, cfg.Validate())

	cfg.VectorStore.Data = map[string]interface{}{"path": "/var/lib/siteinsight/chromem"}
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "persistent chromem")

	cfg.Database.DSN = "postgres://localhost/siteinsight"
	require.NoError(t, cfg.Validate())
}
