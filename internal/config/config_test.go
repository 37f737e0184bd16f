package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "groq-key")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, "excel_data.db", cfg.Database.DBName)
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, "groq-key", cfg.Completion.APIKey)
	assert.Equal(t, 3, cfg.Pipeline.SampleRows)
	assert.Equal(t, 10, cfg.Pipeline.ExplainRows)
	assert.Equal(t, float32(0), cfg.Pipeline.Select.Temperature)
	assert.Equal(t, float32(0.3), cfg.Pipeline.Synthesize.Temperature)
	assert.Equal(t, float32(0.3), cfg.Pipeline.Explain.Temperature)
	assert.Equal(t, 1, cfg.Pipeline.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.Retry.InitialBackoff)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheetquery.yaml")
	content := `
database:
  dialect: postgres
  name: school
completion:
  provider: gemini
  api_key: from-file
pipeline:
  sample_rows: 5
  retry:
    max_attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SHEETQUERY_DATABASE_HOST", "db.internal")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "")
	flags.String("model", "", "")
	require.NoError(t, flags.Parse([]string{"--database", "override"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, "override", cfg.Database.DBName, "explicit flag wins over file")
	assert.Equal(t, "db.internal", cfg.Database.Host, "env var overrides default")
	assert.Equal(t, "gemini", cfg.Completion.Provider)
	assert.Equal(t, "from-file", cfg.Completion.APIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Completion.BaseURL, "unset flag keeps default")
	assert.Empty(t, cfg.Completion.Model, "model default is chosen by the provider")
	assert.Equal(t, 5, cfg.Pipeline.SampleRows)
	assert.Equal(t, 3, cfg.Pipeline.Retry.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"duckdb dialect", func(c *Config) { c.Database.Dialect = "duckdb" }, false},
		{"unknown dialect", func(c *Config) { c.Database.Dialect = "oracle" }, true},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "llama.cpp" }, true},
		{"provider case insensitive", func(c *Config) { c.Completion.Provider = "Gemini" }, false},
		{"zero attempts", func(c *Config) { c.Pipeline.Retry.MaxAttempts = 0 }, true},
		{"negative samples", func(c *Config) { c.Pipeline.SampleRows = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
