package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
port = 9000

[ai]
base_url = "http://ai.internal:8000"
ask_timeout_seconds = 10
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DOTENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("PYTHON_API_BASE_URL", "http://override:8000")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "http://override:8000", cfg.AI.BaseURL)
	assert.Equal(t, 10, cfg.AI.AskTimeoutSeconds)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.App.CORSOrigins)
	assert.Equal(t, "http://localhost:4000", cfg.Public.BaseURL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("APP_PORT=4100\n"), 0o600))

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "none.toml"))
	t.Setenv("DOTENV_FILE", envPath)
	// godotenv never overrides variables that are already set, so make sure
	// APP_PORT starts out unset for this test.
	prev, had := os.LookupEnv("APP_PORT")
	require.NoError(t, os.Unsetenv("APP_PORT"))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("APP_PORT", prev)
		} else {
			_ = os.Unsetenv("APP_PORT")
		}
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.App.Port)
}

func TestGetEnvHelpers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid", value: "42", want: 42},
		{name: "empty falls back", value: "", want: 7},
		{name: "garbage falls back", value: "x", want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOTDESK_INT", tt.value)
			assert.Equal(t, tt.want, getEnvAsInt("BOTDESK_INT", 7))
		})
	}

	t.Setenv("BOTDESK_BOOL", "true")
	assert.True(t, getEnvAsBool("BOTDESK_BOOL", false))
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "root:@tcp(127.0.0.1:3306)/botdesk?parseTime=true&loc=Local&charset=utf8mb4", cfg.MySQLDSN())
}
