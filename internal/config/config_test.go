package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newTestLoader(t *testing.T, configFile string) *Loader {
	t.Helper()
	loader := NewLoader(viper.New())
	loader.SetEnvFiles()
	if configFile != "" {
		loader.SetConfigFile(configFile)
	}
	return loader
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader(t, writeConfigFile(t, "{}\n")).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Analysis.Endpoint)
	assert.Equal(t, time.Duration(0), cfg.Analysis.Timeout)
	assert.False(t, cfg.Analysis.CircuitBreaker.Enabled)
	assert.Equal(t, int64(1024*1024), cfg.Analysis.MaxResponseSize)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, "disabled", cfg.Server.TLS.Mode)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "text", cfg.App.DefaultFormat)
	assert.Equal(t, []string{"json", "text", "markdown"}, cfg.App.SupportedFormats)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
analysis:
  endpoint: http://localhost:5000/api/upload-resume
  timeout: 45s
  circuitBreaker:
    enabled: true
    failureThreshold: 0.5
server:
  port: "9000"
  apiKeys: ["alpha", "beta"]
app:
  logLevel: debug
  defaultFormat: markdown
`)

	cfg, err := newTestLoader(t, path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api/upload-resume", cfg.Analysis.Endpoint)
	assert.Equal(t, 45*time.Second, cfg.Analysis.Timeout)
	assert.True(t, cfg.Analysis.CircuitBreaker.Enabled)
	assert.Equal(t, 0.5, cfg.Analysis.CircuitBreaker.FailureThreshold)
	assert.Equal(t, uint32(3), cfg.Analysis.CircuitBreaker.MaxRequests)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Server.APIKeys)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "markdown", cfg.App.DefaultFormat)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: \"9000\"\n")
	t.Setenv("RESUMEFORM_SERVER_PORT", "7000")
	t.Setenv("RESUMEFORM_ANALYSIS_AUTHTOKEN", "secret-token")
	t.Setenv("RESUMEFORM_SERVER_APIKEYS", "one, two ,three")

	cfg, err := newTestLoader(t, path).Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "secret-token", cfg.Analysis.AuthToken)
	assert.Equal(t, []string{"one", "two", "three"}, cfg.Server.APIKeys)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "RESUMEFORM_ANALYSIS_ENDPOINT"
	t.Setenv(key, "placeholder")
	require.NoError(t, os.Unsetenv(key))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(key+"=https://review.example.com/api/upload-resume\n"), 0600))

	loader := newTestLoader(t, writeConfigFile(t, "{}\n"))
	loader.SetEnvFiles(envFile, filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://review.example.com/api/upload-resume", cfg.Analysis.Endpoint)
}

func TestFlagBindingOverridesFile(t *testing.T) {
	loader := newTestLoader(t, writeConfigFile(t, "server:\n  port: \"9000\"\n"))
	loader.Viper().Set("server.port", "6000")

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.Server.Port)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := newTestLoader(t, writeConfigFile(t, "server: [unclosed\n")).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Analysis: AnalysisConfig{
				Endpoint:        DefaultEndpoint,
				MaxResponseSize: 1024,
			},
			Server: ServerConfig{
				Port:       "8080",
				SessionTTL: time.Minute,
				TLS:        TLSConfig{Mode: "disabled"},
			},
			App: AppConfig{
				DefaultFormat:    "json",
				SupportedFormats: []string{"json", "text"},
				MaxFileSize:      1024,
			},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing endpoint", func(c *Config) { c.Analysis.Endpoint = "" }, "analysis endpoint is required"},
		{"relative endpoint", func(c *Config) { c.Analysis.Endpoint = "/api/upload-resume" }, "absolute http(s) URL"},
		{"negative timeout", func(c *Config) { c.Analysis.Timeout = -time.Second }, "must not be negative"},
		{"zero response size", func(c *Config) { c.Analysis.MaxResponseSize = 0 }, "maxResponseSize"},
		{"bad threshold", func(c *Config) {
			c.Analysis.CircuitBreaker = CircuitBreakerConfig{Enabled: true, FailureThreshold: 1.5}
		}, "failureThreshold"},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"zero session ttl", func(c *Config) { c.Server.SessionTTL = 0 }, "sessionTTL"},
		{"unsupported default format", func(c *Config) { c.App.DefaultFormat = "xml" }, "invalid default format"},
		{"bad tls", func(c *Config) { c.Server.TLS.Mode = "server" }, "TLS configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a ,, b ,"))
	assert.Empty(t, splitAndTrim(""))
}
