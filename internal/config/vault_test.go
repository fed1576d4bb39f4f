package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"resumeform/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

type fakeSecrets struct {
	strings map[string]string
	err     error
}

func (f *fakeSecrets) GetStringSecret(path, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.strings[path+"#"+key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	return value, nil
}

func (f *fakeSecrets) GetStringSliceSecret(path, key string) ([]string, error) {
	value, err := f.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	return splitAndTrim(value), nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "float string", input: "42.5", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestResolveVaultToken(t *testing.T) {
	logger := newTestLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}

func TestDecodeKVv2(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expectError bool
		expected    *VaultSecret
	}{
		{
			name: "valid KVv2 secret",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{"token": "abc"},
				"metadata": map[string]any{"version": float64(3)},
			}},
			expected: &VaultSecret{Data: map[string]any{"token": "abc"}, Version: 3},
		},
		{
			name: "missing data field",
			secret: &api.Secret{Data: map[string]any{
				"metadata": map[string]any{"version": float64(1)},
			}},
			expectError: true,
		},
		{
			name: "data field wrong type",
			secret: &api.Secret{Data: map[string]any{
				"data":     "not-a-map",
				"metadata": map[string]any{"version": float64(1)},
			}},
			expectError: true,
		},
		{
			name: "missing version",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{},
				"metadata": map[string]any{"other": "value"},
			}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeKVv2(tt.secret, "secret/data/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	secret := &VaultSecret{Data: map[string]any{"token": "abc", "count": 3}}

	value, err := stringField(secret, "p", "token")
	assert.NoError(t, err)
	assert.Equal(t, "abc", value)

	_, err = stringField(secret, "p", "missing")
	assert.Error(t, err)

	_, err = stringField(secret, "p", "count")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "is not a string")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcdef-ghi-6789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestApplySecrets(t *testing.T) {
	client := &fakeSecrets{strings: map[string]string{
		"secret/data/keys#keys":   "key1, key2 ,key3",
		"secret/data/token#token": "bearer-token-value",
	}}

	cfg := &Config{
		Server: ServerConfig{APIKeys: []string{"from-file"}},
		Vault: VaultConfig{Secrets: VaultSecrets{
			APIKeys:       "secret/data/keys",
			AnalysisToken: "secret/data/token",
		}},
	}

	require.NoError(t, applySecrets(client, cfg, newTestLogger()))
	assert.Equal(t, []string{"key1", "key2", "key3"}, cfg.Server.APIKeys)
	assert.Equal(t, "bearer-token-value", cfg.Analysis.AuthToken)
}

func TestApplySecretsSkipsEmptyPaths(t *testing.T) {
	client := &fakeSecrets{err: fmt.Errorf("should not be called")}
	cfg := &Config{Analysis: AnalysisConfig{AuthToken: "from-env"}}

	require.NoError(t, applySecrets(client, cfg, newTestLogger()))
	assert.Equal(t, "from-env", cfg.Analysis.AuthToken)
}

func TestApplySecretsPropagatesErrors(t *testing.T) {
	client := &fakeSecrets{err: fmt.Errorf("permission denied")}
	cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{AnalysisToken: "secret/data/token"}}}

	err := applySecrets(client, cfg, newTestLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load analysis token from vault")
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(cfg, nil))
}

func TestNilVaultClient(t *testing.T) {
	var vc *VaultClient
	_, err := vc.GetSecretV2("secret/data/x")
	assert.Error(t, err)
}
