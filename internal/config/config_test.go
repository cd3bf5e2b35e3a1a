package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv(EnvDBKey, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "FAT", cfg.Invoice.NumberPrefix)
	assert.Equal(t, "compound", cfg.Invoice.InterestPolicy)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Collection.BackoffBase)

	rates, err := cfg.Rates()
	require.NoError(t, err)
	assert.Equal(t, "0.033", rates.DailyInterest.String())
	assert.Equal(t, "2", rates.Penalty.String())
	assert.True(t, rates.MonthlyDiscount.IsZero())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
invoice:
  number_prefix: INV
  interest_policy: price
charges:
  penalty: "2,5"
collection:
  default_channel: sms
  backoff_base: 2h
log:
  level: info
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0600))
	t.Setenv(EnvDBKey, "s3cret")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INV", cfg.Invoice.NumberPrefix)
	assert.Equal(t, "price", cfg.Invoice.InterestPolicy)
	assert.Equal(t, "sms", cfg.Collection.DefaultChannel)
	assert.Equal(t, 2*time.Hour, cfg.Collection.BackoffBase)
	assert.Equal(t, 5, cfg.Collection.MaxAttempts, "unset keys keep defaults")
	assert.Equal(t, "s3cret", cfg.DBKey)
	assert.Equal(t, "debug", cfg.Log.Level)

	rates, err := cfg.Rates()
	require.NoError(t, err)
	assert.Equal(t, "2.5", rates.Penalty.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"interest policy", "invoice:\n  interest_policy: weird\n"},
		{"channel", "collection:\n  default_channel: fax\n"},
		{"rate", "charges:\n  penalty: abc\n"},
		{"negative rate", "charges:\n  daily_interest: \"-1\"\n"},
		{"yaml", "invoice: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvDBKey, "")
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Invoice.NumberPrefix = "ACME"
	cfg.DBKey = "never-written"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ACME", loaded.Invoice.NumberPrefix)
	assert.Equal(t, cfg.Collection.BackoffMax, loaded.Collection.BackoffMax)
}
