package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SECRET_SALT", "pepper")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, "pepper", cfg.SecretSalt)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Config{StorageDriver: "mysql", SecretSalt: "x"}.Validate())
	assert.Error(t, Config{StorageDriver: "memory"}.Validate())
	assert.NoError(t, Config{StorageDriver: "postgres", SecretSalt: "x"}.Validate())
}
