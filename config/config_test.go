package config

import (
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAppliesDefaults(t *testing.T) {
	cfg, err := Read(strings.NewReader("opt_level: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.OptLevel)
	assert.Equal(t, 1024, cfg.Shots)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 16, cfg.CacheSize)
}

func TestReadFullConfig(t *testing.T) {
	src := heredoc.Doc(`
		max_qubits: 20
		opt_level: 3
		shots: 500
		seed: 99
		cache_size: 8
		inline_depth: 4
		noise: depolarizing:0.01
		verbose: true
	`)
	cfg, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxQubits)
	assert.Equal(t, 3, cfg.OptLevel)
	assert.Equal(t, 500, cfg.Shots)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, "depolarizing:0.01", cfg.Noise)
	assert.True(t, cfg.Verbose)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Read(strings.NewReader("opt_level: 5\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("shots: 0\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("cache_size: -1\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("not: [valid: yaml\n"))
	assert.Error(t, err)
}
