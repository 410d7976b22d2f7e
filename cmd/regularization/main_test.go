package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Run("full command line", func(t *testing.T) {
		opts, err := parseArgs([]string{"-entity", "ent-1", "-year", "2024", "-user", "u-1", "-out", "/tmp/docs", "send"})
		require.NoError(t, err)
		assert.Equal(t, cliOptions{
			entityID:   "ent-1",
			userID:     "u-1",
			fiscalYear: 2024,
			outputDir:  "/tmp/docs",
			command:    "send",
		}, opts)
	})

	t.Run("repost", func(t *testing.T) {
		opts, err := parseArgs([]string{"-entity", "ent-1", "-year", "2024", "-user", "u-1", "repost"})
		require.NoError(t, err)
		assert.Equal(t, "repost", opts.command)
	})

	t.Run("status needs no user", func(t *testing.T) {
		opts, err := parseArgs([]string{"-entity", "ent-1", "-year", "2024", "status"})
		require.NoError(t, err)
		assert.Equal(t, "status", opts.command)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"no command", []string{"-entity", "ent-1", "-year", "2024", "-user", "u-1"}},
		{"two commands", []string{"-entity", "ent-1", "-year", "2024", "-user", "u-1", "apply", "settle"}},
		{"unknown command", []string{"-entity", "ent-1", "-year", "2024", "-user", "u-1", "close"}},
		{"missing entity", []string{"-year", "2024", "-user", "u-1", "apply"}},
		{"missing year", []string{"-entity", "ent-1", "-user", "u-1", "apply"}},
		{"missing user", []string{"-entity", "ent-1", "-year", "2024", "calculate"}},
		{"bad year", []string{"-entity", "ent-1", "-year", "twenty", "-user", "u-1", "apply"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}
