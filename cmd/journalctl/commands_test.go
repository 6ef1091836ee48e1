package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCommandOnEmptyStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"stats", "--sqlite-path", filepath.Join(t.TempDir(), "journal.db")})

	require.NoError(t, cmd.Execute())

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, float64(0), body["totalLogs"])
	assert.Equal(t, float64(0), body["streak"])
	assert.Equal(t, float64(0), body["growthRatio"])
}

func TestStatsCommandRejectsUnknownDriver(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"stats", "--driver", "mongo"})

	assert.Error(t, cmd.Execute())
}
