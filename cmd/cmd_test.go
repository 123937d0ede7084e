package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/buildopt/core/history"
	infrahistory "github.com/kilianp07/buildopt/infra/history"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestSolve_MissingConfig(t *testing.T) {
	_, err := execute(t, "solve", "-c", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "load config")
}

func TestSolve_UnknownProblemFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, writeFile(path, `{"building": {"path": "b.yaml"}}`))
	_, err := execute(t, "solve", "-c", path, "--problem", "cheapest")
	assert.ErrorContains(t, err, "unknown problem type")
	problemType = ""
}

func TestRuns(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	store, err := infrahistory.NewSQLiteStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), history.Record{
		RunID: "run-1", Timestamp: time.Now().UTC(), Kind: "operation", Status: "optimal", Objective: 2.5,
	}))
	require.NoError(t, store.Close())

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(path, "building:\n  path: b.yaml\nhistory:\n  backend: sqlite\n  path: runs.db\n"))
	out, err := execute(t, "runs", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "optimal")
}

func TestRuns_NoHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeFile(path, "building:\n  path: b.yaml\n"))
	_, err := execute(t, "runs", "-c", path)
	assert.ErrorContains(t, err, "history.path")
}

func writeFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}
