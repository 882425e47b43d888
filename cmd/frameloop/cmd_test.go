package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frameloop.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["migrate"])
}

func TestMigrateSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snap.db")
	cfg := writeConfig(t, `
[database]
driver = "sqlite"
dsn = "`+dbPath+`"

[logging]
level = "error"
`)
	out, err := executeCommand(rootCmd, "migrate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied (sqlite3)")
	assert.FileExists(t, dbPath)
}

func TestMigrateWithoutDriverFails(t *testing.T) {
	cfg := writeConfig(t, "[logging]\nlevel = \"error\"\n")
	_, err := executeCommand(rootCmd, "migrate", "--config", cfg)
	assert.ErrorContains(t, err, "database.driver")
}

func TestRunFrameLimit(t *testing.T) {
	cfg := writeConfig(t, `
[loop]
frame_rate = "1ms"
draw_every = 5
canvas_width = 10
canvas_height = 4

[logging]
level = "error"
`)
	out, err := executeCommand(rootCmd, "run", "--config", cfg, "--frames", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 5  entities 0")
}
