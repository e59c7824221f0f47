package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScan(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newScanCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanCommandText(t *testing.T) {
	path := writeTemp(t, "app.js", "let x = undefined variable;\nfoo();\nwhile(true){}")

	out, err := runScan(t, path)
	require.NoError(t, err)

	assert.Contains(t, out, "Issues detected: Reference Error: 1, Logical Error: 1")
	assert.Contains(t, out, "line 3: Logical Error")
}

func TestScanCommandJSON(t *testing.T) {
	path := writeTemp(t, "app.js", "foo is not defined")

	out, err := runScan(t, "--format", "json", path)
	require.NoError(t, err)

	var payload struct {
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 1, payload.Summary.Total)
}

func TestScanCommandSARIF(t *testing.T) {
	path := writeTemp(t, "app.js", "for (;;) {}")

	out, err := runScan(t, "-f", "sarif", path)
	require.NoError(t, err)
	assert.Contains(t, out, "logical-error")
}

func TestScanCommandErrors(t *testing.T) {
	_, err := runScan(t, filepath.Join(t.TempDir(), "missing.js"))
	assert.Error(t, err)

	_, err = runScan(t, "--format", "xml", writeTemp(t, "a.js", "x"))
	assert.Error(t, err)

	_, err = runScan(t)
	assert.Error(t, err)
}
