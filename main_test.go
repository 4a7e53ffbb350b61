package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagram_engine/internal/nodes"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "none.yaml"),
		"--env-file", filepath.Join(dir, "none.env"),
	}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStdio_TruncatedThenContinued(t *testing.T) {
	lines := []string{
		`{"tool":"display_diagram","arguments":{"session_id":"s1","token":"call-1","xml":"<mxCell id=\"a\" vertex=\"1\" parent=\"1\"/><mxCell id=\"b\" ver"}}`,
		`{"tool":"append_diagram","arguments":{"session_id":"s1","token":"call-1","xml":"tex=\"1\" parent=\"1\"/>"}}`,
		`{"tool":"edit_diagram","arguments":{"session_id":"s1","operations":[{"operation":"delete","cell_id":"b"}]}}`,
		`{"tool":"paint","arguments":{}}`,
	}
	out, err := execute(t, strings.Join(lines, "\n"), "tools", "stdio")
	require.NoError(t, err)

	results := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, results, 4)

	var res nodes.ToolResult
	require.NoError(t, sonic.UnmarshalString(results[0], &res))
	assert.Equal(t, "truncated", res.Status)
	assert.Equal(t, "call-1", res.Token)

	require.NoError(t, sonic.UnmarshalString(results[1], &res))
	assert.Equal(t, "accepted", res.Status)
	assert.Contains(t, res.Document, `id="b"`)

	res = nodes.ToolResult{}
	require.NoError(t, sonic.UnmarshalString(results[2], &res))
	assert.Equal(t, "accepted", res.Status)
	assert.NotContains(t, res.Document, `id="b"`)

	assert.Contains(t, results[3], `unknown tool`)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, `<mxCell id="a" vertex="1" parent="1"/>`, "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok: 1 cells\n", out)

	out, err = execute(t, `<mxCell id="a" vertex="1" parent="1"/><mxCell id="a" vertex="1" parent="1"/>`, "validate", "-")
	require.Error(t, err)
	assert.Contains(t, out, "DuplicateId")
}
