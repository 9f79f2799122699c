package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
- id: input.text
  type: input.internal.text
  parameters:
    - key: input
      type: string
      default: ""
- id: worker.ollama
  type: worker.inference.llm
  parameters:
    - key: model
      type: string
      default: llama3
- id: destination.text
  type: destination.internal.text
`

const definitionJSON = `{
  "name": "Echo",
  "creator": "user-1",
  "description": "echoes input",
  "nodes": [
    {"alias": "in", "type": "input.internal.text", "parameters": {"input": "hello"}},
    {"alias": "out", "type": "destination.internal.text", "parameters": {}}
  ],
  "edges": [{"from": "in", "to": ["out"]}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		commit    string
		buildTime string
		want      string
	}{
		{"dev defaults", "dev", "unknown", "unknown", "agentbuilder dev (commit: unknown, built: unknown)\n"},
		{"custom values", "v1.0.0", "abc123", "2026-01-01", "agentbuilder v1.0.0 (commit: abc123, built: 2026-01-01)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit, oldBuildTime := Version, Commit, BuildTime
			defer func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuildTime }()
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			code, out, _ := runCLI("version")
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: agentbuilder")

	code, _, errOut = runCLI("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestRun_Validate(t *testing.T) {
	catalogPath := writeFile(t, "catalog.yaml", catalogYAML)
	defPath := writeFile(t, "agent.json", definitionJSON)

	code, out, errOut := runCLI("validate", "-catalog", catalogPath, defPath)
	assert.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ok (2 nodes, 1 edges)")

	t.Run("missing creator", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"name": "x", "nodes": [], "edges": []}`)
		code, _, errOut := runCLI("validate", bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, errOut, "creator")
	})

	t.Run("edge to unknown alias", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"creator": "u", "nodes": [{"alias": "a", "type": "input.internal.text"}], "edges": [{"from": ["a"], "to": ["ghost"]}]}`)
		code, _, errOut := runCLI("validate", bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, errOut, "edges[0].to[0]")
	})

	t.Run("node type outside catalog", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"creator": "u", "nodes": [{"alias": "a", "type": "worker.unknown"}], "edges": []}`)
		code, _, errOut := runCLI("validate", "-catalog", catalogPath, bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, errOut, "node type not in catalog")
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{`)
		code, _, errOut := runCLI("validate", bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, errOut, "invalid agent definition JSON")
	})
}

func TestRun_Render(t *testing.T) {
	catalogPath := writeFile(t, "catalog.yaml", catalogYAML)
	defPath := writeFile(t, "agent.json", definitionJSON)

	code, out, errOut := runCLI("render", "-catalog", catalogPath, defPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"name": "Echo"`)
	assert.Contains(t, out, `"alias": "in"`)
	assert.Contains(t, out, `"input": "hello"`)

	code, _, _ = runCLI("render", defPath)
	assert.Equal(t, 1, code, "catalog is required")
}

func TestRun_Catalog(t *testing.T) {
	catalogPath := writeFile(t, "catalog.yaml", catalogYAML)

	code, out, _ := runCLI("catalog", catalogPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "input.text")
	assert.Contains(t, out, "worker.ollama")

	code, out, _ = runCLI("catalog", "-filter", "worker", catalogPath)
	require.Equal(t, 0, code)
	assert.NotContains(t, out, "input.text")
	assert.Contains(t, out, "worker.ollama")

	jsonPath := writeFile(t, "catalog.json", `[{"id": "destination.text", "type": "destination.internal.text"}]`)
	code, out, _ = runCLI("catalog", jsonPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "destination.text")
}
