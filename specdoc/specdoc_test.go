package specdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
id: greet
tasks:
  t1:
    id: t1
    on-success: t2
  t2:
    id: t2
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should decode a YAML document into a raw tree", func(t *testing.T) {
		path := writeTemp(t, "spec.yaml", yamlDoc)
		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "greet", doc["id"])
	})

	t.Run("Should fail cleanly for a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadWorkflow(t *testing.T) {
	t.Run("Should decode a spec document directly into a workflow, resolving clause shapes", func(t *testing.T) {
		path := writeTemp(t, "spec.yaml", yamlDoc)
		w, err := LoadWorkflow(path)
		require.NoError(t, err)
		assert.Equal(t, "greet", w.ID)
		require.NoError(t, w.Validate())
		next, err := w.GetNextTasks("t1", nil)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, "t2", next[0].Task)
	})
}

func TestIsJSON(t *testing.T) {
	t.Run("Should recognize a .json extension", func(t *testing.T) {
		assert.True(t, IsJSON("spec.json"))
		assert.False(t, IsJSON("spec.yaml"))
	})
}
