package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-authoring/internal/bulk"
)

func TestLoadManifestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("PK"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A"), 0o644))
	path := filepath.Join(dir, "bulk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assignment_id: 7
time_limit: "2"
problems:
  - title: A
    archive: a.zip
    description: a.md
  - title: B
    archive: missing.zip
`), 0o644))

	m, err := loadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.AssignmentID)
	assert.Equal(t, "2", m.TimeLimit)

	rows := m.rows(dir)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Archive)
	assert.Equal(t, "a.zip", rows[0].Archive.Name)
	require.NotNil(t, rows[0].DescriptionFile)
	assert.Nil(t, rows[1].Archive)

	var ve *bulk.ValidationError
	require.ErrorAs(t, bulk.ValidateRows(rows, 0), &ve)
	assert.Equal(t, 1, ve.Rows[0].Index)
}

func TestLoadManifestRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("problems: []\n"), 0o644))

	_, err := loadManifest(path)
	assert.ErrorContains(t, err, "lists no problems")
}

func TestSummary(t *testing.T) {
	at := 1
	assert.Equal(t, "created 3 of 3", summary(bulk.Result{Created: make([]bulk.Created, 3), Total: 3}))
	assert.Equal(t, "created 1 of 3, failed at row 2: boom",
		summary(bulk.Result{Created: make([]bulk.Created, 1), Total: 3, FailedAt: &at, Err: errors.New("boom")}))
}
