package files

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pollcli/internal/errors"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readString(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestTransaction_Commit(t *testing.T) {
	dir := t.TempDir()
	trends := filepath.Join(dir, "trends.csv")
	audit := filepath.Join(dir, "audit.csv")
	require.NoError(t, os.WriteFile(trends, []byte("old trends"), 0644))

	tx := NewTransaction(nil)
	require.NoError(t, tx.Stage(trends, writeString("new trends")))
	require.NoError(t, tx.Stage(audit, writeString("new audit")))

	// nothing is visible before commit
	assert.Equal(t, "old trends", readString(t, trends))
	assert.NoFileExists(t, audit)

	require.NoError(t, tx.Commit())
	assert.Equal(t, "new trends", readString(t, trends))
	assert.Equal(t, "new audit", readString(t, audit))
	assert.Equal(t, []string{"audit.csv", "trends.csv"}, dirEntries(t, dir))

	info, err := os.Stat(audit)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	err = tx.Commit()
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))
}

func TestTransaction_StageFailureKeepsPriorOutputs(t *testing.T) {
	dir := t.TempDir()
	trends := filepath.Join(dir, "trends.csv")
	audit := filepath.Join(dir, "audit.csv")
	require.NoError(t, os.WriteFile(trends, []byte("old trends"), 0644))
	require.NoError(t, os.WriteFile(audit, []byte("old audit"), 0644))

	tx := NewTransaction(nil)
	require.NoError(t, tx.Stage(trends, writeString("new trends")))

	err := tx.Stage(audit, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("disk full")
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))

	tx.Rollback()
	assert.Equal(t, "old trends", readString(t, trends))
	assert.Equal(t, "old audit", readString(t, audit))
	assert.Equal(t, []string{"audit.csv", "trends.csv"}, dirEntries(t, dir))
}

func TestTransaction_CommitFailureRestoresBackups(t *testing.T) {
	dir := t.TempDir()
	trends := filepath.Join(dir, "trends.csv")
	audit := filepath.Join(dir, "audit.csv")
	polls := filepath.Join(dir, "polls.csv")
	require.NoError(t, os.WriteFile(trends, []byte("old trends"), 0644))
	require.NoError(t, os.WriteFile(audit, []byte("old audit"), 0644))

	tx := NewTransaction(nil)
	require.NoError(t, tx.Stage(trends, writeString("new trends")))
	require.NoError(t, tx.Stage(polls, writeString("new polls")))
	require.NoError(t, tx.Stage(audit, writeString("new audit")))

	original := renameFile
	defer func() { renameFile = original }()
	renameFile = func(src, dst string) error {
		if dst == audit && isTemp(src) {
			return errors.New("rename refused")
		}
		return original(src, dst)
	}

	err := tx.Commit()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeStorage, apperrors.TypeOf(err))

	assert.Equal(t, "old trends", readString(t, trends))
	assert.Equal(t, "old audit", readString(t, audit))
	assert.NoFileExists(t, polls)
	assert.Equal(t, []string{"audit.csv", "trends.csv"}, dirEntries(t, dir))
}

func TestTransaction_RollbackAfterCommitIsNoop(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "summary.json")

	tx := NewTransaction(nil)
	require.NoError(t, tx.Stage(target, writeString("{}")))
	require.NoError(t, tx.Commit())
	tx.Rollback()

	assert.Equal(t, "{}", readString(t, target))
}

func TestTransaction_CreatesTargetDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "out", "trends.csv")

	tx := NewTransaction(nil)
	require.NoError(t, tx.Stage(target, writeString("x")))
	require.NoError(t, tx.Commit())
	assert.Equal(t, "x", readString(t, target))
}

// isTemp reports whether name is a staged temporary file
func isTemp(name string) bool {
	matched, _ := filepath.Match(".*.tmp-*", filepath.Base(name))
	return matched
}
