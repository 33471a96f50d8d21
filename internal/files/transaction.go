package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "pollcli/internal/errors"
	"pollcli/internal/infrastructure"
)

// renameFile is swapped out by tests to simulate commit failures
var renameFile = os.Rename

// stagedFile is a fully written temporary file waiting to replace target
type stagedFile struct {
	target string
	temp   string
}

// Transaction publishes a set of files all-or-nothing. Each file is written
// to a temporary file next to its target and fsynced; Commit then renames
// every temporary file over its target. If any step fails, targets already
// replaced are restored from backups and no temporary file is left behind.
type Transaction struct {
	staged []stagedFile
	closed bool
	logger *slog.Logger
}

// NewTransaction starts an empty transaction
func NewTransaction(logger *slog.Logger) *Transaction {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transaction{logger: infrastructure.WithComponent(logger, "transaction")}
}

// Stage writes one artifact through write into a temporary file in the
// target's directory. The target itself is untouched until Commit.
func (tx *Transaction) Stage(target string, write func(io.Writer) error) error {
	if tx.closed {
		return apperrors.NewStorageError("transaction already finished", nil)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return apperrors.NewStorageError("failed to create temporary file", err).WithContext("target", target)
	}

	fail := func(msg string, cause error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperrors.NewStorageError(msg, cause).WithContext("target", target)
	}

	if err := write(tmp); err != nil {
		return fail("failed to write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("failed to sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperrors.NewStorageError("failed to close artifact", err).WithContext("target", target)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return apperrors.NewStorageError("failed to set artifact permissions", err).WithContext("target", target)
	}

	tx.staged = append(tx.staged, stagedFile{target: target, temp: tmp.Name()})
	tx.logger.Debug("Staged artifact",
		slog.String("target", target),
		slog.String("temp", tmp.Name()))
	return nil
}

// Commit replaces every target with its staged file
func (tx *Transaction) Commit() error {
	if tx.closed {
		return apperrors.NewStorageError("transaction already finished", nil)
	}
	tx.closed = true

	type committed struct {
		target string
		backup string
	}
	var done []committed

	restore := func() {
		for i := len(done) - 1; i >= 0; i-- {
			c := done[i]
			if c.backup == "" {
				if err := os.Remove(c.target); err != nil {
					tx.logger.Error("Failed to remove new artifact during restore",
						slog.String("target", c.target), slog.String("error", err.Error()))
				}
				continue
			}
			if err := renameFile(c.backup, c.target); err != nil {
				tx.logger.Error("Failed to restore artifact from backup",
					slog.String("target", c.target),
					slog.String("backup", c.backup),
					slog.String("error", err.Error()))
			}
		}
	}

	for i, s := range tx.staged {
		backup, err := backupExisting(s.target)
		if err != nil {
			restore()
			tx.removeTemps(tx.staged[i:])
			return apperrors.NewStorageError("failed to back up existing artifact", err).WithContext("target", s.target)
		}

		if err := renameFile(s.temp, s.target); err != nil {
			if backup != "" {
				if rerr := renameFile(backup, s.target); rerr != nil {
					tx.logger.Error("Failed to restore artifact from backup",
						slog.String("target", s.target), slog.String("error", rerr.Error()))
				}
			}
			restore()
			tx.removeTemps(tx.staged[i:])
			return apperrors.NewStorageError("failed to commit artifact", err).WithContext("target", s.target)
		}
		done = append(done, committed{target: s.target, backup: backup})
	}

	for _, c := range done {
		if c.backup != "" {
			os.Remove(c.backup)
		}
		syncDir(filepath.Dir(c.target))
	}

	tx.logger.Info("Committed artifacts", slog.Int("count", len(done)))
	return nil
}

// Rollback discards every staged file. It is safe to call after Commit.
func (tx *Transaction) Rollback() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.removeTemps(tx.staged)
}

func (tx *Transaction) removeTemps(staged []stagedFile) {
	for _, s := range staged {
		if err := os.Remove(s.temp); err != nil && !os.IsNotExist(err) {
			tx.logger.Warn("Failed to remove temporary file",
				slog.String("temp", s.temp), slog.String("error", err.Error()))
		}
	}
}

// backupExisting moves an existing target aside and returns the backup
// path, or "" if there was nothing to back up
func backupExisting(target string) (string, error) {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".bak-*")
	if err != nil {
		return "", err
	}
	backup := f.Name()
	f.Close()

	if err := renameFile(target, backup); err != nil {
		os.Remove(backup)
		return "", fmt.Errorf("move %s aside: %w", target, err)
	}
	return backup, nil
}

// syncDir flushes directory entries so renames survive a crash. Errors are
// ignored; not every platform supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
