package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-summary/errors"
)

const (
	dirPrefix    = "job-"
	sweepLockKey = ".sweep.lock"
)

// Workspace is a directory owned by exactly one job.
type Workspace struct {
	ID   string
	Path string

	once sync.Once
	err  error
}

// File returns the absolute path of name inside the workspace.
func (w *Workspace) File(name string) string {
	return filepath.Join(w.Path, name)
}

type Manager struct {
	root   string
	logger *logrus.Logger
}

func NewManager(root string, logger *logrus.Logger) *Manager {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{root: root, logger: logger}
}

func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh uniquely named directory under the root.
func (m *Manager) Acquire() (*Workspace, error) {
	const op = "workspace.Acquire"

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, errors.Workspace(op, pkgerrors.WithStack(err), "임시 작업 공간을 만들 수 없습니다.")
	}

	id := uuid.New().String()
	path := filepath.Join(m.root, dirPrefix+id)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, errors.Workspace(op, pkgerrors.WithStack(err), "임시 작업 공간을 만들 수 없습니다.")
	}

	m.logger.WithFields(logrus.Fields{
		"workspace": path,
	}).Debug("Workspace acquired")

	return &Workspace{ID: id, Path: path}, nil
}

// Release removes the workspace and everything in it. Only the first call
// does any work; later calls return the first result.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	ws.once.Do(func() {
		if err := os.RemoveAll(ws.Path); err != nil {
			ws.err = errors.Workspace("workspace.Release", pkgerrors.WithStack(err), "failed to remove workspace")
			m.logger.WithError(err).WithField("workspace", ws.Path).Error("Failed to remove workspace")
			return
		}
		m.logger.WithField("workspace", ws.Path).Debug("Workspace released")
	})
	return ws.err
}

// Sweep removes job directories last modified before olderThan ago. It holds
// an exclusive file lock on the root so concurrent processes sharing it do not
// sweep at the same time; if the lock is taken Sweep returns immediately.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return 0, pkgerrors.Wrap(err, "create workspace root")
	}

	lock := flock.New(filepath.Join(m.root, sweepLockKey))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "lock workspace root")
	}
	if !locked {
		m.logger.Debug("Workspace sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			m.logger.WithError(err).Warn("Failed to release sweep lock")
		}
	}()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "read workspace root")
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.WithError(err).WithField("workspace", path).Warn("Failed to sweep stale workspace")
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.WithField("removed", removed).Info("Swept stale workspaces")
	}
	return removed, nil
}
