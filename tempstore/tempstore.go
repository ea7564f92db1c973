// Package tempstore manages the scratch directory a file-backed factory
// mints its intermediate runs into. A Manager either creates the directory
// (and then owns it, removing it and its contents on Close) or adopts a
// pre-existing one, which it leaves in place.
package tempstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	tempFilePrefix    = "r"
	tempFileExtension = ".b"
)

// Manager owns a scratch namespace on the filesystem and generates unique
// file IDs inside it. IDs are unique for the lifetime of one Manager.
type Manager struct {
	dir     string
	owned   bool
	counter uint64
	closed  bool
	log     logrus.FieldLogger
}

// New returns a manager rooted at baseDir, creating the directory when it
// does not exist. An empty baseDir picks a unique directory under the OS
// temp dir. log may be nil.
func New(baseDir string, log logrus.FieldLogger) (*Manager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "extmerge-"+uuid.NewString())
	}
	m := &Manager{dir: baseDir, log: log}

	info, err := os.Stat(baseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, errors.Errorf("temp path %s exists and is not a directory", baseDir)
		}
		m.owned = false
		log.Warnf("tempstore: adopted existing directory %s, it will not be removed", baseDir)
	case os.IsNotExist(err):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create temp directory %s", baseDir)
		}
		m.owned = true
		log.Infof("tempstore: created directory %s", baseDir)
	default:
		return nil, errors.Wrapf(err, "stat temp directory %s", baseDir)
	}
	return m, nil
}

// Dir returns the namespace path so callers can refuse to place permanent
// outputs inside it.
func (m *Manager) Dir() string {
	return m.dir
}

// Owned reports whether Close will remove the directory.
func (m *Manager) Owned() bool {
	return m.owned
}

// NextID mints a fresh unique file path inside the namespace.
func (m *Manager) NextID() string {
	id := filepath.Join(m.dir, fmt.Sprintf("%s%d%s", tempFilePrefix, m.counter, tempFileExtension))
	m.counter++
	return id
}

// Cleanup removes a single entry. A missing entry is not an error.
func (m *Manager) Cleanup(id string) error {
	if err := os.Remove(id); err != nil && !os.IsNotExist(err) {
		m.log.Warnf("tempstore: failed to remove %s: %v", id, err)
		return errors.Wrapf(err, "remove %s", id)
	}
	return nil
}

// Close removes the namespace and everything in it when this manager
// created it. Adopted directories are left untouched. Closing twice is a
// no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.owned {
		m.log.Infof("tempstore: leaving adopted directory %s in place", m.dir)
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		m.log.Warnf("tempstore: failed to remove directory %s: %v", m.dir, err)
		return errors.Wrapf(err, "remove temp directory %s", m.dir)
	}
	m.log.Infof("tempstore: removed directory %s", m.dir)
	return nil
}
