package logfs

import (
	"os"

	"github.com/kebairia/borgwatch/internal/logger"
)

// LocalFS serves log files straight off the local filesystem. Mounting is
// a no-op.
type LocalFS struct {
	path string
	log  logger.Logger
}

var _ LogFS = (*LocalFS)(nil)

func NewLocalFS(path string, log logger.Logger) *LocalFS {
	return &LocalFS{path: path, log: log}
}

func (fs *LocalFS) Mount() error   { return nil }
func (fs *LocalFS) Unmount() error { return nil }

func (fs *LocalFS) List() ([]string, error) {
	return listDir(fs.path, fs.log)
}

func (fs *LocalFS) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (fs *LocalFS) Location() string { return fs.path }
