package logfs

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kebairia/borgwatch/internal/logger"
)

// SSHFSPrefix marks a log-source location served through sshfs.
const SSHFSPrefix = "sshfs://"

// SSHFS mounts a remote log directory on demand into a temporary
// directory and unmounts it after the scan.
type SSHFS struct {
	location   string
	remotePath string
	mountPath  string
	log        logger.Logger
}

var _ LogFS = (*SSHFS)(nil)

func matchesSSHFS(path string) bool {
	return strings.HasPrefix(path, SSHFSPrefix)
}

func NewSSHFS(location string, log logger.Logger) *SSHFS {
	return &SSHFS{
		location:   location,
		remotePath: strings.TrimPrefix(location, SSHFSPrefix),
		log:        log,
	}
}

// Mount mounts the remote path into a fresh temp dir. Mounting twice is a
// no-op.
func (fs *SSHFS) Mount() error {
	if fs.mountPath != "" {
		return nil
	}
	dir, err := os.MkdirTemp("", "borgwatch-logs-*")
	if err != nil {
		return fmt.Errorf("create mount dir: %w", err)
	}
	if err := runCmd(fs.log, "sshfs", "-o", "allow_other", fs.remotePath, dir); err != nil {
		_ = os.Remove(dir)
		return fmt.Errorf("mount %s: %w", fs.location, err)
	}
	fs.mountPath = dir
	fs.log.Info("mounted log source", "location", fs.location, "mountpath", dir)
	return nil
}

func (fs *SSHFS) Unmount() error {
	if fs.mountPath == "" {
		return nil
	}
	if err := runCmd(fs.log, "umount", fs.mountPath); err != nil {
		return fmt.Errorf("unmount %s: %w", fs.location, err)
	}
	_ = os.Remove(fs.mountPath)
	fs.log.Info("unmounted log source", "location", fs.location)
	fs.mountPath = ""
	return nil
}

func (fs *SSHFS) List() ([]string, error) {
	if fs.mountPath == "" {
		fs.log.Warn("log source not mounted", "location", fs.location)
		return nil, nil
	}
	return listDir(fs.mountPath, fs.log)
}

func (fs *SSHFS) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (fs *SSHFS) Location() string { return fs.location }

func runCmd(log logger.Logger, name string, args ...string) error {
	log.Debug("executing command", "cmd", name, "args", args)
	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
