package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatlink.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatlink")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// ArchiveDBPath returns the local message archive path for a session.
func ArchiveDBPath(name string) string {
	return filepath.Join(Dir(name), "archive.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the engine log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "chatlinkd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
