package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".chatlink", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestArchiveDBPath(t *testing.T) {
	got := ArchiveDBPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "archive.db")) {
		t.Errorf("ArchiveDBPath(test) = %q, want suffix sessions/test/archive.db", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test")
	if !strings.HasSuffix(got, filepath.Join("test", "logs", "chatlinkd.log")) {
		t.Errorf("LogPath(test) = %q", got)
	}
}
