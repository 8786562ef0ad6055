package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/config"
)

func TestInitUsesConfiguredDirectory(t *testing.T) {
	root := t.TempDir()
	log, err := Init(root, config.LoggingConfig{Directory: "portal-logs", MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("session sweep complete")
	log.Sync()

	entries, err := os.ReadDir(filepath.Join(root, "portal-logs"))
	if err != nil {
		t.Fatalf("configured log directory missing: %v", err)
	}
	var foundInfo bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "-info.log") {
			foundInfo = true
		}
	}
	if !foundInfo {
		t.Errorf("no per-level info file in configured directory; got %v", entries)
	}
}

func TestInitFallsBackToDefaults(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, config.LoggingConfig{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "logs")); err != nil {
		t.Errorf("default log directory not created: %v", err)
	}
}
