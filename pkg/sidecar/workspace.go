package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// coreWorkspaceFiles are the seed documents every workspace carries. The
// agent daemon reads them at boot; an empty placeholder is enough to let it
// start.
var coreWorkspaceFiles = []string{
	"AGENTS.md",
	"BOOTSTRAP.md",
	"HEARTBEAT.md",
	"IDENTITY.md",
	"MEMORY.md",
	"SOUL.md",
	"TOOLS.md",
	"USER.md",
}

// coreWorkspaceDirs are the directories the gateway and the daemons write
// into.
var coreWorkspaceDirs = []string{
	"cron",
	"memory",
	"sessions",
	"skills",
	"state",
}

// WorkspaceSkeletonMissing reports whether any seed file or directory is
// absent from dir.
func WorkspaceSkeletonMissing(dir string) bool {
	for _, name := range coreWorkspaceFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return true
		}
	}
	for _, name := range coreWorkspaceDirs {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return true
		}
	}
	return false
}

// RepairWorkspaceSkeleton creates the missing parts of the skeleton. Existing
// files are never touched, so a repaired workspace keeps its content.
func RepairWorkspaceSkeleton(dir string) error {
	for _, name := range coreWorkspaceDirs {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(full, 0o755); err != nil {
			return fmt.Errorf("create workspace dir %s: %w", full, err)
		}
	}
	for _, name := range coreWorkspaceFiles {
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err == nil {
			continue
		}
		placeholder := fmt.Sprintf("# %s\n", strings.TrimSuffix(name, ".md"))
		if err := os.WriteFile(full, []byte(placeholder), 0o644); err != nil {
			return fmt.Errorf("create workspace file %s: %w", full, err)
		}
	}
	return nil
}

// workspaceEffectivelyEmpty reports whether dir has no entries worth keeping.
// Finder droppings do not count as content.
func workspaceEffectivelyEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Name() == ".DS_Store" {
			continue
		}
		return false, nil
	}
	return true, nil
}
