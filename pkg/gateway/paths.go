package gateway

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// textPathRoots are the workspace directories the library text endpoints may
// read and write. Everything else is off limits regardless of auth.
var textPathRoots = []string{"journals", "memory", "state", "posts", "outputs", "artifacts"}

// SafeFileName keeps [A-Za-z0-9._-], replaces everything else with '_',
// trims leading/trailing underscores, and caps the result at 128 characters.
// An empty result falls back to "upload.bin".
func SafeFileName(name string) string {
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '_', ch == '-':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "upload.bin"
	}
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}

// InferMediaKind maps a Content-Type to the media kind directory.
func InferMediaKind(contentType string) string {
	lower := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(lower, "audio/"):
		return "audio"
	case strings.HasPrefix(lower, "video/"):
		return "video"
	case strings.HasPrefix(lower, "image/"):
		return "image"
	default:
		return "file"
	}
}

// MediaStorageRelPath builds the workspace-relative destination for an upload:
// journals/media/<kind>/YYYY/MM/DD/HHMMSS_<safeName>.
func MediaStorageRelPath(kind, originalName string, now time.Time) string {
	kindDir := "files"
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "audio":
		kindDir = "audio"
	case "video":
		kindDir = "video"
	case "image":
		kindDir = "image"
	}
	now = now.UTC()
	return fmt.Sprintf("journals/media/%s/%04d/%02d/%02d/%s_%s",
		kindDir, now.Year(), now.Month(), now.Day(),
		now.Format("150405"), SafeFileName(originalName))
}

// TextJournalRelPath builds the workspace-relative destination for a text
// journal note: journals/text/YYYY/MM/DD/HHMMSS_<stem>.md.
func TextJournalRelPath(title string, now time.Time) string {
	stem := strings.TrimRight(SafeFileName(title), ".")
	if stem == "" || stem == "upload.bin" {
		stem = "journal"
	}
	now = now.UTC()
	return fmt.Sprintf("journals/text/%04d/%02d/%02d/%s_%s.md",
		now.Year(), now.Month(), now.Day(), now.Format("150405"), stem)
}

// ResolveMediaPath maps a requested media path to an absolute file path, or
// "" when the path escapes the sandbox. The file must already exist; its
// canonicalized location must sit under <workspace>/journals. Symlinks that
// point outside the workspace fail closed.
func ResolveMediaPath(workspaceDir, requested string) string {
	trimmed := strings.TrimLeft(requested, "/")
	if trimmed == "" {
		return ""
	}
	wsReal := canonical(workspaceDir)
	resolved, err := filepath.EvalSymlinks(filepath.Join(workspaceDir, filepath.FromSlash(trimmed)))
	if err != nil {
		return ""
	}
	if !isDescendant(wsReal, resolved) {
		return ""
	}
	if !isDescendant(filepath.Join(wsReal, "journals"), resolved) {
		return ""
	}
	return resolved
}

// ResolveTextPath maps a requested library text path to an absolute file path
// for reading or writing, or "" when the path escapes the sandbox. The file
// itself may not exist yet (save creates it), so the check canonicalizes the
// parent directory and requires it to sit under one of the allowed workspace
// roots.
func ResolveTextPath(workspaceDir, requested string) string {
	trimmed := strings.TrimLeft(requested, "/")
	if trimmed == "" {
		return ""
	}
	candidate := filepath.Join(workspaceDir, filepath.FromSlash(trimmed))
	wsReal := canonical(workspaceDir)

	parent := filepath.Dir(candidate)
	parentReal, err := filepath.EvalSymlinks(parent)
	if err != nil {
		// The directory tree may not exist yet; fall back to the lexical
		// parent, which Join has already cleaned of ".." segments.
		parentReal = parent
	}
	if !isDescendant(wsReal, parentReal) && !isDescendant(workspaceDir, parentReal) {
		return ""
	}

	rel, err := filepath.Rel(workspaceDir, candidate)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	for _, root := range textPathRoots {
		if first == root {
			return candidate
		}
	}
	return ""
}

// canonical resolves symlinks in a directory path, falling back to the input
// when it does not exist yet.
func canonical(dir string) string {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return real
	}
	return dir
}

// isDescendant reports whether path is root or sits below it.
func isDescendant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
