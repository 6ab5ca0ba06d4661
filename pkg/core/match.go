package core

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Matcher decides whether an entry directory falls inside an anchor directory.
type Matcher struct {
	// CaseInsensitive folds case before comparing, for filesystems such as
	// the macOS and Windows defaults.
	CaseInsensitive bool
}

// HostMatcher returns a Matcher following the host filesystem convention.
func HostMatcher() Matcher {
	return Matcher{CaseInsensitive: HostCaseInsensitive()}
}

// HostCaseInsensitive reports whether paths on this platform are usually
// compared without regard to case.
func HostCaseInsensitive() bool {
	switch runtime.GOOS {
	case "darwin", "ios", "windows":
		return true
	default:
		return false
	}
}

// NormalizeDir resolves "." and ".." elements and strips trailing separators.
func NormalizeDir(dir string) string {
	return filepath.Clean(dir)
}

// Match reports whether dir is the anchor (ScopeExact) or the anchor or one
// of its descendants (ScopeRecursive). Comparison is segment-wise, so
// "/home/alice2" is never under "/home/alice".
func (m Matcher) Match(dir, anchor string, scope Scope) bool {
	dir = m.fold(NormalizeDir(dir))
	anchor = m.fold(NormalizeDir(anchor))

	if dir == anchor {
		return true
	}
	if scope != ScopeRecursive {
		return false
	}

	prefix := anchor
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(dir, prefix)
}

func (m Matcher) fold(p string) string {
	if m.CaseInsensitive {
		return strings.ToLower(p)
	}
	return p
}

func isAbs(p string) bool {
	return filepath.IsAbs(p)
}
