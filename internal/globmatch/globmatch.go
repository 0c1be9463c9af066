// Package globmatch matches FUSE-relative paths against shell glob patterns,
// the filter axis the injector chain uses alongside method sets.
package globmatch

import (
	"path"
	"strings"
)

// Match reports whether pattern matches p, both slash-separated and rooted
// at the mount point. A pattern containing "/" is matched against the whole
// of p, each wildcard staying within one path segment (so "/dir/*" matches
// "/dir/file" but not "/dir/sub/file"). A pattern without "/" is matched
// against the last element of p only, so "*" matches every path below the
// root. A malformed pattern never matches rather than erroring; the
// configuration loader does not check patterns with Valid, so a rule with
// a malformed pattern loads without error and never fires.
func Match(pattern, p string) bool {
	if !strings.Contains(pattern, "/") {
		p = path.Base(p)
	}
	ok, err := path.Match(pattern, p)
	if err != nil {
		return false
	}
	return ok
}

// Valid reports whether pattern is a syntactically valid glob, for use at
// configuration-parse time.
func Valid(pattern string) bool {
	_, err := path.Match(pattern, "")
	return err == nil
}
