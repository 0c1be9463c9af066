// Package pathenc derives the encoded-sibling path that the mount
// orchestrator renames the backing directory to while injection is active.
package pathenc

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
)

// Sibling returns the deterministic sibling path for original, a directory
// inside the target's mount namespace. The result sits next to original
// (same parent) with a suffix derived from the FNV-64a hash of the original
// absolute path, so two different originals collide only by hash accident
// and any single original always encodes to the same sibling.
func Sibling(original string) string {
	dir, base := filepath.Split(filepath.Clean(original))
	h := fnv.New64a()
	// Write never returns an error for an in-memory hash.
	_, _ = h.Write([]byte(filepath.Clean(original)))
	return filepath.Join(dir, fmt.Sprintf("%s.fi-%016x", base, h.Sum64()))
}
