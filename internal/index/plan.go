package index

import (
	"sort"
	"strings"

	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
)

// Plan classifies documents against the manifest. All lists are sorted.
type Plan struct {
	// Added are paths absent from the manifest.
	Added []string
	// Updated are paths whose digest changed.
	Updated []string
	// Removed are manifest paths no longer present.
	Removed   []string
	Unchanged []string
	// Skipped are manifest paths that are missing from current only because
	// they, or a directory above them, could not be read.
	Skipped []string
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Added)+len(p.Updated)+len(p.Removed) == 0
}

// Diff compares the manifest with the current digests. unreadable lists
// document or directory keys that failed to load; manifest entries at or
// below them are Skipped rather than Removed.
func Diff(old manifest.Manifest, current map[string]string, unreadable []string) Plan {
	var p Plan
	for path, digest := range current {
		prev, ok := old[path]
		switch {
		case !ok:
			p.Added = append(p.Added, path)
		case prev != digest:
			p.Updated = append(p.Updated, path)
		default:
			p.Unchanged = append(p.Unchanged, path)
		}
	}
	for path := range old {
		if _, ok := current[path]; ok {
			continue
		}
		if covered(path, unreadable) {
			p.Skipped = append(p.Skipped, path)
			continue
		}
		p.Removed = append(p.Removed, path)
	}

	for _, list := range [][]string{p.Added, p.Updated, p.Removed, p.Unchanged, p.Skipped} {
		sort.Strings(list)
	}
	return p
}

func covered(path string, unreadable []string) bool {
	for _, u := range unreadable {
		if u == loader.RootPath || u == path || strings.HasPrefix(path, u+"/") {
			return true
		}
	}
	return false
}
