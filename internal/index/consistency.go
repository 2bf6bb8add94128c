package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/store"
)

// InconsistencyType categorizes a disagreement between manifest and store.
type InconsistencyType int

const (
	// InconsistencyOrphanSource is a store source with no manifest entry.
	InconsistencyOrphanSource InconsistencyType = iota
	// InconsistencyMissingSource is a manifest entry with no chunks in the store.
	InconsistencyMissingSource
	// InconsistencyChunkGap is a source whose chunk indices are not 0..n-1.
	InconsistencyChunkGap
	// InconsistencyBadID is a store ID that does not parse as a chunk identity.
	InconsistencyBadID
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanSource:
		return "orphan_source"
	case InconsistencyMissingSource:
		return "missing_source"
	case InconsistencyChunkGap:
		return "chunk_gap"
	case InconsistencyBadID:
		return "bad_id"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	Path    string
	Details string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Sources         int
	Chunks          int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issues were found.
func (r *CheckResult) Consistent() bool { return len(r.Inconsistencies) == 0 }

// Healthy is Consistent, except that manifest entries without chunks are
// accepted: empty documents legitimately have none.
func (r *CheckResult) Healthy() bool {
	for _, issue := range r.Inconsistencies {
		if issue.Type != InconsistencyMissingSource {
			return false
		}
	}
	return true
}

// Strings renders each issue as "type: path".
func (r *CheckResult) Strings() []string {
	out := make([]string, 0, len(r.Inconsistencies))
	for _, issue := range r.Inconsistencies {
		out = append(out, issue.Type.String()+": "+issue.Path)
	}
	return out
}

// ConsistencyChecker verifies that the store holds exactly the chunks of the
// documents recorded in the manifest.
type ConsistencyChecker struct {
	manifest ManifestStore
	store    store.Collection
}

// NewConsistencyChecker creates a checker.
func NewConsistencyChecker(m ManifestStore, c store.Collection) *ConsistencyChecker {
	return &ConsistencyChecker{manifest: m, store: c}
}

// Check compares manifest paths with the sources derived from store IDs.
// Empty documents legitimately have a manifest entry and no chunks, so a
// missing source is reported but Repair leaves it alone.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	m, err := c.manifest.Load()
	if err != nil {
		return nil, err
	}
	ids, err := c.store.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	indices := make(map[string][]int)
	for _, id := range ids {
		path, idx, err := chunk.ParseID(id)
		if err != nil {
			issues = append(issues, Inconsistency{Type: InconsistencyBadID, Path: id, Details: err.Error()})
			continue
		}
		indices[path] = append(indices[path], idx)
	}

	sources := make([]string, 0, len(indices))
	for path := range indices {
		sources = append(sources, path)
	}
	sort.Strings(sources)

	for _, path := range sources {
		if _, ok := m[path]; !ok {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanSource,
				Path:    path,
				Details: "store has chunks for a path the manifest does not list",
			})
			continue
		}
		idx := indices[path]
		sort.Ints(idx)
		for want, got := range idx {
			if got != want {
				issues = append(issues, Inconsistency{
					Type:    InconsistencyChunkGap,
					Path:    path,
					Details: "chunk indices are not contiguous from 0",
				})
				break
			}
		}
	}
	for _, path := range m.Paths() {
		if _, ok := indices[path]; !ok {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingSource,
				Path:    path,
				Details: "manifest lists a path with no chunks in the store",
			})
		}
	}

	return &CheckResult{
		Sources:         len(sources),
		Chunks:          len(ids),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphan sources from the store. Gaps and missing sources
// need their documents re-applied, which `index --update` does once their
// manifest entries are dropped; Repair drops those entries and saves.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var stale []string
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanSource:
			n, err := c.store.DeleteBySource(ctx, issue.Path)
			if err != nil {
				return err
			}
			slog.Info("orphan_source_deleted", slog.String("path", issue.Path), slog.Int("chunks", n))
		case InconsistencyChunkGap:
			stale = append(stale, issue.Path)
		case InconsistencyBadID:
			if err := c.store.DeleteByIDs(ctx, []string{issue.Path}); err != nil {
				return err
			}
		}
	}
	if len(stale) == 0 {
		return nil
	}

	m, err := c.manifest.Load()
	if err != nil {
		return err
	}
	next := m.Clone()
	for _, path := range stale {
		delete(next, path)
	}
	if err := c.manifest.Save(next); err != nil {
		return err
	}
	slog.Info("manifest_entries_invalidated", slog.Int("count", len(stale)))
	return nil
}
