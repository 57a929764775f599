package enqueue

import (
	"path"
	"strings"
	"time"

	"github.com/transferd/transferd/pkg/types"
)

// Filter is one composable predicate over a candidate file Entry
// (§4.6: "filters (composable predicates over {name, extension, ctime,
// mtime, size})"). A file matches the pipeline only when every Filter
// in the set returns true; the set itself is ANDed by Pipeline.Run.
type Filter func(entry types.Entry) bool

// NameContains matches entries whose base name contains substr
// (case-sensitive, matching the teacher's plain string filters).
func NameContains(substr string) Filter {
	return func(e types.Entry) bool {
		return strings.Contains(path.Base(e.Adapter.Root()), substr)
	}
}

// ExtensionIn matches entries whose extension (including the leading
// dot, e.g. ".txt") is one of exts.
func ExtensionIn(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return func(e types.Entry) bool {
		_, ok := set[path.Ext(e.Adapter.Root())]
		return ok
	}
}

// SizeAtLeast matches entries whose Size is >= min bytes.
func SizeAtLeast(min int64) Filter {
	return func(e types.Entry) bool { return e.Size >= min }
}

// SizeAtMost matches entries whose Size is <= max bytes.
func SizeAtMost(max int64) Filter {
	return func(e types.Entry) bool { return e.Size <= max }
}

// ModifiedAfter matches entries whose ModTime is after t.
func ModifiedAfter(t time.Time) Filter {
	return func(e types.Entry) bool { return e.ModTime.After(t) }
}

// ModifiedBefore matches entries whose ModTime is before t.
func ModifiedBefore(t time.Time) Filter {
	return func(e types.Entry) bool { return e.ModTime.Before(t) }
}

// ChangedAfter matches entries whose adapter-reported Ctime is after t.
// Ctime is not carried on Entry itself (only Listdir/Walk's ModTime is),
// so this filter re-queries the adapter's cached value.
func ChangedAfter(t time.Time) Filter {
	return func(e types.Entry) bool { return e.Adapter.Ctime().After(t) }
}

// matchAll reports whether entry satisfies every filter (AND
// composition). An empty filter set matches everything.
func matchAll(filters []Filter, entry types.Entry) bool {
	for _, f := range filters {
		if !f(entry) {
			return false
		}
	}
	return true
}
