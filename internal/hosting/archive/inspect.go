package archive

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports everything wrong with an archive at once: every
// marker that was not found, and, when markers were found at disagreeing
// locations, the candidate roots.
type ValidationError struct {
	Missing   []string
	Conflicts []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required files: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Conflicts) > 0 {
		parts = append(parts, fmt.Sprintf("markers found under disagreeing roots: %s", strings.Join(quoteAll(e.Conflicts), ", ")))
	}
	if len(parts) == 0 {
		return "invalid archive"
	}
	return strings.Join(parts, "; ")
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// FindRoot locates the entry root: the path prefix under which every marker
// file lives. Entries under __MACOSX/ are ignored. All markers must resolve
// to exactly one shared root or validation fails; a marker present at more
// than one depth is a conflict, not a silent pick.
func FindRoot(a *Archive, markers []string) (string, error) {
	if len(markers) == 0 {
		return "", nil
	}

	var missing []string
	rootSets := make([]map[string]bool, 0, len(markers))
	for _, marker := range markers {
		roots := map[string]bool{}
		for _, e := range a.entries {
			if e.Dir || strings.HasPrefix(e.Path, resourceForkPrefix) {
				continue
			}
			if e.Path == marker {
				roots[""] = true
			} else if strings.HasSuffix(e.Path, "/"+marker) {
				roots[e.Path[:len(e.Path)-len(marker)]] = true
			}
		}
		if len(roots) == 0 {
			missing = append(missing, marker)
			continue
		}
		rootSets = append(rootSets, roots)
	}
	if len(missing) > 0 {
		return "", &ValidationError{Missing: missing}
	}

	shared := rootSets[0]
	for _, roots := range rootSets[1:] {
		next := map[string]bool{}
		for r := range shared {
			if roots[r] {
				next[r] = true
			}
		}
		shared = next
	}

	if len(shared) == 1 {
		for r := range shared {
			return r, nil
		}
	}

	all := map[string]bool{}
	for _, roots := range rootSets {
		for r := range roots {
			all[r] = true
		}
	}
	conflicts := make([]string, 0, len(all))
	for r := range all {
		conflicts = append(conflicts, r)
	}
	sort.Strings(conflicts)
	return "", &ValidationError{Conflicts: conflicts}
}
