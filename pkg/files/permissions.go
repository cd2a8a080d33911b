package files

import "strings"

// ancestorPaths returns the ordered ancestor paths of a slash-delimited
// path, root first, excluding the path itself. Empty segments are discarded:
//
//	ancestorPaths("/a/b/c") == ["/a", "/a/b"]
func ancestorPaths(path string) []string {
	segments := make([]string, 0)
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return nil
	}

	ancestors := make([]string, 0, len(segments)-1)
	current := ""
	for _, s := range segments[:len(segments)-1] {
		current += "/" + s
		ancestors = append(ancestors, current)
	}
	return ancestors
}

// normalizePath rebuilds a path from its non-empty segments, ensuring a
// single leading slash and no trailing slash.
func normalizePath(path string) string {
	var b strings.Builder
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			b.WriteString("/")
			b.WriteString(s)
		}
	}
	return b.String()
}

// grantsPermission is the single predicate shared by the live ancestor walk
// and the eager fan-out, so the two mechanisms cannot diverge.
func grantsPermission(e *Entry, action Action) bool {
	if e == nil {
		return false
	}
	switch action {
	case ActionEdit:
		return e.UserCanEdit
	case ActionDelete:
		return e.UserCanDelete
	default:
		return false
	}
}

// permittedAt decides whether action may be performed at path, given every
// record in the scope. Any ancestor granting the flag allows the action;
// ancestor order is only an early exit. If no ancestor grants it, the target
// record itself (edit/delete of an existing entry) is consulted last.
func permittedAt(records []*Entry, path string, action Action, target *Entry) bool {
	byName := make(map[string]*Entry, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	for _, ancestor := range ancestorPaths(path) {
		if grantsPermission(byName[ancestor], action) {
			return true
		}
	}

	return grantsPermission(target, action)
}
