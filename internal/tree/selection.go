package tree

import "sort"

// SelectionSet holds the paths explicitly marked selected by the user. It is
// the source of truth for selection: the per-entry tri-state values are a
// derived cache over this set and the current tree shape, so a path keeps its
// mark while its entry is removed and restored.
type SelectionSet struct {
	members map[string]struct{}
}

// NewSelectionSet returns an empty selection set.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{members: make(map[string]struct{})}
}

// Contains reports whether path carries an explicit selection mark.
func (set *SelectionSet) Contains(path string) bool {
	_, exists := set.members[path]
	return exists
}

// Add marks path as explicitly selected.
func (set *SelectionSet) Add(path string) {
	set.members[path] = struct{}{}
}

// Remove clears the explicit mark of path.
func (set *SelectionSet) Remove(path string) {
	delete(set.members, path)
}

// Replace swaps the entire membership for the provided paths.
func (set *SelectionSet) Replace(paths []string) {
	set.members = make(map[string]struct{}, len(paths))
	for _, path := range paths {
		set.members[path] = struct{}{}
	}
}

// Size returns the number of explicitly selected paths.
func (set *SelectionSet) Size() int {
	return len(set.members)
}

// SortedPaths returns the members in lexicographic order. Every iteration in
// the engine goes through this accessor so downstream work stays deterministic.
func (set *SelectionSet) SortedPaths() []string {
	paths := make([]string, 0, len(set.members))
	for path := range set.members {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
