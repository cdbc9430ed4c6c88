// Package watch turns raw filesystem notifications into debounced change
// batches. Events landing within one debounce window coalesce per path, the
// batch is delivered ordered by path, and a kernel-side overflow degrades the
// whole window to a single resync event for the watch root.
package watch

import (
	"sort"

	"github.com/fsnotify/fsnotify"
)

// EventKind names the change a batch entry asks the consumer to apply.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
	// EventResync tells the consumer that individual events were lost and the
	// subtree at Path must be re-enumerated.
	EventResync EventKind = "resync"
)

// Event is one coalesced change. Paths use forward slashes.
type Event struct {
	Path string
	Kind EventKind
}

// Batch is the set of changes observed within one debounce window, ordered
// by path. A batch holds at most one event per path.
type Batch struct {
	Events []Event
}

// classifyOp maps an fsnotify operation onto an event kind. A rename reports
// the old path, which vanishes from the consumer's point of view; the new
// path arrives as its own create notification. Chmod-only operations carry no
// content change and are dropped.
func classifyOp(operation fsnotify.Op) (EventKind, bool) {
	switch {
	case operation.Has(fsnotify.Create):
		return EventCreated, true
	case operation.Has(fsnotify.Write):
		return EventModified, true
	case operation.Has(fsnotify.Remove), operation.Has(fsnotify.Rename):
		return EventRemoved, true
	default:
		return "", false
	}
}

// mergeEventKinds collapses two observations of the same path within one
// window into the single kind the consumer must apply. A creation that is
// removed again within the window nets out to nothing and is dropped; a
// removal followed by a creation is the atomic-replace idiom editors use and
// degrades to a modification.
func mergeEventKinds(previous EventKind, next EventKind) (EventKind, bool) {
	switch {
	case previous == EventCreated && next == EventRemoved:
		return "", false
	case previous == EventCreated && next == EventModified:
		return EventCreated, true
	case previous == EventRemoved && next == EventCreated:
		return EventModified, true
	default:
		return next, true
	}
}

// buildBatch assembles the deliverable batch for one expired window. Overflow
// supersedes every pending event: the consumer must resync anyway, so partial
// knowledge would only be applied twice.
func buildBatch(rootPath string, pending map[string]EventKind, overflow bool) (Batch, bool) {
	if overflow {
		return Batch{Events: []Event{{Path: rootPath, Kind: EventResync}}}, true
	}
	if len(pending) == 0 {
		return Batch{}, false
	}
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	events := make([]Event, 0, len(paths))
	for _, path := range paths {
		events = append(events, Event{Path: path, Kind: pending[path]})
	}
	return Batch{Events: events}, true
}
