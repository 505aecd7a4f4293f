// Package feed maintains per-recipient notification lists. Each list is fed
// by two independent producers: realtime change-feed events and a periodic
// full refetch used when realtime delivery is not trusted. A local revision
// counter reconciles the two so a poll snapshot never clobbers a newer
// realtime update.
package feed

import (
	"sort"
	"sync"

	"github.com/campusbites/campus-bites/models"
)

// Feed is one recipient's notification list, ordered newest-first.
type Feed struct {
	mu      sync.Mutex
	entries []entry
	rev     uint64
}

type entry struct {
	notif models.Notification
	rev   uint64
}

func New() *Feed {
	return &Feed{}
}

// Seed loads the initial backlog (newest-first).
func (f *Feed) Seed(backlog []models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = make([]entry, 0, len(backlog))
	for _, n := range backlog {
		f.rev++
		f.entries = append(f.entries, entry{notif: n, rev: f.rev})
	}
	f.sortLocked()
}

// Revision returns the current local revision counter. Callers snapshot it
// before a poll fetch and pass it to Refresh afterwards.
func (f *Feed) Revision() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev
}

// ApplyInsert prepends a realtime insert. An already-known ID is treated as a
// patch instead.
func (f *Feed) ApplyInsert(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i := f.indexLocked(n.ID); i >= 0 {
		f.patchLocked(i, n)
		return
	}
	f.rev++
	f.entries = append([]entry{{notif: n, rev: f.rev}}, f.entries...)
	f.sortLocked()
}

// ApplyUpdate patches a row in place by identifier. Unknown IDs are inserted,
// which covers an update event racing ahead of the backlog fetch.
func (f *Feed) ApplyUpdate(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i := f.indexLocked(n.ID); i >= 0 {
		f.patchLocked(i, n)
		return
	}
	f.rev++
	f.entries = append([]entry{{notif: n, rev: f.rev}}, f.entries...)
	f.sortLocked()
}

// Refresh replaces the list with a poll snapshot, except that entries touched
// since sinceRev (i.e. by realtime events that landed mid-poll) win over
// their snapshot counterparts, and touched entries missing from the snapshot
// are kept.
func (f *Feed) Refresh(sinceRev uint64, snapshot []models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	newer := make(map[uint]entry)
	for _, e := range f.entries {
		if e.rev > sinceRev {
			newer[e.notif.ID] = e
		}
	}

	entries := make([]entry, 0, len(snapshot)+len(newer))
	seen := make(map[uint]bool, len(snapshot))
	for _, n := range snapshot {
		seen[n.ID] = true
		if e, ok := newer[n.ID]; ok {
			// Monotonic read flag survives a stale snapshot row.
			if n.Read && !e.notif.Read {
				e.notif.Read = true
			}
			entries = append(entries, e)
			continue
		}
		f.rev++
		entries = append(entries, entry{notif: n, rev: f.rev})
	}
	for id, e := range newer {
		if !seen[id] {
			entries = append(entries, e)
		}
	}

	f.entries = entries
	f.sortLocked()
}

// MarkRead sets the read flag on one notification. Marking an already-read
// notification is a no-op: flag and position are unchanged. Returns whether
// the notification exists.
func (f *Feed) MarkRead(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexLocked(id)
	if i < 0 {
		return false
	}
	if f.entries[i].notif.Read {
		return true
	}
	f.rev++
	f.entries[i].notif.Read = true
	f.entries[i].rev = f.rev
	return true
}

// List returns a newest-first copy of the notifications.
func (f *Feed) List() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Notification, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.notif
	}
	return out
}

// UnreadCount returns how many notifications are still unread.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.entries {
		if !e.notif.Read {
			count++
		}
	}
	return count
}

func (f *Feed) indexLocked(id uint) int {
	for i, e := range f.entries {
		if e.notif.ID == id {
			return i
		}
	}
	return -1
}

// patchLocked overwrites entry i with n, preserving read-flag monotonicity.
func (f *Feed) patchLocked(i int, n models.Notification) {
	if f.entries[i].notif.Read {
		n.Read = true
	}
	f.rev++
	f.entries[i].notif = n
	f.entries[i].rev = f.rev
}

// sortLocked keeps newest-first ordering by creation time, breaking ties on
// the higher ID.
func (f *Feed) sortLocked() {
	sort.SliceStable(f.entries, func(a, b int) bool {
		ta, tb := f.entries[a].notif.CreatedAt, f.entries[b].notif.CreatedAt
		if ta.Equal(tb) {
			return f.entries[a].notif.ID > f.entries[b].notif.ID
		}
		return ta.After(tb)
	})
}
