package session

import "github.com/hupe1980/collabmesh/core"

// DefaultActivityCapacity is the number of activity entries retained.
const DefaultActivityCapacity = 50

// activityLog is a fixed-capacity ring; the oldest entry is overwritten
// once full. Not safe for concurrent use; guarded by the store mutex.
type activityLog struct {
	buf   []core.ActivityEntry
	head  int // index of the newest entry
	count int
}

func newActivityLog(capacity int) *activityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &activityLog{buf: make([]core.ActivityEntry, capacity)}
}

func (l *activityLog) push(e core.ActivityEntry) {
	l.head = (l.head - 1 + len(l.buf)) % len(l.buf)
	l.buf[l.head] = e
	if l.count < len(l.buf) {
		l.count++
	}
}

// list returns the entries newest first.
func (l *activityLog) list() []core.ActivityEntry {
	out := make([]core.ActivityEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}
