package notification

// List is a most-recent-first feed capped at MaxItems. It is not safe for
// concurrent use; the owning session serializes access.
type List struct {
	items []Notification
}

// Prepend inserts n at the head, replacing any entry with the same non-zero
// id, and drops whatever falls past the cap.
func (l *List) Prepend(n Notification) {
	out := make([]Notification, 0, min(len(l.items)+1, MaxItems))
	out = append(out, n)
	for _, existing := range l.items {
		if len(out) == MaxItems {
			break
		}
		if n.ID != 0 && existing.ID == n.ID {
			continue
		}
		out = append(out, existing)
	}
	l.items = out
}

// Replace swaps the feed for a freshly fetched page.
func (l *List) Replace(items []Notification) {
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	l.items = append([]Notification(nil), items...)
}

// MarkRead flips the read flag for id. It reports whether id was present.
func (l *List) MarkRead(id int64) bool {
	if id == 0 {
		return false
	}
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flips every read flag.
func (l *List) MarkAllRead() {
	for i := range l.items {
		l.items[i].Read = true
	}
}

// UnreadCount counts entries not yet read.
func (l *List) UnreadCount() int {
	n := 0
	for _, item := range l.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Items returns a copy of the feed.
func (l *List) Items() []Notification {
	return append([]Notification(nil), l.items...)
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.items) }

// Clear empties the feed.
func (l *List) Clear() { l.items = nil }
