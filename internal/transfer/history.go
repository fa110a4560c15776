package transfer

// history keeps the most recent terminal snapshots. Not safe for concurrent
// use; the orchestrator guards it.
type history struct {
	buf  []Snapshot
	next int
	full bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = 1
	}
	return &history{buf: make([]Snapshot, size)}
}

func (h *history) add(s Snapshot) {
	h.buf[h.next] = s
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// find returns the newest snapshot with the given id.
func (h *history) find(id string) (Snapshot, bool) {
	n := h.next
	if h.full {
		n = len(h.buf)
	}
	for i := 1; i <= n; i++ {
		s := h.buf[(h.next-i+len(h.buf))%len(h.buf)]
		if s.ID == id {
			return s, true
		}
	}
	return Snapshot{}, false
}
