package sshserver

import "sync"

// maxLineRunes caps a single input line; further keystrokes are ignored.
const maxLineRunes = 1024

// lineBuffer holds the line being typed. The reader edits it while output
// redraws read it, so access is locked.
type lineBuffer struct {
	mu    sync.RWMutex
	data  []rune
	limit int
}

func newLineBuffer(capacity int) *lineBuffer {
	if capacity <= 0 {
		capacity = 128
	}
	return &lineBuffer{
		data:  make([]rune, 0, capacity),
		limit: maxLineRunes,
	}
}

// Append adds r and reports false when the line is already at its limit.
func (b *lineBuffer) Append(r rune) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) >= b.limit {
		return false
	}
	b.data = append(b.data, r)
	return true
}

func (b *lineBuffer) TrimLast() {
	b.mu.Lock()
	if n := len(b.data); n > 0 {
		b.data = b.data[:n-1]
	}
	b.mu.Unlock()
}

func (b *lineBuffer) Reset() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

// Drain returns the pending line and empties the buffer.
func (b *lineBuffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	text := string(b.data)
	b.data = b.data[:0]
	return text
}

func (b *lineBuffer) Snapshot() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.data)
}
