package editor

import (
	"strings"
	"sync"

	"github.com/adrianfalk/rga"
)

// BufferEditor is a minimal in-memory Editor backed by a rune slice. It
// is both the reconciliation layer's test double and the demo terminal
// editor cmd/client drives: real terminal I/O sits on top of the same
// Value/Insert/Remove/SetValue surface.
//
// Change notifications are scheduled on queue rather than called
// synchronously, modeling the asynchronous delivery §4.5 assumes of any
// real editor widget.
type BufferEditor struct {
	mu      sync.Mutex
	text    []rune
	handler ChangeHandler
	queue   rga.Queue
}

// NewBufferEditor returns an empty BufferEditor that schedules its change
// notifications on queue.
func NewBufferEditor(queue rga.Queue) *BufferEditor {
	return &BufferEditor{queue: queue}
}

func (b *BufferEditor) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *BufferEditor) SetValue(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = []rune(s)
	b.notifyLocked()
}

func (b *BufferEditor) Insert(pos rga.Position, s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := indexForPosition(b.text, pos)
	b.text = append(b.text[:idx:idx], append([]rune(s), b.text[idx:]...)...)
	b.notifyLocked()
}

func (b *BufferEditor) Remove(r Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := indexForPosition(b.text, r.Start)
	end := indexForPosition(b.text, r.End)
	b.text = append(b.text[:start:start], b.text[end:]...)
	b.notifyLocked()
}

func (b *BufferEditor) LineLength(row int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(string(b.text), "\n")
	if row < 0 || row >= len(lines) {
		return 0
	}
	return len([]rune(lines[row]))
}

func (b *BufferEditor) OnChange(h ChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *BufferEditor) OffChange() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
}

func (b *BufferEditor) notifyLocked() {
	if b.handler == nil {
		return
	}
	h := b.handler
	b.queue.Schedule(func() { h() })
}

// indexForPosition converts a row/column coordinate into a rune offset
// into text, counting newlines as row breaks exactly as rga.Advance
// does. A position past the end of text clamps to len(text).
func indexForPosition(text []rune, pos rga.Position) int {
	row, col := 0, 0
	for i, ch := range text {
		if row == pos.Row && col == pos.Col {
			return i
		}
		if ch == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return len(text)
}
