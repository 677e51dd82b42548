package widgets

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

const (
	GlyphBusy    = "⏳"
	GlyphSuccess = "✔️"
	GlyphFailure = "❌"
)

// Sink renders widget state.  Implementations may assume calls arrive
// from a single goroutine; wrap them in a UILoop to guarantee it.
type Sink interface {
	ShowBusy(widgetID string)
	ShowResult(widgetID string, glyph string)
	ShowIdle(widgetID string, name string)
}

// WriterSink prints one line per update
type WriterSink struct {
	w io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) ShowBusy(widgetID string) {
	fmt.Fprintf(s.w, "%s: %s\n", widgetID, GlyphBusy)
}

func (s *WriterSink) ShowResult(widgetID string, glyph string) {
	fmt.Fprintf(s.w, "%s: %s\n", widgetID, glyph)
}

func (s *WriterSink) ShowIdle(widgetID string, name string) {
	fmt.Fprintf(s.w, "%s: %s\n", widgetID, name)
}

// Board keeps the text each widget currently shows
type Board struct {
	mu    sync.RWMutex
	shown map[string]string
}

func NewBoard() *Board {
	return &Board{shown: map[string]string{}}
}

func (b *Board) set(widgetID string, text string) {
	b.mu.Lock()
	b.shown[widgetID] = text
	b.mu.Unlock()
}

func (b *Board) ShowBusy(widgetID string) {
	b.set(widgetID, GlyphBusy)
}

func (b *Board) ShowResult(widgetID string, glyph string) {
	b.set(widgetID, glyph)
}

func (b *Board) ShowIdle(widgetID string, name string) {
	b.set(widgetID, name)
}

// Shown returns the current text of a widget
func (b *Board) Shown(widgetID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	text, ok := b.shown[widgetID]
	return text, ok
}

func (b *Board) Forget(widgetID string) {
	b.mu.Lock()
	delete(b.shown, widgetID)
	b.mu.Unlock()
}

// WidgetIDs lists widgets that have shown anything, sorted
func (b *Board) WidgetIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.shown))
	for id := range b.shown {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UILoop funnels every Sink call onto one goroutine, in submission order
type UILoop struct {
	sink Sink
	work chan func()
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ Sink = (*UILoop)(nil)

func NewUILoop(sink Sink) *UILoop {
	l := &UILoop{
		sink: sink,
		work: make(chan func(), 64),
		done: make(chan struct{}),
	}

	go l.run()
	return l
}

func (l *UILoop) run() {
	defer close(l.done)
	for fn := range l.work {
		fn()
	}
}

func (l *UILoop) post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		logging.Logger(nil).Warn("widget update after UI loop closed, dropping")
		return
	}
	l.work <- fn
}

func (l *UILoop) ShowBusy(widgetID string) {
	l.post(func() { l.sink.ShowBusy(widgetID) })
}

func (l *UILoop) ShowResult(widgetID string, glyph string) {
	l.post(func() { l.sink.ShowResult(widgetID, glyph) })
}

func (l *UILoop) ShowIdle(widgetID string, name string) {
	l.post(func() { l.sink.ShowIdle(widgetID, name) })
}

// Close runs the queued updates and stops the loop
func (l *UILoop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.work)
	}
	l.mu.Unlock()

	<-l.done
}
