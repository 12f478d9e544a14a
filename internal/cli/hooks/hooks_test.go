package hooks_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/fclaiba/PDFConvertor/internal/cli/hooks"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

type capturingProgram struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (p *capturingProgram) Send(msg tea.Msg) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

type capturingBar struct {
	mu     sync.Mutex
	added  int
	max    int
	closed bool
}

func (b *capturingBar) Add(num int) error {
	b.mu.Lock()
	b.added += num
	b.mu.Unlock()
	return nil
}

func (b *capturingBar) ChangeMax(max int) {
	b.mu.Lock()
	b.max = max
	b.mu.Unlock()
}

func (b *capturingBar) Describe(description string) {}

func (b *capturingBar) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCLIHooks_TUIMode(t *testing.T) {
	program := &capturingProgram{}
	h := hooks.NewCLIHooks(discardLogger(), true, false, program, nil)

	assert.NoError(t, h.OnFileDiscovered("/in/a.docx"))
	assert.NoError(t, h.OnFileStatusUpdate("/in/a.docx", converter.StatusConverting, "", 0))
	assert.NoError(t, h.OnFileStatusUpdate("/in/a.docx", converter.StatusSuccess, "", 120*time.Millisecond))
	assert.NoError(t, h.OnRunComplete(converter.Report{}))

	assert.Len(t, program.msgs, 4)
	assert.IsType(t, hooks.FileDiscoveredMsg{}, program.msgs[0])
	assert.IsType(t, hooks.FileStatusUpdateMsg{}, program.msgs[1])
	assert.IsType(t, hooks.RunCompleteMsg{}, program.msgs[3])

	update := program.msgs[2].(hooks.FileStatusUpdateMsg)
	assert.Equal(t, converter.StatusSuccess, update.Status)
	assert.Equal(t, 120*time.Millisecond, update.Duration)
}

func TestCLIHooks_ProgressBarMode(t *testing.T) {
	bar := &capturingBar{}
	h := hooks.NewCLIHooks(discardLogger(), false, false, nil, bar)

	// Discovery grows the bar's max; only final states advance it.
	for _, path := range []string{"/a.docx", "/b.docx", "/c.docx"} {
		assert.NoError(t, h.OnFileDiscovered(path))
	}
	assert.Equal(t, 3, bar.max)

	assert.NoError(t, h.OnFileStatusUpdate("/a.docx", converter.StatusConverting, "", 0))
	assert.Zero(t, bar.added, "intermediate states do not advance the bar")

	assert.NoError(t, h.OnFileStatusUpdate("/a.docx", converter.StatusSuccess, "", time.Second))
	assert.NoError(t, h.OnFileStatusUpdate("/b.docx", converter.StatusFailed, "boom", time.Second))
	assert.NoError(t, h.OnFileStatusUpdate("/c.docx", converter.StatusRejected, "too large", 0))
	assert.Equal(t, 3, bar.added)

	assert.NoError(t, h.OnRunComplete(converter.Report{}))
	assert.True(t, bar.closed)
}

func TestCLIHooks_PlainMode(t *testing.T) {
	h := hooks.NewCLIHooks(discardLogger(), false, true, nil, nil)

	assert.NoError(t, h.OnFileDiscovered("/a.docx"))
	assert.NoError(t, h.OnFileStatusUpdate("/a.docx", converter.StatusTimedOut, "budget exceeded", time.Minute))
	assert.NoError(t, h.OnRunComplete(converter.Report{}))
}

func TestCLIHooks_ConcurrentUpdates(t *testing.T) {
	bar := &capturingBar{}
	h := hooks.NewCLIHooks(discardLogger(), false, false, nil, bar)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.OnFileStatusUpdate("/x.docx", converter.StatusSuccess, "", time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, bar.added)
}
