// Package ui implements the interactive terminal view of a batch run: a
// scrollable file list with per-file status, a spinner and a live summary
// footer.
package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fclaiba/PDFConvertor/internal/cli/hooks"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

const listHeightMargin = 4

// Model is the Bubble Tea state for a batch run.
type Model struct {
	list        list.Model
	spinner     spinner.Model
	width       int
	height      int
	initialized bool

	// fileItems and itemMap are updated from hook messages; listLock guards
	// them because the engine's workers emit events concurrently.
	fileItems []listItem
	itemMap   map[string]int
	listLock  sync.Mutex

	summary      runSummary
	phaseMessage string
	version      string
	done         bool
	quitting     bool

	debounceTimer *time.Timer
}

type listItem struct {
	path     string
	status   converter.Status
	message  string
	duration time.Duration
}

type runSummary struct {
	Discovered int
	Succeeded  int
	Failed     int
	Rejected   int
	StartTime  time.Time
}

// NewModel creates the initial TUI model.
func NewModel(version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(colorSelectedDescFg).
		Background(colorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(colorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(colorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:         l,
		spinner:      s,
		summary:      runSummary{StartTime: time.Now()},
		phaseMessage: "Discovering...",
		version:      version,
		fileItems:    make([]listItem, 0, 256),
		itemMap:      make(map[string]int),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := max(m.height-listHeightMargin, 1)
		m.list.SetSize(m.width, listHeight)
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting || m.done {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.FileDiscoveredMsg:
		m.listLock.Lock()
		if _, exists := m.itemMap[msg.Path]; !exists {
			m.fileItems = append(m.fileItems, listItem{path: msg.Path, status: converter.StatusPending})
			m.itemMap[msg.Path] = len(m.fileItems) - 1
			m.summary.Discovered++
			cmds = append(cmds, m.debounceListUpdate())
		}
		m.listLock.Unlock()

	case hooks.FileStatusUpdateMsg:
		m.listLock.Lock()
		idx, ok := m.itemMap[msg.Path]
		if !ok {
			m.fileItems = append(m.fileItems, listItem{path: msg.Path})
			idx = len(m.fileItems) - 1
			m.itemMap[msg.Path] = idx
			m.summary.Discovered++
		}
		item := &m.fileItems[idx]
		if msg.Status.IsFinal() && !item.status.IsFinal() {
			m.countFinal(msg.Status)
		}
		item.status = msg.Status
		item.message = msg.Message
		item.duration = msg.Duration
		cmds = append(cmds, m.debounceListUpdate())
		m.listLock.Unlock()

		if !m.done && msg.Status == converter.StatusConverting && m.phaseMessage != "Converting..." {
			m.phaseMessage = "Converting..."
		}

	case hooks.RunCompleteMsg:
		m.done = true
		m.phaseMessage = "Complete"
		s := msg.Report.Summary
		m.summary.Discovered = s.TotalDiscovered
		m.summary.Succeeded = s.SucceededCount
		m.summary.Failed = s.FailedCount
		m.summary.Rejected = s.RejectedCount
		if s.Incomplete {
			m.phaseMessage = "Cancelled"
		}
		// The run is over; tear the TUI down so the CLI can print the
		// summary on a normal terminal.
		m.quitting = true
		return m, tea.Quit

	case updateListMsg:
		m.listLock.Lock()
		items := make([]list.Item, len(m.fileItems))
		for i, item := range m.fileItems {
			items[i] = item
		}
		m.listLock.Unlock()
		cmds = append(cmds, m.list.SetItems(items))
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.initialized {
		return "Initializing..."
	}

	headerLeft := fmt.Sprintf("pdfconvertor v%s", m.version)
	headerRight := m.phaseMessage
	if !m.done {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	headerGap := m.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	headerCenter := ""
	if headerGap > 0 {
		headerCenter = lipgloss.PlaceHorizontal(headerGap, lipgloss.Center, " ")
	}
	header := headerStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, headerLeft, headerCenter, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Second)
	footerLeft := fmt.Sprintf(
		"Converted: %d | Failed: %d | Rejected: %d | Discovered: %d | Elapsed: %s",
		m.summary.Succeeded,
		m.summary.Failed,
		m.summary.Rejected,
		m.summary.Discovered,
		elapsed,
	)
	footerRight := "q: quit"
	footerGap := m.width - lipgloss.Width(footerLeft) - lipgloss.Width(footerRight)
	footerCenter := ""
	if footerGap > 0 {
		footerCenter = lipgloss.PlaceHorizontal(footerGap, lipgloss.Center, " ")
	}
	footer := footerStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, footerLeft, footerCenter, footerRight))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), footer)
}

// countFinal updates the live counters for a file entering a final state.
// Called with listLock held.
func (m *Model) countFinal(status converter.Status) {
	switch status {
	case converter.StatusSuccess:
		m.summary.Succeeded++
	case converter.StatusFailed, converter.StatusTimedOut:
		m.summary.Failed++
	case converter.StatusRejected:
		m.summary.Rejected++
	}
}

// FilterValue implements list.Item.
func (i listItem) FilterValue() string { return i.path }

// Title implements list.Item.
func (i listItem) Title() string { return i.path }

// Description implements list.Item.
func (i listItem) Description() string {
	var style lipgloss.Style
	icon := " "
	switch i.status {
	case converter.StatusSuccess:
		style = statusStyleSuccess
		icon = "✓"
	case converter.StatusFailed:
		style = statusStyleFailed
		icon = "✗"
	case converter.StatusTimedOut:
		style = statusStyleFailed
		icon = "⏱"
	case converter.StatusRejected:
		style = statusStyleRejected
		icon = "R"
	case converter.StatusConverting:
		style = statusStyleConverting
		icon = "…"
	default:
		style = statusStylePending
	}

	details := ""
	switch i.status {
	case converter.StatusFailed, converter.StatusTimedOut, converter.StatusRejected:
		details = i.message
	case converter.StatusSuccess:
		if i.duration > 0 {
			details = formatDuration(i.duration)
		}
	}
	return fmt.Sprintf("%s %s", style.Render(fmt.Sprintf("[%s]", icon)), details)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

type updateListMsg struct{}

const listUpdateDebounce = 50 * time.Millisecond

// debounceListUpdate coalesces rapid status changes into one list refresh.
// Called with listLock held.
func (m *Model) debounceListUpdate() tea.Cmd {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.NewTimer(listUpdateDebounce)
	return func() tea.Msg {
		<-m.debounceTimer.C
		return updateListMsg{}
	}
}

const (
	colorHeaderFg = lipgloss.Color("252")
	colorHeaderBg = lipgloss.Color("25")

	colorFooterFg = lipgloss.Color("252")
	colorFooterBg = lipgloss.Color("24")

	colorNormalFg     = lipgloss.Color("250")
	colorNormalDescFg = lipgloss.Color("244")

	colorSelectedFg     = lipgloss.Color("255")
	colorSelectedBg     = lipgloss.Color("24")
	colorSelectedDescFg = lipgloss.Color("248")

	colorStatusSuccess    = lipgloss.Color("40")
	colorStatusFailed     = lipgloss.Color("196")
	colorStatusRejected   = lipgloss.Color("214")
	colorStatusPending    = lipgloss.Color("244")
	colorStatusConverting = lipgloss.Color("39")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHeaderFg).
			Background(colorHeaderBg).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorFooterFg).
			Background(colorFooterBg).
			Padding(0, 1)

	statusStyleSuccess    = lipgloss.NewStyle().Foreground(colorStatusSuccess)
	statusStyleFailed     = lipgloss.NewStyle().Foreground(colorStatusFailed)
	statusStyleRejected   = lipgloss.NewStyle().Foreground(colorStatusRejected)
	statusStylePending    = lipgloss.NewStyle().Foreground(colorStatusPending)
	statusStyleConverting = lipgloss.NewStyle().Foreground(colorStatusConverting)
)
