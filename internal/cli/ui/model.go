package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/johnsonice/ILA/internal/cli/hooks"
	"github.com/johnsonice/ILA/pkg/merger"
)

const listHeightMargin = 4 // Space reserved for the header and footer rows

// Model represents the state of the TUI application. It holds the UI
// components (list, spinner), layout dimensions, run phase, aggregated summary
// statistics, and the file groups being merged.
type Model struct {
	list        list.Model
	spinner     spinner.Model
	width       int
	height      int
	initialized bool
	// groupItems holds the internal data for each list row.
	// Access MUST be protected by listLock.
	groupItems []listItem
	summary    Summary
	// phaseMessage displays the current overall stage (Scanning, Merging, Complete).
	phaseMessage string
	fatalError   string
	quitting     bool
	// mergeStart maps patterns to merge start times for duration display.
	mergeStart map[string]time.Time
	// itemMap maps patterns to their index in groupItems.
	// Access MUST be protected by listLock.
	itemMap       map[string]int
	listLock      sync.Mutex
	debounceTimer *time.Timer
}

// listItem represents a single file group in the TUI list.
type listItem struct {
	pattern  string
	files    int
	status   merger.Status
	message  string
	duration time.Duration
}

// Summary holds the aggregated statistics displayed in the TUI footer.
type Summary struct {
	TotalGroups int
	MergedCount int
	EmptyCount  int
	FailedCount int
	RecordCount int
	StartTime   time.Time
}

// Init initializes the TUI model and starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages (user input, hook events) and updates the
// model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var listCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - listHeightMargin
		if listHeight < 1 {
			listHeight = 1
		}
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
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.GroupDiscoveredMsg:
		m.listLock.Lock()
		if _, exists := m.itemMap[msg.Pattern]; !exists {
			newItem := listItem{pattern: msg.Pattern, files: len(msg.Files), status: merger.StatusPending}
			m.groupItems = append(m.groupItems, newItem)
			m.itemMap[msg.Pattern] = len(m.groupItems) - 1
			m.summary.TotalGroups++
			cmds = append(cmds, m.debounceListUpdate())
		}
		m.listLock.Unlock()
		if !m.quitting && (m.phaseMessage == "" || m.phaseMessage == "Initializing...") {
			m.phaseMessage = "Scanning..."
		}

	case hooks.GroupStatusUpdateMsg:
		m.listLock.Lock()
		if idx, ok := m.itemMap[msg.Pattern]; ok && idx < len(m.groupItems) {
			currentItem := &m.groupItems[idx]

			if isFinalStatus(msg.Status) && currentItem.status == merger.StatusMerging {
				if startTime, found := m.mergeStart[msg.Pattern]; found {
					currentItem.duration = time.Since(startTime)
					delete(m.mergeStart, msg.Pattern)
				}
			} else if msg.Status == merger.StatusMerging {
				m.mergeStart[msg.Pattern] = time.Now()
				currentItem.duration = 0
			}

			oldStatusIsFinal := isFinalStatus(currentItem.status)
			newStatusIsFinal := isFinalStatus(msg.Status)
			if newStatusIsFinal && !oldStatusIsFinal {
				m.incrementSummaryCount(msg.Status)
			} else if !newStatusIsFinal && oldStatusIsFinal {
				m.decrementSummaryCount(currentItem.status)
			}

			currentItem.status = msg.Status
			currentItem.message = msg.Message
			cmds = append(cmds, m.debounceListUpdate())
		} else {
			// Status update for an unseen group (discovery msg missed or delayed).
			newItem := listItem{pattern: msg.Pattern, status: msg.Status, message: msg.Message, duration: msg.Duration}
			m.groupItems = append(m.groupItems, newItem)
			m.itemMap[msg.Pattern] = len(m.groupItems) - 1
			m.summary.TotalGroups++
			if isFinalStatus(msg.Status) {
				m.incrementSummaryCount(msg.Status)
			}
			cmds = append(cmds, m.debounceListUpdate())
		}
		m.listLock.Unlock()

		if !m.quitting && m.phaseMessage != "Merging..." && msg.Status == merger.StatusMerging {
			m.phaseMessage = "Merging..."
		}

	case hooks.RunCompleteMsg:
		m.phaseMessage = "Complete"
		m.summary.MergedCount = msg.Report.Summary.MergedCount
		m.summary.EmptyCount = msg.Report.Summary.EmptyCount
		m.summary.FailedCount = msg.Report.Summary.FailedCount
		m.summary.RecordCount = msg.Report.Summary.RecordCount
		if len(msg.Report.Errors) > 0 && msg.Report.Summary.MergedCount == 0 && msg.Report.Summary.EmptyCount == 0 {
			first := msg.Report.Errors[0]
			m.fatalError = fmt.Sprintf("Run failed: %s (%s)", first.Error, first.Pattern)
		}

	case UpdateListMsg:
		m.listLock.Lock()
		items := make([]list.Item, len(m.groupItems))
		for i, item := range m.groupItems {
			items[i] = item
		}
		m.listLock.Unlock()
		cmds = append(cmds, m.list.SetItems(items))
	}

	if listCmd != nil {
		cmds = append(cmds, listCmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the current state of the TUI model.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	// The bar styles carry horizontal padding, so the content row must be
	// composed to the width left over after padding or lipgloss wraps it.
	contentWidth := m.width - HeaderStyle.GetHorizontalPadding()

	headerLeft := "ILA Merge"
	headerRight := m.phaseMessage
	if m.phaseMessage != "Complete" && m.phaseMessage != "Initializing..." {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	headerCenter := ""
	headerWidth := contentWidth - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerWidth > 0 {
		headerCenter = lipgloss.PlaceHorizontal(headerWidth, lipgloss.Center, " ")
	}
	header := HeaderStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, headerLeft, headerCenter, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	summaryText := fmt.Sprintf(
		"Merged: %d (%d records) | Empty: %d | Failed: %d | Groups: %d | Elapsed: %s",
		m.summary.MergedCount,
		m.summary.RecordCount,
		m.summary.EmptyCount,
		m.summary.FailedCount,
		m.summary.TotalGroups,
		elapsed,
	)
	footerLeft := summaryText
	footerRight := "q: quit"
	footerWidth := contentWidth - lipgloss.Width(footerLeft) - lipgloss.Width(footerRight)
	footerCenter := ""
	if footerWidth > 0 {
		footerCenter = lipgloss.PlaceHorizontal(footerWidth, lipgloss.Center, " ")
	}
	footer := FooterStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, footerLeft, footerCenter, footerRight))

	listView := m.list.View()

	errorView := ""
	if m.fatalError != "" {
		errorView = StatusStyleFailed.Render(m.fatalError) + "\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		listView,
		errorView,
		footer,
	)
}

// NewModel creates the initial model for the TUI.
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

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
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: "Initializing...",
		groupItems:   make([]listItem, 0, 256),
		itemMap:      make(map[string]int),
		mergeStart:   make(map[string]time.Time),
	}
}

// isFinalStatus checks if a status represents a terminal state for a group.
func isFinalStatus(status merger.Status) bool {
	return status == merger.StatusSuccess ||
		status == merger.StatusFailed ||
		status == merger.StatusEmpty
}

// incrementSummaryCount updates summary counts for a new final status.
// MUST be called with listLock held.
func (m *Model) incrementSummaryCount(status merger.Status) {
	switch status {
	case merger.StatusSuccess:
		m.summary.MergedCount++
	case merger.StatusEmpty:
		m.summary.EmptyCount++
	case merger.StatusFailed:
		m.summary.FailedCount++
	}
}

// decrementSummaryCount reverses count updates if a status moves away from final.
// MUST be called with listLock held.
func (m *Model) decrementSummaryCount(status merger.Status) {
	switch status {
	case merger.StatusSuccess:
		m.summary.MergedCount--
	case merger.StatusEmpty:
		m.summary.EmptyCount--
	case merger.StatusFailed:
		m.summary.FailedCount--
	}
}

// FilterValue implements the list.Item interface.
func (i listItem) FilterValue() string { return i.pattern }

// Title implements the list.Item interface.
func (i listItem) Title() string {
	if i.files > 0 {
		return fmt.Sprintf("%s (%d files)", i.pattern, i.files)
	}
	return i.pattern
}

// Description implements the list.Item interface.
func (i listItem) Description() string {
	var statusStyle lipgloss.Style
	statusIcon := " "
	switch i.status {
	case merger.StatusSuccess:
		statusStyle = StatusStyleSuccess
		statusIcon = "✓"
	case merger.StatusFailed:
		statusStyle = StatusStyleFailed
		statusIcon = "✗"
	case merger.StatusEmpty:
		statusStyle = StatusStyleEmpty
		statusIcon = "∅"
	case merger.StatusMerging:
		statusStyle = StatusStyleMerging
		statusIcon = "…"
	case merger.StatusPending:
		fallthrough
	default:
		statusStyle = StatusStylePending
		statusIcon = " "
	}

	statusStr := statusStyle.Render(fmt.Sprintf("[%s]", statusIcon))
	details := ""

	if i.status == merger.StatusFailed {
		details = i.message
	} else if i.status == merger.StatusEmpty {
		parts := strings.SplitN(i.message, ":", 2)
		if len(parts) > 0 {
			details = strings.TrimSpace(parts[0])
		} else {
			details = i.message
		}
	} else if i.status == merger.StatusSuccess {
		if i.duration > 0 {
			details = formatDuration(i.duration)
		}
	}
	return fmt.Sprintf("%s %s", statusStr, details)
}

// formatDuration formats a merge duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		if d == 0 {
			return ""
		}
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// UpdateListMsg signals that the list component should refresh its items.
type UpdateListMsg struct{}

const listUpdateDebounceDuration = 50 * time.Millisecond

// debounceListUpdate coalesces rapid status changes into list refreshes.
// MUST be called with listLock held.
func (m *Model) debounceListUpdate() tea.Cmd {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.NewTimer(listUpdateDebounceDuration)
	return func() tea.Msg {
		<-m.debounceTimer.C
		return UpdateListMsg{}
	}
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSuccess = lipgloss.Color("40")
	ColorStatusFailed  = lipgloss.Color("196")
	ColorStatusEmpty   = lipgloss.Color("214")
	ColorStatusPending = lipgloss.Color("244")
	ColorStatusMerging = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSuccess = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed  = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleEmpty   = lipgloss.NewStyle().Foreground(ColorStatusEmpty)
	StatusStylePending = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleMerging = lipgloss.NewStyle().Foreground(ColorStatusMerging)
)
