package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"beamdrop/internal/utils"
)

// TransferMode selects the header of the live transfer view
type TransferMode int

const (
	ModeSend TransferMode = iota
	ModeReceive
)

// TransferUI drives the live multi-file progress display. The sender knows
// its batch upfront; the receiver adds rows as metas arrive.
type TransferUI struct {
	program    *tea.Program
	model      *liveTransferModel
	updateChan chan transferUpdate
	wg         sync.WaitGroup
}

type transferUpdate struct {
	addFile   bool
	name      string
	size      int64
	fileID    int
	current   int64
	completed bool
	failed    bool
	errMsg    string
}

type liveTransferModel struct {
	mode       TransferMode
	state      string
	files      []*liveFileProgress
	progBars   []progress.Model
	spinner    spinner.Model
	startTime  time.Time
	updateChan chan transferUpdate
	mu         sync.RWMutex
	quitting   bool
	cancelled  bool
	onCancel   func()
}

type liveFileProgress struct {
	name      string
	size      int64
	current   int64
	startTime time.Time
	complete  bool
	failed    bool
	errMsg    string
}

// NewTransferUI creates the live view. fileNames and fileSizes may be empty
// for the receive side.
func NewTransferUI(mode TransferMode, fileNames []string, fileSizes []int64) *TransferUI {
	updateChan := make(chan transferUpdate, 100)

	files := make([]*liveFileProgress, len(fileNames))
	progBars := make([]progress.Model, len(fileNames))
	for i := range fileNames {
		files[i] = &liveFileProgress{name: fileNames[i], size: fileSizes[i]}
		progBars[i] = newTransferBar()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	model := &liveTransferModel{
		mode:       mode,
		state:      "Waiting...",
		files:      files,
		progBars:   progBars,
		spinner:    s,
		updateChan: updateChan,
		startTime:  time.Now(),
	}

	return &TransferUI{
		model:      model,
		updateChan: updateChan,
	}
}

func newTransferBar() progress.Model {
	return progress.New(
		progress.WithGradient(ProgressStart, ProgressEnd),
		progress.WithWidth(25),
		progress.WithoutPercentage(),
	)
}

// Start runs the UI in a goroutine. Inline mode, no alt screen, so earlier
// terminal output stays visible.
func (ui *TransferUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		ui.program = tea.NewProgram(ui.model)
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// OnCancel registers a callback invoked when the user quits mid-transfer.
func (ui *TransferUI) OnCancel(f func()) {
	ui.model.mu.Lock()
	ui.model.onCancel = f
	ui.model.mu.Unlock()
}

// AddFile appends a new row for a file announced by the remote side.
func (ui *TransferUI) AddFile(name string, size int64) {
	ui.updateChan <- transferUpdate{addFile: true, name: name, size: size}
}

// UpdateProgress updates the progress for a specific file
func (ui *TransferUI) UpdateProgress(fileID int, current int64) {
	select {
	case ui.updateChan <- transferUpdate{fileID: fileID, current: current}:
	default:
	}
}

// MarkComplete marks a file as complete
func (ui *TransferUI) MarkComplete(fileID int) {
	ui.updateChan <- transferUpdate{fileID: fileID, completed: true}
}

// MarkFailed marks a file as failed
func (ui *TransferUI) MarkFailed(fileID int, errMsg string) {
	ui.updateChan <- transferUpdate{fileID: fileID, failed: true, errMsg: errMsg}
}

// SetState sets the status line above the file rows
func (ui *TransferUI) SetState(state string) {
	ui.model.mu.Lock()
	ui.model.state = state
	ui.model.mu.Unlock()
}

// Stop quits the UI and waits for the render loop to exit
func (ui *TransferUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

// TickMsg drives the periodic redraw
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *liveTransferModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates(), tickCmd())
}

func (m *liveTransferModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *liveTransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.mu.Lock()
			m.quitting = true
			m.cancelled = true
			onCancel := m.onCancel
			m.mu.Unlock()
			if onCancel != nil {
				onCancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		for i := range m.progBars {
			m.progBars[i].Width = min(25, msg.Width-60)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		if !m.quitting {
			cmds = append(cmds, tickCmd())
		}

	case transferUpdate:
		m.applyUpdate(msg)
		cmds = append(cmds, m.listenForUpdates())

	case progress.FrameMsg:
		for i := range m.progBars {
			model, cmd := m.progBars[i].Update(msg)
			m.progBars[i] = model.(progress.Model)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *liveTransferModel) applyUpdate(u transferUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.addFile {
		m.files = append(m.files, &liveFileProgress{name: u.name, size: u.size})
		m.progBars = append(m.progBars, newTransferBar())
		return
	}

	if u.fileID < 0 || u.fileID >= len(m.files) {
		return
	}
	file := m.files[u.fileID]
	switch {
	case u.completed:
		file.complete = true
		file.current = file.size
	case u.failed:
		file.failed = true
		file.errMsg = u.errMsg
	default:
		file.current = u.current
		if file.startTime.IsZero() {
			file.startTime = time.Now()
		}
	}
}

func (m *liveTransferModel) View() string {
	if m.quitting {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	modeIcon, modeText := IconSend, "Sending"
	if m.mode == ModeReceive {
		modeIcon, modeText = IconReceive, "Receiving"
	}
	b.WriteString(fmt.Sprintf("\n%s %s Files\n\n", modeIcon, modeText))

	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.state))

	var totalSize, totalDone int64
	for _, f := range m.files {
		totalSize += f.size
		totalDone += f.current
	}

	if totalSize > 0 {
		elapsed := time.Since(m.startTime).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(totalDone) / elapsed
		}
		b.WriteString(fmt.Sprintf("Overall: %.1f%% (%s/%s) %s\n\n",
			float64(totalDone)/float64(totalSize)*100,
			utils.FormatSize(totalDone),
			utils.FormatSize(totalSize),
			MutedStyle.Render(utils.FormatSpeed(speed)),
		))
	}

	for i, f := range m.files {
		b.WriteString(m.fileRow(i, f))
		b.WriteString("\n")
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to cancel"))

	return b.String()
}

func (m *liveTransferModel) fileRow(i int, f *liveFileProgress) string {
	var icon string
	var nameStyle lipgloss.Style

	switch {
	case f.failed:
		icon = IconError
		nameStyle = ErrorStyle
	case f.complete:
		icon = IconSuccess
		nameStyle = SuccessStyle
	case f.current > 0:
		icon = m.spinner.View()
		nameStyle = lipgloss.NewStyle()
	default:
		icon = "○"
		nameStyle = MutedStyle
	}

	var b strings.Builder
	name := utils.TruncateString(f.name, 22)
	b.WriteString(fmt.Sprintf("  %s %s ", icon, nameStyle.Width(24).Render(name)))

	if f.size > 0 {
		percent := float64(f.current) / float64(f.size)
		b.WriteString(m.progBars[i].ViewAs(percent))
		b.WriteString(fmt.Sprintf(" %5.1f%%", percent*100))
	}

	if !f.complete && !f.failed && f.current > 0 && !f.startTime.IsZero() {
		elapsed := time.Since(f.startTime).Seconds()
		if elapsed > 0 {
			speed := float64(f.current) / elapsed
			b.WriteString(MutedStyle.Render(" " + utils.FormatSpeed(speed)))
		}
	}

	b.WriteString(MutedStyle.Render(fmt.Sprintf(" (%s/%s)",
		utils.FormatSize(f.current), utils.FormatSize(f.size))))

	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
