package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"beamdrop/internal/signaling"
)

// LobbyMode selects what choosing means in the lobby
type LobbyMode int

const (
	// PickDevice: the sender chooses a target device to invite.
	PickDevice LobbyMode = iota

	// WaitForTransfer: the receiver idles in the lobby until an invite
	// arrives or a pairing code is typed.
	WaitForTransfer
)

// DevicesMsg replaces the visible device list. Sent from the store listener
// via Program.Send.
type DevicesMsg []signaling.Device

// InviteMsg announces an incoming transfer invitation.
type InviteMsg struct {
	RoomID string
}

// LobbyResult is what the lobby resolved to when the program quit.
type LobbyResult struct {
	Device    *signaling.Device
	RoomID    string
	Cancelled bool
}

// LobbyModel is the device directory screen: live device list, a code entry
// field, and (in receive mode) the invite mailbox.
type LobbyModel struct {
	mode    LobbyMode
	self    string
	devices []signaling.Device
	cursor  int
	input   textinput.Model
	spinner spinner.Model

	result LobbyResult
	done   bool
}

// NewLobbyModel creates the lobby screen for this device name.
func NewLobbyModel(mode LobbyMode, selfName string) *LobbyModel {
	ti := textinput.New()
	ti.Placeholder = "6-digit code"
	ti.CharLimit = 6
	ti.Width = 12
	if mode == WaitForTransfer {
		ti.Focus()
	}

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	return &LobbyModel{
		mode:    mode,
		self:    selfName,
		input:   ti,
		spinner: s,
	}
}

// Result returns the lobby outcome after the program has quit.
func (m *LobbyModel) Result() LobbyResult {
	return m.result
}

func (m *LobbyModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m *LobbyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.result = LobbyResult{Cancelled: true}
			m.done = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "j":
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}
			return m, nil

		case "enter":
			return m.handleEnter()
		}

	case DevicesMsg:
		m.devices = msg
		if m.cursor >= len(m.devices) {
			m.cursor = max(0, len(m.devices)-1)
		}
		return m, nil

	case InviteMsg:
		if m.mode == WaitForTransfer {
			m.result = LobbyResult{RoomID: msg.RoomID}
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.mode == WaitForTransfer {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *LobbyModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.mode {
	case PickDevice:
		if m.cursor < len(m.devices) {
			dev := m.devices[m.cursor]
			m.result = LobbyResult{Device: &dev}
			m.done = true
			return m, tea.Quit
		}

	case WaitForTransfer:
		code := strings.TrimSpace(m.input.Value())
		if len(code) == 6 {
			m.result = LobbyResult{RoomID: code}
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *LobbyModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Beamdrop Lobby", IconDevice)))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("This device: "+m.self) + "\n\n")

	if len(m.devices) == 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(),
			MutedStyle.Render("Looking for other devices...")))
	} else {
		b.WriteString(BoldStyle.Render("Devices online") + "\n")
		for i, dev := range m.devices {
			cursor := "  "
			style := MutedStyle
			if m.mode == PickDevice && i == m.cursor {
				cursor = SelectedStyle.Render("> ")
				style = SelectedStyle
			}
			b.WriteString(fmt.Sprintf("%s%s %s\n", cursor, IconDevice, style.Render(dev.Name)))
		}
	}

	b.WriteString("\n")
	switch m.mode {
	case PickDevice:
		b.WriteString(MutedStyle.Render("↑/↓ select · enter invite · esc cancel"))
	case WaitForTransfer:
		b.WriteString(fmt.Sprintf("%s Waiting for an invite, or enter a code: %s\n",
			m.spinner.View(), m.input.View()))
		b.WriteString(MutedStyle.Render("enter join · esc quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
