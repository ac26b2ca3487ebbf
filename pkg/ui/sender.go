package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/peerdrop/internal/app_events"
	senderEvent "github.com/rescp17/peerdrop/internal/app_events/sender"
	"github.com/rescp17/peerdrop/internal/style"
	"github.com/rescp17/peerdrop/internal/util"
)

type senderModel struct {
	path string
	sent *senderEvent.FileSentMsg
}

// initSender starts the handshake and queues the file.
func (m model) initSender() tea.Cmd {
	events := m.app.AppEvents()
	path := m.sender.path
	return func() tea.Msg {
		events <- appevents.InitiateEvent{}
		events <- senderEvent.SendFileEvent{Path: path}
		return nil
	}
}

// restartSender drops the current handshake and starts a new one for the
// same file.
func (m model) restartSender() tea.Cmd {
	events := m.app.AppEvents()
	start := m.initSender()
	return func() tea.Msg {
		events <- appevents.CloseEvent{}
		return start()
	}
}

// canRestart reports whether a sender that has a file but no open channel
// may start the handshake over.
func (m model) canRestart() bool {
	return m.mode == Sender && m.picker == nil && m.sender.path != "" && !m.snap.Connected && !m.stopped
}

func (m model) updateSender(msg tea.Msg) model {
	if sent, ok := msg.(senderEvent.FileSentMsg); ok {
		m.sender.sent = &sent
	}
	return m
}

func (m model) senderView() string {
	if m.picker != nil {
		return m.picker.View() + "\n"
	}
	s := fmt.Sprintf("%s %s\n\n", style.LabelStyle.Render("Sending"), m.sender.path)
	s += m.statusLine() + "\n"
	if m.snap.TotalSize > 0 || m.snap.InProgress {
		s += "\n" + m.bar.View() + "\n"
		s += style.LabelStyle.Render(fmt.Sprintf("%s / %s",
			util.FormatSize(m.snap.BytesTransferred), util.FormatSize(m.snap.TotalSize))) + "\n"
	}
	if m.sender.sent != nil {
		s += "\n" + style.SuccessStyle.Render(fmt.Sprintf("%s (%s) delivered.",
			m.sender.sent.Name, util.FormatSize(m.sender.sent.Size))) + "\n"
	}
	return s
}
