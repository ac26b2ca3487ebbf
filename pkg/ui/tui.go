package ui

import (
	"context"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/peerdrop/internal/app_events"
	"github.com/rescp17/peerdrop/internal/style"
	"github.com/rescp17/peerdrop/pkg/filePicker"
	"github.com/rescp17/peerdrop/pkg/progress"
)

// AppController is the part of peer.App the TUI talks to.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type Mode int

const (
	None Mode = iota
	Sender
	Receiver
)

func (m Mode) String() string {
	switch m {
	case Sender:
		return "sender"
	case Receiver:
		return "receiver"
	default:
		return "none"
	}
}

// appStoppedMsg is delivered when the App's Run returns.
type appStoppedMsg struct {
	err error
}

// uiClosedMsg is delivered when the App closed its message channel.
type uiClosedMsg struct{}

type model struct {
	mode   Mode
	app    AppController
	ctx    context.Context
	cancel context.CancelFunc

	spinner spinner.Model
	bar     progressbar.Model
	snap    progress.Snapshot

	sender   senderModel
	receiver receiverModel
	// picker is set while a sender started without a path chooses one.
	picker *filePicker.Model

	lastError error
	stopped   bool
}

// InitialModel builds the TUI for mode. path is the file to send in Sender
// mode; when empty the user picks one first.
func InitialModel(mode Mode, app AppController, path string) model {
	ctx, cancel := context.WithCancel(context.Background())
	m := model{
		mode:     mode,
		app:      app,
		ctx:      ctx,
		cancel:   cancel,
		spinner:  style.NewSpinner(),
		bar:      style.NewProgressBar(),
		snap:     progress.Snapshot{Status: progress.StatusWaiting},
		sender:   senderModel{path: path},
		receiver: receiverModel{},
	}
	if mode == Sender && path == "" {
		picker := filePicker.New("")
		m.picker = &picker
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.runApp(), m.listenForAppMessages()}
	if m.mode == Sender && m.picker == nil {
		cmds = append(cmds, m.initSender())
	}
	return tea.Batch(cmds...)
}

func (m model) runApp() tea.Cmd {
	return func() tea.Msg {
		return appStoppedMsg{err: m.app.Run(m.ctx)}
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.app.UIMessages()
		if !ok {
			return uiClosedMsg{}
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.picker != nil {
			if msg.String() == "ctrl+c" {
				m.cancel()
				return m, tea.Quit
			}
			picker, cmd := m.picker.Update(msg)
			m.picker = &picker
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancel()
			return m, tea.Quit
		case "r":
			if m.canRestart() {
				m.sender.sent = nil
				m.lastError = nil
				return m, m.restartSender()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		if m.picker != nil {
			picker, cmd := m.picker.Update(msg)
			m.picker = &picker
			return m, cmd
		}
		return m, nil
	case filePicker.FileChosenMsg:
		m.picker = nil
		m.sender.path = msg.Node.Path
		return m, m.initSender()
	case appStoppedMsg:
		m.stopped = true
		if msg.err != nil {
			m.lastError = msg.err
		}
		return m, nil
	case uiClosedMsg:
		return m, nil
	case progressbar.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progressbar.Model)
		return m, cmd
	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case appevents.SnapshotMsg:
		m.snap = msg.Snapshot
		cmd = m.bar.SetPercent(msg.Snapshot.Percent / 100)
	case appevents.AppErrorMsg:
		m.lastError = msg.Err
	default:
		switch m.mode {
		case Sender:
			m = m.updateSender(msg)
		case Receiver:
			m = m.updateReceiver(msg)
		}
	}

	// Every message from the App re-arms the listener.
	if _, ok := msg.(appevents.AppUIMessage); ok {
		cmd = tea.Batch(cmd, m.listenForAppMessages())
	}
	return m, cmd
}

func (m model) View() string {
	var s string
	s += style.TitleStyle.Render("peerdrop") + "\n\n"
	switch m.mode {
	case Sender:
		s += m.senderView()
	case Receiver:
		s += m.receiverView()
	default:
		return ""
	}
	if m.lastError != nil {
		s += "\n" + style.ErrorStyle.Render("Error: "+m.lastError.Error()) + "\n"
	}
	if m.picker != nil {
		s += "\n" + style.HelpStyle.Render("Press ctrl + c to quit")
	} else if m.canRestart() {
		s += "\n" + style.HelpStyle.Render("Press r to restart the connection, q or ctrl + c to quit")
	} else {
		s += "\n" + style.HelpStyle.Render("Press q or ctrl + c to quit")
	}
	return style.DocStyle.Render(s)
}

// statusLine renders the spinner while work is pending.
func (m model) statusLine() string {
	if m.snap.Complete || m.stopped {
		return style.StatusStyle.Render(m.snap.Status)
	}
	return m.spinner.View() + " " + style.StatusStyle.Render(m.snap.Status)
}
