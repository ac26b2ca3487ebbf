package filePicker

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rescp17/peerdrop/internal/style"
	"github.com/rescp17/peerdrop/internal/util"
	"github.com/rescp17/peerdrop/pkg/fileInfo"
)

// FileChosenMsg is emitted once the user picks a regular file.
type FileChosenMsg struct {
	Node fileInfo.FileNode
}

type mode int

const (
	modeBrowse mode = iota
	modeInput
)

const (
	nameWidth = 36
	sizeWidth = 12
	typeWidth = 28
)

type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	PageUp  key.Binding
	PageDn  key.Binding
	Parent  key.Binding
	Input   key.Binding
	Confirm key.Binding
	Back    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:  key.NewBinding(key.WithKeys("pgup", "left", "h"), key.WithHelp("←/h", "page up")),
	PageDn:  key.NewBinding(key.WithKeys("pgdown", "right", "l"), key.WithHelp("→/l", "page down")),
	Parent:  key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "parent dir")),
	Input:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "type a path")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/choose")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to list")),
}

// Model browses the filesystem and picks exactly one file to send.
type Model struct {
	dir    string
	items  []fs.DirEntry
	cursor int
	offset int
	height int

	keys  KeyMap
	mode  mode
	input textinput.Model
	err   error
}

// New opens the picker on dir, falling back to the working directory.
func New(dir string) Model {
	ti := textinput.New()
	ti.Placeholder = "path to a file or directory"
	ti.CharLimit = 256
	ti.Width = 60

	m := Model{keys: DefaultKeyMap, input: ti, mode: modeBrowse}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			slog.Warn("Could not get working directory", "error", err)
			wd = "."
		}
		dir = wd
	}
	if err := m.SetDir(dir); err != nil {
		m.err = err
		m.mode = modeInput
		m.input.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Dir returns the directory being browsed.
func (m Model) Dir() string { return m.dir }

// Typing reports whether keystrokes are going to the path input.
func (m Model) Typing() bool { return m.mode == modeInput }

// SetDir lists dir, directories first, then by name.
func (m *Model) SetDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return strings.ToLower(items[i].Name()) < strings.ToLower(items[j].Name())
	})
	m.dir = abs
	m.items = items
	m.cursor = 0
	m.offset = 0
	m.err = nil
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		if m.mode == modeInput {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	page := m.visibleItems()
	switch {
	case key.Matches(msg, m.keys.Input):
		m.mode = modeInput
		m.input.SetValue(m.dir + string(filepath.Separator))
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-page)
	case key.Matches(msg, m.keys.PageDn):
		m.moveCursor(page)
	case key.Matches(msg, m.keys.Parent):
		if err := m.SetDir(filepath.Dir(m.dir)); err != nil {
			m.err = err
		}
	case key.Matches(msg, m.keys.Confirm):
		if len(m.items) == 0 {
			return m, nil
		}
		return m.open(filepath.Join(m.dir, m.items[m.cursor].Name()))
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		path := strings.TrimSpace(m.input.Value())
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		next, cmd := m.open(path)
		if next.err == nil {
			next.mode = modeBrowse
			next.input.Blur()
			next.input.Reset()
		}
		return next, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// open descends into a directory or chooses a file.
func (m Model) open(path string) (Model, tea.Cmd) {
	info, err := os.Stat(path)
	if err != nil {
		m.err = fmt.Errorf("path does not exist: %s", path)
		return m, nil
	}
	if info.IsDir() {
		if err := m.SetDir(path); err != nil {
			m.err = err
		}
		return m, nil
	}
	node, err := fileInfo.CreateNode(path)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	return m, func() tea.Msg { return FileChosenMsg{Node: node} }
}

func (m *Model) moveCursor(delta int) {
	if len(m.items) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	page := m.visibleItems()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}

func (m Model) visibleItems() int {
	const chrome = 10
	if m.height-chrome < 1 {
		return 15
	}
	return m.height - chrome
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(style.LabelStyle.Render("Choose a file to send") + "\n")
	if m.mode == modeInput {
		s.WriteString(m.input.View() + "\n")
	} else {
		s.WriteString(style.StatusStyle.Render(m.dir) + "\n")
	}
	if m.err != nil {
		s.WriteString(style.ErrorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n")

	s.WriteString("  " + style.HeaderStyle.Render(
		util.PadRight("Name", nameWidth)+" "+util.PadRight("Size", sizeWidth)+" "+util.PadRight("Type", typeWidth)) + "\n")

	if len(m.items) == 0 {
		s.WriteString(style.LabelStyle.Render("  (empty directory)") + "\n")
	}
	end := min(m.offset+m.visibleItems(), len(m.items))
	for i := m.offset; i < end; i++ {
		s.WriteString(m.row(i) + "\n")
	}
	if len(m.items) > m.visibleItems() {
		s.WriteString(style.LabelStyle.Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.items))) + "\n")
	}

	s.WriteString("\n" + m.helpView())
	return s.String()
}

func (m Model) row(i int) string {
	item := m.items[i]
	prefix := "  "
	if i == m.cursor {
		prefix = style.CursorStyle.String()
	}

	name := item.Name()
	size, kind := "", ""
	if item.IsDir() {
		name += "/"
		size = "<DIR>"
	} else {
		if info, err := item.Info(); err == nil {
			size = util.FormatSize(info.Size())
		}
		if mime, err := mimetype.DetectFile(filepath.Join(m.dir, item.Name())); err == nil {
			kind = mime.String()
		}
	}

	nameCell := util.PadRight(name, nameWidth)
	if item.IsDir() {
		nameCell = style.DirStyle.Render(nameCell)
	}
	return prefix + nameCell + " " + util.PadRight(size, sizeWidth) + " " + util.PadRight(kind, typeWidth)
}

func (m Model) helpView() string {
	bindings := []key.Binding{m.keys.Confirm, m.keys.Parent, m.keys.Input, m.keys.PageDn}
	if m.mode == modeInput {
		bindings = []key.Binding{m.keys.Confirm, m.keys.Back}
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return style.HelpStyle.Render(strings.Join(parts, " • "))
}
