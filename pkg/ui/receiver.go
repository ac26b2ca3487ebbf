package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	receiverEvent "github.com/rescp17/peerdrop/internal/app_events/receiver"
	"github.com/rescp17/peerdrop/internal/style"
	"github.com/rescp17/peerdrop/internal/util"
)

// nameColumn is the display width of file names in the received list.
const nameColumn = 32

type receiverModel struct {
	saved []receiverEvent.FileSavedMsg
}

func (m model) updateReceiver(msg tea.Msg) model {
	if saved, ok := msg.(receiverEvent.FileSavedMsg); ok {
		m.receiver.saved = append(m.receiver.saved, saved)
	}
	return m
}

func (m model) receiverView() string {
	s := m.statusLine() + "\n"
	if m.snap.InProgress {
		s += "\n" + style.LabelStyle.Render(m.snap.FileName) + "\n"
		s += m.bar.View() + "\n"
		s += style.LabelStyle.Render(fmt.Sprintf("%s / %s",
			util.FormatSize(m.snap.BytesTransferred), util.FormatSize(m.snap.TotalSize))) + "\n"
	}
	if len(m.receiver.saved) > 0 {
		var rows string
		for _, f := range m.receiver.saved {
			row := fmt.Sprintf("%s %10s  %s", util.PadRight(f.Name, nameColumn), util.FormatSize(f.Size), f.Path)
			if f.Checksum != "" {
				row += "  " + style.SuccessStyle.Render("verified")
			}
			rows += row + "\n"
		}
		s += "\n" + style.BoxStyle.Render(rows) + "\n"
	}
	return s
}
