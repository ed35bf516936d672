package chat

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"venturechat/cmd/vchat/ui"
	"venturechat/internal/forum"
)

// roomItem is a list item for the room picker
type roomItem struct {
	room forum.Room
}

func (i roomItem) Title() string {
	if i.room.Name != "" {
		return i.room.Name
	}
	return string(i.room.ID)
}

func (i roomItem) Description() string {
	return fmt.Sprintf("[%s]", i.room.ID)
}

func (i roomItem) FilterValue() string {
	return i.room.Name + " " + string(i.room.ID)
}

type pickerModel struct {
	list   list.Model
	styles ui.Styles
	choice *forum.Room
}

func newPickerModel(rooms []forum.Room, styles ui.Styles) pickerModel {
	items := make([]list.Item, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, roomItem{room: r})
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = styles.RoomListFocused
	delegate.Styles.SelectedDesc = styles.Muted

	l := list.New(items, delegate, 0, 0)
	l.Title = "Conversations"
	l.Styles.Title = styles.Title
	l.SetShowStatusBar(false)

	return pickerModel{list: l, styles: styles}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if item, ok := m.list.SelectedItem().(roomItem); ok {
				room := item.room
				m.choice = &room
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return m.styles.Content.Render(m.list.View())
}

// PickRoom shows the room list full-screen and returns the chosen room.
// ok is false when the user backed out.
func PickRoom(rooms []forum.Room, styles ui.Styles) (forum.Room, bool, error) {
	p := tea.NewProgram(newPickerModel(rooms, styles), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return forum.Room{}, false, err
	}
	m, ok := final.(pickerModel)
	if !ok || m.choice == nil {
		return forum.Room{}, false, nil
	}
	return *m.choice, true, nil
}
