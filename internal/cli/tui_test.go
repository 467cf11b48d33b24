package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/appmap/pkg/config"
)

func pickerRows() []streamRow {
	return []streamRow{
		{Entry: config.StreamEntry{Name: "sp", DisplayName: "Sales Platform"}, Apps: 2, Found: true},
		{Entry: config.StreamEntry{Name: "gone"}},
		{Entry: config.StreamEntry{Name: "mi"}, Apps: 1, Found: true},
	}
}

func press(m StreamListModel, keys ...string) (StreamListModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(StreamListModel)
	}
	return m, cmd
}

func TestStreamListModelSelect(t *testing.T) {
	m, cmd := press(NewStreamListModel(pickerRows()), "j", "j", "enter")
	if m.Selected != "mi" {
		t.Errorf("Selected = %q, want mi", m.Selected)
	}
	if cmd == nil {
		t.Error("selecting should quit the program")
	}
}

func TestStreamListModelSkipsMissing(t *testing.T) {
	m, cmd := press(NewStreamListModel(pickerRows()), "j", "enter")
	if m.Selected != "" || cmd != nil {
		t.Errorf("a stream missing from the catalog must not be selectable, got %q", m.Selected)
	}
}

func TestStreamListModelBounds(t *testing.T) {
	m, _ := press(NewStreamListModel(pickerRows()), "k", "j", "j", "j", "j")
	if m.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2", m.Cursor)
	}
}

func TestStreamListModelView(t *testing.T) {
	view := NewStreamListModel(pickerRows()).View()
	for _, want := range []string{"Select Stream", "Sales Platform", "gone", "[1/3]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
