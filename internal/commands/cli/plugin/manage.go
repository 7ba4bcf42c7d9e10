package plugin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// pageSize is the number of rows shown at once.
const pageSize = 15

type pluginRow struct {
	name          string
	kind          string
	fileTypes     string
	enabled       bool
	initial       bool
	canBeDisabled bool
}

type manageModel struct {
	rows      []pluginRow
	cursor    int
	offset    int
	message   string
	done      bool
	cancelled bool
}

// newManageModel creates the TUI model listing every plugin with its state.
func newManageModel(r *plugins.Registry) manageModel {
	var rows []pluginRow
	for _, p := range r.InitializedPlugins() {
		m := p.Meta()
		enabled := !r.IsPluginDisabled(p)
		rows = append(rows, pluginRow{
			name:          m.Name,
			kind:          p.Kind().String(),
			fileTypes:     strings.Join(m.FileTypes, ","),
			enabled:       enabled,
			initial:       enabled,
			canBeDisabled: m.CanBeDisabled,
		})
	}
	slices.SortStableFunc(rows, func(a, b pluginRow) int {
		return strings.Compare(a.kind, b.kind)
	})

	return manageModel{rows: rows}
}

// Init initializes the model.
func (m manageModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses.
func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	m.message = ""
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.cancelled = true

		return m, tea.Quit
	case "enter":
		m.done = true

		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case " ", "x":
		m.toggle()
	}

	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+pageSize {
		m.offset = m.cursor - pageSize + 1
	}

	return m, nil
}

// toggle flips the row under the cursor unless the plugin must stay enabled.
func (m *manageModel) toggle() {
	if len(m.rows) == 0 {
		return
	}
	row := &m.rows[m.cursor]
	if row.enabled && !row.canBeDisabled {
		m.message = row.name + " cannot be disabled"
		return
	}
	row.enabled = !row.enabled
}

// changes returns the rows whose state differs from the start, keyed by name.
func (m manageModel) changes() map[string]bool {
	out := make(map[string]bool)
	for _, r := range m.rows {
		if r.enabled != r.initial {
			out[r.name] = r.enabled
		}
	}

	return out
}

// View renders the current state of the model.
func (m manageModel) View() string {
	if m.done {
		return fmt.Sprintf("%d plugin state change(s) saved.\n", len(m.changes()))
	}
	if m.cancelled {
		return "Operation cancelled.\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Manage plugins") + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	end := min(m.offset+pageSize, len(m.rows))
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		box := "[ ]"
		if r.enabled {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %-32s %-18s %s", box, r.name, r.kind, r.fileTypes)
		if !r.enabled {
			line = disabledStyle.Render(line)
		}
		if i == m.cursor {
			line = cursorStyle.Render("▶ ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n%d/%d\n", m.cursor+1, len(m.rows))

	if m.message != "" {
		b.WriteString(warnStyle.Render(m.message) + "\n")
	}

	b.WriteString(helpStyle.Render("↑/↓ or j/k: move  Space: toggle  Enter: save  q: quit") + "\n")

	return b.String()
}

// NewManageCommand creates the interactive manage command.
func NewManageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manage",
		Short: "Enable and disable plugins interactively",
		Args:  cobra.NoArgs,
		RunE:  runManage,
	}
}

func runManage(cmd *cobra.Command, _ []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	final, err := tea.NewProgram(newManageModel(e.Registry)).Run()
	if err != nil {
		return err
	}

	m, ok := final.(manageModel)
	if !ok || m.cancelled {
		return nil
	}

	for name, enable := range m.changes() {
		p, err := e.Plugin(name)
		if err != nil {
			return err
		}
		if err := setEnabled(e.Store, p, enable); err != nil {
			return err
		}
	}

	return nil
}
