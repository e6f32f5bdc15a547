package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"boqops/client"
	"boqops/client/fetch"
	"boqops/internal/models"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	protectedRow  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	menuStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	menuItemStyle = lipgloss.NewStyle()
	menuSelStyle  = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
)

type view int

const (
	viewList view = iota
	viewGrid
)

// listStateMsg carries a fetch controller snapshot into the update loop.
type listStateMsg struct{ state fetch.State }

// statusMsg is a one-line status bar update from a background command.
type statusMsg string

// errMsg is a failure from a background command.
type errMsg struct{ err error }

// gridLoadedMsg delivers a BOQ's CSV text.
type gridLoadedMsg struct {
	id  string
	csv string
}

type model struct {
	api *client.Client
	log zerolog.Logger

	view   view
	width  int
	height int
	status string
	err    error

	// list view
	ctrl      *fetch.Controller
	boqs      []models.BOQ
	total     int
	loading   bool
	query     fetch.Query
	cursor    int
	search    textinput.Model
	searching bool
	menu      actionMenu

	// grid view
	grid gridModel

	loggedOut bool
}

func initialModel(api *client.Client, log zerolog.Logger) model {
	search := textinput.New()
	search.Placeholder = "search BOQs"
	search.CharLimit = 100

	m := model{api: api, log: log, search: search}
	m.ctrl = fetch.NewController(m.fetchBOQs, fetch.WithPageSize(25), fetch.OnChange(func(s fetch.State) {
		if program != nil {
			program.Send(listStateMsg{state: s})
		}
	}))
	return m
}

// fetchBOQs is the fetch.Fetcher behind the list view.
func (m model) fetchBOQs(ctx context.Context, q fetch.Query) (interface{}, int, error) {
	vals := url.Values{}
	if q.Search != "" {
		vals.Set("q", q.Search)
	}
	for k, v := range q.Filters {
		vals.Set(k, v)
	}
	vals.Set("page", fmt.Sprint(q.Page))
	vals.Set("limit", fmt.Sprint(q.PageSize))

	var boqs []models.BOQ
	total, err := m.api.List(ctx, "/api/v1/boqs", vals, &boqs)
	if err != nil {
		return nil, 0, err
	}
	return boqs, total, nil
}

func (m model) Init() tea.Cmd {
	m.ctrl.Refresh()
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loginRequiredMsg:
		m.loggedOut = true
		return m, tea.Quit

	case listStateMsg:
		m.loading = msg.state.Loading
		m.query = msg.state.Query
		m.err = msg.state.Err
		if boqs, ok := msg.state.Records.([]models.BOQ); ok {
			m.boqs = boqs
			m.total = msg.state.Total
			if m.cursor >= len(m.boqs) {
				m.cursor = max(0, len(m.boqs)-1)
			}
		}
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case gridLoadedMsg:
		m.grid = newGridModel(msg.id, msg.csv)
		m.view = viewGrid
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		if m.view == viewGrid {
			return m.updateGrid(msg)
		}
		if m.menu.open {
			return m.updateMenu(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Every keystroke feeds the debounced controller; it issues one
	// query once typing pauses.
	m.ctrl.SetSearch(m.search.Value())
	return m, cmd
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.Close()
		return m, tea.Quit
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.boqs)-1 {
			m.cursor++
		}
	case "[":
		if m.query.Page > 1 {
			m.ctrl.SetPage(m.query.Page - 1)
		}
	case "]":
		if m.query.Skip()+len(m.boqs) < m.total {
			m.ctrl.SetPage(m.query.Page + 1)
		}
	case "f":
		m.menu = openStatusMenu(m)
		return m, nil
	case "a":
		m.menu = openActionsMenu(m)
		return m, nil
	case "r":
		m.ctrl.Refresh()
	case "enter":
		if m.cursor < len(m.boqs) {
			return m, m.loadGridCmd(m.boqs[m.cursor].ID)
		}
	case "w":
		if m.cursor < len(m.boqs) {
			return m, m.exportWorkbookCmd(m.boqs[m.cursor].ID)
		}
	case "W":
		return m, m.exportBulkCmd()
	}
	return m, nil
}

func (m model) View() string {
	if m.loggedOut {
		return "session rejected by server, exiting\n"
	}
	if m.view == viewGrid {
		return m.viewGrid()
	}
	return m.viewList()
}

func (m model) viewList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("BOQ Operations"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d total", m.total)))
	if m.loading {
		b.WriteString(statusStyle.Render("  loading..."))
	}
	b.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if st := m.query.Filters["status"]; st != "" {
		b.WriteString(dimStyle.Render("status: " + st))
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf(" %-14s %-12s %-10s %-14s %-10s %12s ",
		"ID", "Site", "Type", "Status", "Rows", "Total")))
	b.WriteString("\n")

	for i, boq := range m.boqs {
		line := fmt.Sprintf(" %-14s %-12s %-10s %-14s %-10d %12.2f ",
			boq.ID, boq.SiteID, boq.BOQType, boq.Status, boq.RowCount, boq.TotalValue)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.boqs) == 0 && !m.loading {
		b.WriteString(dimStyle.Render(" no BOQs match\n"))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("page %d  [/]: pages  /: search  f: filter  a: actions  enter: grid  w/W: workbook  q: quit",
		m.query.Page)))
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}

	base := b.String()
	if m.menu.open {
		return overlayMenu(base, m.menu, m.width, m.height)
	}
	return base
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
