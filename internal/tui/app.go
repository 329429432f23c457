package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeanpaul/favourites/internal/favourites"
	"github.com/jeanpaul/favourites/internal/store"
	"github.com/jeanpaul/favourites/internal/types"
)

// EnrichSpinner is shown while a gender lookup is in flight.
var EnrichSpinner = spinner.Spinner{
	Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	FPS:    time.Second / 12,
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeDetail
	modeHelp
)

type storeEventMsg store.Event

type eventsClosedMsg struct{}

type contactsMsg struct{}

// addResultMsg carries the outcome of one add flow back to the UI. gen
// identifies the flow so a late result for a dismissed dialog is dropped.
type addResultMsg struct {
	gen uint64
	res favourites.Result
}

type Model struct {
	width, height int

	svc    *favourites.Service
	events <-chan store.Event

	mode     mode
	contacts []types.Contact
	cursor   int
	onlyFavs bool

	flow       *favourites.AddFlow
	submitting bool
	textarea   textarea.Model
	spinner    spinner.Model

	renderer *glamour.TermRenderer
	page     string

	status    string
	statusErr bool
}

// NewModel builds the contacts screen over svc. events, if not nil, is fed
// by a store subscription and keeps the list in sync with changes made
// elsewhere.
func NewModel(svc *favourites.Service, events <-chan store.Event) Model {
	ta := textarea.New()
	ta.Placeholder = "Say something nice (letters, digits, spaces)"
	ta.CharLimit = store.MaxMessageLen
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(White)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(DimGreen)

	sp := spinner.New()
	sp.Spinner = EnrichSpinner
	sp.Style = SpinnerStyle

	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(72),
	)

	m := Model{
		svc:      svc,
		events:   events,
		textarea: ta,
		spinner:  sp,
		renderer: r,
	}
	m.refresh()
	if err := svc.ContactsErr(); err != nil {
		m.setError("Contacts unavailable: " + describeContactsErr(err))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return storeEventMsg(evt)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(max(msg.Width-8, 20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storeEventMsg:
		evt := store.Event(msg)
		if evt.Kind == store.EventPersistFailed {
			m.setError("Saving favourites failed; changes are kept for this session")
		}
		m.refresh()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case contactsMsg:
		m.refresh()
		if err := m.svc.ContactsErr(); err != nil {
			m.setError("Contacts unavailable: " + describeContactsErr(err))
		} else {
			m.setStatus(fmt.Sprintf("Loaded %d contacts", len(m.svc.Contacts())))
		}
		return m, nil

	case addResultMsg:
		return m.handleAddResult(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.flow != nil {
				m.flow.Cancel()
			}
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeDetail, modeHelp:
			switch msg.String() {
			case "esc", "q", "enter", "?":
				m.mode = modeList
				m.page = ""
			}
			return m, nil
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.contacts)-1 {
			m.cursor++
		}
	case "f", "tab":
		m.onlyFavs = !m.onlyFavs
		m.cursor = 0
		m.refresh()
	case "r":
		svc := m.svc
		return m, func() tea.Msg {
			svc.RefreshContacts(context.Background())
			return contactsMsg{}
		}
	case "?":
		m.mode = modeHelp
		m.page = m.render(helpMarkdown)
	case "enter", "a":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.svc.IsFavourite(c.ID) {
			return m.openDetail(c)
		}
		m.flow = m.svc.BeginAdd(c)
		m.submitting = false
		m.textarea.Reset()
		m.mode = modeAdd
		m.status = ""
		cmd := m.textarea.Focus()
		return m, cmd
	case "d", "x", "delete":
		c, ok := m.selected()
		if !ok || !m.svc.IsFavourite(c.ID) {
			return m, nil
		}
		if res := m.svc.RemoveFavourite(c.ID); res.OK {
			m.setStatus("Removed " + c.FullName() + " from favourites")
		} else {
			m.setError(describeFailure(res.Err))
		}
		m.refresh()
	}
	return m, nil
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeAdd()
		m.setStatus("Cancelled")
		return m, nil
	case tea.KeyEnter:
		if msg.Alt {
			break
		}
		if m.submitting {
			return m, nil
		}
		text := strings.TrimSpace(m.textarea.Value())
		if err := store.ValidateMessage(text); err != nil {
			m.setError(describeFailure(err))
			return m, nil
		}
		m.submitting = true
		m.status = ""
		flow := m.flow
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			return addResultMsg{gen: flow.Gen, res: flow.Submit(text)}
		})
	}
	if m.submitting {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleAddResult(msg addResultMsg) (tea.Model, tea.Cmd) {
	if m.flow == nil || m.flow.Gen != msg.gen {
		// dialog was dismissed or replaced while enriching
		return m, nil
	}
	m.submitting = false
	if !msg.res.OK {
		m.setError(describeFailure(msg.res.Err))
		if errors.Is(msg.res.Err, store.ErrDuplicateFavourite) {
			m.closeAdd()
			m.refresh()
		}
		return m, nil
	}
	m.flow = nil
	m.mode = modeList
	m.textarea.Blur()
	m.setStatus(fmt.Sprintf("Added %s (%s)", msg.res.Favourite.Name, msg.res.Favourite.Gender))
	m.refresh()
	return m, nil
}

func (m *Model) closeAdd() {
	if m.flow != nil {
		m.flow.Cancel()
		m.flow = nil
	}
	m.submitting = false
	m.textarea.Blur()
	m.mode = modeList
}

func (m Model) openDetail(c types.Contact) (tea.Model, tea.Cmd) {
	fav, ok := m.svc.Favourite(c.ID)
	if !ok {
		return m, nil
	}
	m.mode = modeDetail
	m.page = m.render(detailMarkdown(fav))
	return m, nil
}

// refresh recomputes the visible rows and clamps the cursor.
func (m *Model) refresh() {
	m.contacts = m.svc.ListFiltered(m.onlyFavs)
	if m.cursor >= len(m.contacts) {
		m.cursor = max(len(m.contacts)-1, 0)
	}
}

func (m Model) selected() (types.Contact, bool) {
	if m.cursor < 0 || m.cursor >= len(m.contacts) {
		return types.Contact{}, false
	}
	return m.contacts[m.cursor], true
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m Model) View() string {
	switch m.mode {
	case modeDetail, modeHelp:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.page,
			HelpStyle.Render("  esc: back"),
		)
	}

	filter := FilterOffStyle.Render("ALL")
	if m.onlyFavs {
		filter = FilterOnStyle.Render("FAVOURITES")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		TitleStyle.Render("Contacts "),
		filter,
	)

	var rows []string
	for i, c := range m.contacts {
		mark := "  "
		if m.svc.IsFavourite(c.ID) {
			mark = StarStyle.Render("★ ")
		}
		line := mark + c.FullName()
		if i == m.cursor {
			rows = append(rows, SelectedRowStyle.Render(line))
		} else {
			rows = append(rows, RowStyle.Render(line))
		}
	}
	if len(rows) == 0 {
		empty := "No contacts"
		if m.onlyFavs {
			empty = "No favourites yet"
		}
		rows = append(rows, EmptyStyle.Render(empty))
	}

	parts := []string{header, "", strings.Join(rows, "\n"), ""}
	if m.mode == modeAdd && m.flow != nil {
		parts = append(parts, m.dialogView())
	}
	if m.status != "" {
		if m.statusErr {
			parts = append(parts, ErrorStyle.Render(m.status))
		} else {
			parts = append(parts, StatusStyle.Render(m.status))
		}
	}
	parts = append(parts, HelpStyle.Render(m.helpLine()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) dialogView() string {
	title := DialogTitleStyle.Render("Add " + m.flow.Contact.FullName() + " to favourites")
	body := m.textarea.View()
	if m.submitting {
		body = m.spinner.View() + " Looking up " + m.flow.Contact.GivenName + "..."
	}
	return DialogStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func (m Model) helpLine() string {
	if m.mode == modeAdd {
		return "enter: save  •  esc: cancel"
	}
	return "↑/↓: move  •  enter: add/show  •  d: remove  •  f: favourites only  •  r: reload  •  ?: help  •  q: quit"
}
