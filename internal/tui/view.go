// Package tui is the interactive item list: a bubbletea model that fetches
// once per activation and renders item names as a flat list.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/itemwatch/internal/fetcher"
	"github.com/idilsaglam/itemwatch/internal/model"
)

// ItemFetcher delivers one fetch result per call.
type ItemFetcher interface {
	FetchItems(ctx context.Context) <-chan fetcher.Result
}

// AppearMsg tells the view it became visible.
type AppearMsg struct{}

// DisappearMsg tells the view it is no longer visible.
type DisappearMsg struct{}

// Appear and Disappear are commands emitting the lifecycle messages.
func Appear() tea.Msg    { return AppearMsg{} }
func Disappear() tea.Msg { return DisappearMsg{} }

type itemsLoadedMsg struct {
	gen   int
	items []model.Item
}

type fetchFailedMsg struct {
	gen int
	err error
}

// row adapts model.Item to list.Item. id is the row identity.
type row struct {
	id   string
	name string
}

func (r row) FilterValue() string { return r.name }

type rowDelegate struct{}

func (rowDelegate) Height() int                             { return 1 }
func (rowDelegate) Spacing() int                            { return 0 }
func (rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, _ := item.(row)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprint(w, prefix+r.name)
}

// Model is the bubbletea model of the item list.
type Model struct {
	list    list.Model
	fetcher ItemFetcher
	ctx     context.Context
	log     *slog.Logger
	title   string

	active  bool
	gen     int
	fetches int
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context passed to fetches.
func WithContext(ctx context.Context) Option { return func(m *Model) { m.ctx = ctx } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(m *Model) { m.log = l } }

// WithTitle sets the header line.
func WithTitle(title string) Option { return func(m *Model) { m.title = title } }

// New builds an empty list backed by f.
func New(f ItemFetcher, opts ...Option) Model {
	m := Model{
		fetcher: f,
		ctx:     context.Background(),
		log:     slog.Default(),
		title:   "Items",
	}
	for _, o := range opts {
		o(&m)
	}

	l := list.New(nil, rowDelegate{}, 80-frameWidth, 24-frameHeight)
	l.Title = m.title
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.SetShowHelp(true)
	quit := key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit"))
	l.KeyMap.Quit = quit
	m.list = l
	return m
}

// Items returns the displayed items in display order.
func (m Model) Items() []model.Item {
	out := make([]model.Item, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if r, ok := it.(row); ok {
			out = append(out, model.Item{ID: r.id, Name: r.name})
		}
	}
	return out
}

// Active reports whether the view is between Appear and Disappear.
func (m Model) Active() bool { return m.active }

// Fetches counts the fetches issued so far.
func (m Model) Fetches() int { return m.fetches }

// Init treats program start as the view appearing.
func (m Model) Init() tea.Cmd { return Appear }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.FocusMsg:
		return m.Update(AppearMsg{})
	case tea.BlurMsg:
		return m.Update(DisappearMsg{})

	case AppearMsg:
		if m.active {
			return m, nil
		}
		m.active = true
		m.gen++
		m.fetches++
		return m, m.fetch(m.gen)

	case DisappearMsg:
		m.active = false
		return m, nil

	case itemsLoadedMsg:
		if msg.gen != m.gen {
			m.log.Debug("dropping stale fetch result", "generation", msg.gen, "current", m.gen)
			return m, nil
		}
		return m, m.replace(msg.items)

	case fetchFailedMsg:
		// The list keeps whatever it showed; the fetcher already logged the cause.
		m.log.Debug("fetch failed, list unchanged", "generation", msg.gen, "error", msg.err)
		return m, nil

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-frameWidth, msg.Height-frameHeight)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return frame(titleStyle.Render(m.title))
	}
	return frame(m.list.View())
}

func (m Model) fetch(gen int) tea.Cmd {
	f, ctx := m.fetcher, m.ctx
	return func() tea.Msg {
		r, ok := <-f.FetchItems(ctx)
		if !ok {
			return fetchFailedMsg{gen: gen, err: errors.New("fetch ended without a result")}
		}
		if r.Err != nil {
			return fetchFailedMsg{gen: gen, err: r.Err}
		}
		return itemsLoadedMsg{gen: gen, items: r.Items}
	}
}

// replace swaps the whole list, keeping the cursor on the same item ID when
// it survived.
func (m *Model) replace(items []model.Item) tea.Cmd {
	var keep string
	if sel, ok := m.list.SelectedItem().(row); ok {
		keep = sel.id
	}
	rows := make([]list.Item, len(items))
	idx := 0
	for i, it := range items {
		rows[i] = row{id: it.ID, name: it.Name}
		if keep != "" && it.ID == keep {
			idx = i
		}
	}
	cmd := m.list.SetItems(rows)
	m.list.Select(idx)
	return cmd
}

// Run shows the list until the user quits or ctx is canceled.
func Run(ctx context.Context, f ItemFetcher, opts ...Option) error {
	opts = append([]Option{WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(f, opts...),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run item list: %w", err)
	}
	return nil
}
