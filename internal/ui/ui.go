package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nrx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	AlbumListView
	ConfirmView
	WritingView
	ResultView
)

// Pipeline is the part of [tasks.Pipeline] the TUI drives.
type Pipeline interface {
	Preview(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Aggregation, error)
	Publish(ctx context.Context, agg *tasks.Aggregation, progress chan<- tasks.ProgressUpdate) (*tasks.Result, error)
}

// Model is the main bubbletea model.
type Model struct {
	ctx          context.Context
	view         ViewState
	pipeline     Pipeline
	playlistName string
	width        int
	height       int

	albumList   list.Model
	aggregation *tasks.Aggregation

	progressChan chan tasks.ProgressUpdate
	doneChan     chan tea.Msg
	progress     tasks.ProgressUpdate
	result       *tasks.Result
	err          error

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model. playlistName is shown on the confirmation screen.
func NewModel(ctx context.Context, pipeline Pipeline, playlistName string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:          ctx,
		view:         LoadingView,
		pipeline:     pipeline,
		playlistName: playlistName,
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts release discovery.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startPreview())
}

// Result returns the published playlist, if any.
func (m *Model) Result() *tasks.Result { return m.result }

// Err returns the last pipeline error.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.aggregation != nil {
			m.albumList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case LoadingView, WritingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case AlbumListView:
			return m.handleAlbumListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != WritingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case previewCompleteMsg:
		m.progressChan, m.doneChan = nil, nil
		if msg.err != nil {
			m.err = msg.err
			m.view = ResultView
			return m, nil
		}
		m.setAggregation(msg.aggregation)
		m.view = AlbumListView
		return m, nil

	case publishCompleteMsg:
		m.progressChan, m.doneChan = nil, nil
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	if m.view == AlbumListView {
		var cmd tea.Cmd
		m.albumList, cmd = m.albumList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderProgress("Collecting new releases")
	case AlbumListView:
		return m.renderAlbumList()
	case ConfirmView:
		return m.renderConfirm()
	case WritingView:
		return m.renderProgress("Writing playlist")
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) setAggregation(agg *tasks.Aggregation) {
	m.aggregation = agg
	m.albumList = list.New(albumItems(agg.Albums), list.NewDefaultDelegate(), 0, 0)
	m.albumList.Title = fmt.Sprintf("%d new releases from %d artists", len(agg.Albums), len(agg.Artists))
	m.albumList.SetSize(m.width-4, m.height-8)
}

func (m *Model) handleAlbumListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.albumList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.albumList, cmd = m.albumList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.albumList, cmd = m.albumList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = WritingView
		m.progress = tasks.ProgressUpdate{}
		return m, tea.Batch(m.spinner.Tick, m.startPublish())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = AlbumListView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart) && m.err != nil:
		m.err = nil
		m.result = nil
		m.aggregation = nil
		m.view = LoadingView
		return m, tea.Batch(m.spinner.Tick, m.startPreview())
	}
	return m, nil
}

func (m *Model) startPreview() tea.Cmd {
	ch, done := m.newRun()
	go func() {
		agg, err := m.pipeline.Preview(m.ctx, ch)
		done <- previewCompleteMsg{aggregation: agg, err: err}
		close(ch)
	}()
	return m.waitForProgress()
}

func (m *Model) startPublish() tea.Cmd {
	ch, done := m.newRun()
	agg := m.aggregation
	go func() {
		res, err := m.pipeline.Publish(m.ctx, agg, ch)
		done <- publishCompleteMsg{result: res, err: err}
		close(ch)
	}()
	return m.waitForProgress()
}

func (m *Model) newRun() (chan tasks.ProgressUpdate, chan tea.Msg) {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan tea.Msg, 1)
	return m.progressChan, m.doneChan
}

// waitForProgress relays updates until the channel closes, then yields the completion message.
func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		update, ok := <-ch
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderProgress(title string) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s", m.spinner.View(), phaseLabel(m.progress))
	if m.progress.Message != "" {
		fmt.Fprintf(&b, "\n%s", styles.help.Render(m.progress.Message))
	}
	fmt.Fprintf(&b, "\n\n%s", m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderAlbumList() string {
	writeKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "create playlist"))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, writeKey, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.albumList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Create '%s'?", m.playlistName))

	var albums, tracks int
	if m.aggregation != nil {
		albums, tracks = len(m.aggregation.Albums), len(m.aggregation.Tracks)
	}
	info := fmt.Sprintf("\nAlbums: %d\nTracks: %d\nRequests: %d\n", albums, tracks, tasks.ChunkCount(tracks))
	if tracks == 0 {
		info += styles.warn.Render("\nNo tracks were found; the playlist will be empty.\n")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to retry, q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress q to quit")
	}

	title := styles.ok.Render("✓ Playlist created")
	info := fmt.Sprintf(
		"\nName: %s\nURL: %s\nArtists: %d\nAlbums: %d\nTracks: %d (%d requests)",
		m.result.Playlist.Name,
		m.result.Playlist.URL,
		len(m.result.Artists),
		len(m.result.Albums),
		len(m.result.Tracks),
		m.result.Requests,
	)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

// phaseLabel describes an in-flight progress update.
func phaseLabel(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Authorize:
		return "Authorizing..."
	case tasks.FetchArtists:
		return fmt.Sprintf("Fetching followed artists (page %d)", u.Step)
	case tasks.FetchAlbums:
		return fmt.Sprintf("Fetching albums (%d/%d)", u.Step, u.Total)
	case tasks.FetchTracks:
		return fmt.Sprintf("Fetching tracks (%d/%d)", u.Step, u.Total)
	case tasks.ResolveUser:
		return "Resolving playlist owner..."
	case tasks.CreatePlaylist:
		return "Creating playlist..."
	case tasks.AddTracks:
		return fmt.Sprintf("Adding tracks (%d/%d)", u.Step, u.Total)
	case tasks.Done:
		return "Done"
	default:
		return "Processing..."
	}
}
