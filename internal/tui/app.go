// Package tui is the interactive license-check screen.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/report"
	"github.com/diagkit/licensecheck/internal/state"
	"github.com/diagkit/licensecheck/internal/tui/components"
	"github.com/diagkit/licensecheck/internal/tui/theme"
	"github.com/diagkit/licensecheck/internal/tui/views"
)

const (
	// StandardLayoutMinWidth is the terminal width at which cards use the standard width.
	StandardLayoutMinWidth = 100
	// ReferenceCharLimit bounds the reference input.
	ReferenceCharLimit = 10

	compactCardWidth  = 60
	standardCardWidth = 96
	chromeHeight      = 14
	minViewportHeight = 5
)

// LayoutMode identifies the responsive layout mode.
type LayoutMode string

const (
	// LayoutStandard renders wide alert cards.
	LayoutStandard LayoutMode = "standard"
	// LayoutCompact renders narrow alert cards.
	LayoutCompact LayoutMode = "compact"
)

// OverlayKind identifies modal overlays rendered above the screen.
type OverlayKind string

// OverlayKindHelp presents the keyboard shortcut overlay.
const OverlayKindHelp OverlayKind = "help"

// Overlay represents one modal layer.
type Overlay struct {
	Kind OverlayKind
}

// LookupDoneMsg delivers a finished lookup to the controller.
type LookupDoneMsg struct {
	Reference string
	Response  license.RawResponse
}

// Option customizes the AppModel.
type Option func(*AppModel)

// WithThresholds sets urgency thresholds for badges.
func WithThresholds(thresholds license.Thresholds) Option {
	return func(m *AppModel) {
		m.thresholds = thresholds
	}
}

// AppModel is the root Bubble Tea model for the check screen.
type AppModel struct {
	ctx        context.Context
	controller *state.Controller
	thresholds license.Thresholds

	company   textinput.Model
	reference textinput.Model
	focus     views.FormField
	spinner   spinner.Model
	results   viewport.Model

	overlays   []Overlay
	width      int
	height     int
	layoutMode LayoutMode
	lastErr    string
	quitting   bool
}

// NewAppModel constructs the check screen around a controller.
func NewAppModel(ctx context.Context, controller *state.Controller, options ...Option) *AppModel {
	if ctx == nil {
		ctx = context.Background()
	}

	company := textinput.New()
	company.Placeholder = "Company name"
	company.Prompt = ""

	reference := textinput.New()
	reference.Placeholder = "XSP1234567"
	reference.Prompt = ""
	reference.CharLimit = ReferenceCharLimit

	model := &AppModel{
		ctx:        ctx,
		controller: controller,
		thresholds: license.DefaultThresholds(),
		company:    company,
		reference:  reference,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.FocusStyle)),
		results:    viewport.New(standardCardWidth, minViewportHeight),
		overlays:   make([]Overlay, 0, 1),
		layoutMode: LayoutStandard,
	}
	for _, option := range options {
		if option != nil {
			option(model)
		}
	}
	model.setFocus(views.FieldCompany)
	return model
}

// Run starts the interactive program and blocks until it exits.
func Run(ctx context.Context, controller *state.Controller, options ...Option) error {
	if controller == nil {
		return errors.New("controller is required")
	}
	program := tea.NewProgram(NewAppModel(ctx, controller, options...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// Init satisfies tea.Model.
func (m *AppModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles window, lookup, spinner and keyboard messages.
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(typed.Width, typed.Height)
		return m, nil
	case LookupDoneMsg:
		if err := m.controller.Complete(m.ctx, typed.Response); err != nil {
			m.lastErr = err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.setFocus(views.FieldNone)
		m.refreshResults(true)
		return m, nil
	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(typed)
	default:
		return m, nil
	}
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if _, ok := m.CurrentOverlay(); ok {
		switch {
		case views.HelpOverlayQuickActionForKey(msg) == views.HelpOverlayQuickActionClose:
			m.PopOverlay()
		case msg.String() == "q":
			return m.quit()
		}
		return m, nil
	}

	switch msg.String() {
	case "enter":
		return m.submit()
	case "tab":
		m.cycleFocus(true)
		return m, nil
	case "shift+tab":
		m.cycleFocus(false)
		return m, nil
	case "esc":
		m.setFocus(views.FieldNone)
		return m, nil
	}

	if m.focus == views.FieldNone {
		return m.handleShortcut(msg)
	}
	return m, m.updateInput(msg)
}

func (m *AppModel) handleShortcut(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "?":
		m.PushOverlay(Overlay{Kind: OverlayKindHelp})
		return m, nil
	case "q":
		return m.quit()
	case "x":
		if err := m.controller.ToggleExpired(m.ctx); err != nil {
			m.lastErr = err.Error()
			return m, nil
		}
		m.refreshResults(false)
		return m, nil
	default:
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
}

func (m *AppModel) submit() (tea.Model, tea.Cmd) {
	if m.Busy() {
		return m, nil
	}

	effects, err := m.controller.Submit(m.ctx, m.company.Value(), m.reference.Value())
	if err != nil {
		if !errors.Is(err, state.ErrSubmissionInFlight) {
			m.lastErr = err.Error()
		}
		return m, nil
	}
	m.lastErr = ""
	m.refreshResults(true)

	for _, effect := range effects {
		if dispatch, ok := effect.(state.DispatchLookup); ok {
			return m, tea.Batch(m.spinner.Tick, m.lookupCmd(dispatch.Reference))
		}
	}
	return m, nil
}

func (m *AppModel) lookupCmd(reference string) tea.Cmd {
	controller := m.controller
	ctx := m.ctx
	return func() tea.Msg {
		return LookupDoneMsg{Reference: reference, Response: controller.RunLookup(ctx, reference)}
	}
}

func (m *AppModel) updateInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case views.FieldCompany:
		m.company, cmd = m.company.Update(msg)
	case views.FieldReference:
		if msg.Type == tea.KeyRunes {
			msg.Runes = []rune(strings.ToUpper(string(msg.Runes)))
		}
		m.reference, cmd = m.reference.Update(msg)
	}
	return cmd
}

func (m *AppModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// View satisfies tea.Model.
func (m *AppModel) View() string {
	if m.quitting {
		return ""
	}
	if _, ok := m.CurrentOverlay(); ok {
		return views.RenderHelpOverlay(views.HelpOverlayConfig{
			Width:     m.width,
			Height:    m.height,
			HasResult: m.controller.View().HasResult,
		})
	}

	view := m.controller.View()
	formError := view.Error
	if formError == "" {
		formError = m.lastErr
	}

	blocks := []string{
		theme.HeadingStyle.Render("License expiry check"),
		views.RenderForm(views.FormConfig{
			Width:          m.cardWidth(),
			CompanyInput:   m.company.View(),
			ReferenceInput: m.reference.View(),
			Focus:          m.focus,
			Busy:           view.Busy(),
			Spinner:        m.spinner.View(),
			Error:          formError,
		}),
	}
	if view.HasResult {
		if m.height > 0 {
			blocks = append(blocks, m.results.View())
		} else {
			blocks = append(blocks, m.renderResults())
		}
	}
	blocks = append(blocks, components.RenderToolbar(m.toolbarButtons(view)))
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (m *AppModel) toolbarButtons(view state.View) []components.ToolbarButton {
	shortcuts := m.focus == views.FieldNone
	return []components.ToolbarButton{
		{Key: "enter", Label: "Check", Enabled: !view.Busy()},
		{Key: "tab", Label: "Next field", Enabled: true},
		{Key: "x", Label: "Expired", Enabled: shortcuts && view.HasResult && len(view.Groups.Expired) > 0},
		{Key: "?", Label: "Help", Enabled: shortcuts},
		{Key: "q", Label: "Quit", Enabled: shortcuts},
	}
}

func (m *AppModel) renderResults() string {
	doc := report.Build(m.controller.View(), report.Options{Thresholds: m.thresholds})
	return views.RenderResults(views.ResultsConfig{Width: m.cardWidth(), Document: doc})
}

func (m *AppModel) refreshResults(top bool) {
	m.results.SetContent(m.renderResults())
	if top {
		m.results.GotoTop()
	}
}

func (m *AppModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.layoutMode = resolveLayoutMode(width)
	m.results.Width = width
	m.results.Height = max(minViewportHeight, height-chromeHeight)
	m.refreshResults(false)
}

func (m *AppModel) cardWidth() int {
	if m.layoutMode == LayoutCompact {
		if m.width > 0 && m.width < compactCardWidth {
			return m.width
		}
		return compactCardWidth
	}
	return standardCardWidth
}

func (m *AppModel) cycleFocus(forward bool) {
	order := []views.FormField{views.FieldCompany, views.FieldReference, views.FieldNone}
	index := 0
	for i, field := range order {
		if field == m.focus {
			index = i
		}
	}
	if forward {
		index = (index + 1) % len(order)
	} else {
		index = (index - 1 + len(order)) % len(order)
	}
	m.setFocus(order[index])
}

func (m *AppModel) setFocus(field views.FormField) {
	m.focus = field
	m.company.Blur()
	m.reference.Blur()
	switch field {
	case views.FieldCompany:
		m.company.Focus()
	case views.FieldReference:
		m.reference.Focus()
	}
}

// PushOverlay appends a modal overlay to the stack.
func (m *AppModel) PushOverlay(overlay Overlay) {
	if overlay.Kind == "" {
		return
	}
	m.overlays = append(m.overlays, overlay)
}

// PopOverlay removes the top overlay and reports whether one existed.
func (m *AppModel) PopOverlay() bool {
	if len(m.overlays) == 0 {
		return false
	}
	m.overlays = m.overlays[:len(m.overlays)-1]
	return true
}

// CurrentOverlay returns the top modal overlay, if present.
func (m *AppModel) CurrentOverlay() (Overlay, bool) {
	if len(m.overlays) == 0 {
		return Overlay{}, false
	}
	return m.overlays[len(m.overlays)-1], true
}

// Busy reports whether a lookup is in flight.
func (m *AppModel) Busy() bool {
	return m.controller.View().Busy()
}

// Focus reports the focused form field.
func (m *AppModel) Focus() views.FormField {
	return m.focus
}

// Reference returns the current reference input value.
func (m *AppModel) Reference() string {
	return m.reference.Value()
}

// LayoutMode reports the active responsive layout mode.
func (m *AppModel) LayoutMode() LayoutMode {
	return m.layoutMode
}

// Quitting reports whether the program is exiting.
func (m *AppModel) Quitting() bool {
	return m.quitting
}

func resolveLayoutMode(width int) LayoutMode {
	if width < StandardLayoutMinWidth {
		return LayoutCompact
	}
	return LayoutStandard
}
