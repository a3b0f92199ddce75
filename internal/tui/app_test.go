package tui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/state"
	"github.com/diagkit/licensecheck/internal/tui/views"
)

type stubLookup struct {
	calls atomic.Int32
	raw   license.RawResponse
}

func (s *stubLookup) Lookup(context.Context, string) license.RawResponse {
	s.calls.Add(1)
	return s.raw
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sampleResponse() license.RawResponse {
	return license.RawResponse{
		"L1": {Name: strPtr("Suite"), DaysRemaining: intPtr(40)},
		"L2": {Name: strPtr("Legacy"), DaysRemaining: intPtr(-2)},
		"L3": {Name: strPtr("Viewer"), DaysRemaining: intPtr(7)},
	}
}

func newAppModelForTest(t *testing.T, raw license.RawResponse) (*AppModel, *stubLookup) {
	t.Helper()

	source := &stubLookup{raw: raw}
	controller, err := state.NewController(source)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return NewAppModel(context.Background(), controller), source
}

func mustAppModel(t *testing.T, model tea.Model) *AppModel {
	t.Helper()

	appModel, ok := model.(*AppModel)
	if !ok {
		t.Fatalf("model type = %T, want *AppModel", model)
	}
	return appModel
}

func typeText(t *testing.T, model *AppModel, text string) *AppModel {
	t.Helper()

	for _, r := range text {
		next, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		model = mustAppModel(t, next)
	}
	return model
}

func press(t *testing.T, model *AppModel, msg tea.KeyMsg) (*AppModel, tea.Cmd) {
	t.Helper()

	next, cmd := model.Update(msg)
	return mustAppModel(t, next), cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// findLookupDone runs a batched command and returns the lookup completion message.
func findLookupDone(t *testing.T, cmd tea.Cmd) LookupDoneMsg {
	t.Helper()

	if cmd == nil {
		t.Fatal("expected a command")
	}
	switch msg := cmd().(type) {
	case LookupDoneMsg:
		return msg
	case tea.BatchMsg:
		for _, inner := range msg {
			if inner == nil {
				continue
			}
			if done, ok := inner().(LookupDoneMsg); ok {
				return done
			}
		}
	}
	t.Fatal("no LookupDoneMsg produced")
	return LookupDoneMsg{}
}

func fillForm(t *testing.T, model *AppModel, company, reference string) *AppModel {
	t.Helper()

	model = typeText(t, model, company)
	model, _ = press(t, model, tea.KeyMsg{Type: tea.KeyTab})
	return typeText(t, model, reference)
}

func TestSubmitRunsLookupAndShowsRankedResults(t *testing.T) {
	t.Parallel()

	model, source := newAppModelForTest(t, sampleResponse())
	model = fillForm(t, model, "Contoso", "xsp1234567")
	if got := model.Reference(); got != "XSP1234567" {
		t.Fatalf("reference = %q, want upper-cased XSP1234567", got)
	}

	model, cmd := press(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if !model.Busy() {
		t.Fatal("model should be busy after a valid submit")
	}
	if rendered := model.View(); !strings.Contains(rendered, views.CheckingLabel) {
		t.Fatalf("busy view should show %q\n%s", views.CheckingLabel, rendered)
	}

	done := findLookupDone(t, cmd)
	if done.Reference != "XSP1234567" {
		t.Fatalf("lookup reference = %q", done.Reference)
	}

	next, _ := model.Update(done)
	model = mustAppModel(t, next)
	if model.Busy() {
		t.Fatal("model should not be busy after completion")
	}
	if model.Focus() != views.FieldNone {
		t.Fatalf("focus after result = %v, want FieldNone", model.Focus())
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("lookup calls = %d, want 1", got)
	}

	rendered := model.View()
	for _, want := range []string{"Viewer", "Suite", "▸ Expired (1)"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("result view missing %q\n%s", want, rendered)
		}
	}
	if strings.Index(rendered, "Viewer") > strings.Index(rendered, "Suite") {
		t.Fatalf("alerts should be ranked by days remaining\n%s", rendered)
	}
	if strings.Contains(rendered, "Legacy") {
		t.Fatalf("expired group should start collapsed\n%s", rendered)
	}

	model, _ = press(t, model, runeKey('x'))
	if rendered := model.View(); !strings.Contains(rendered, "Legacy") || !strings.Contains(rendered, "▾ Expired (1)") {
		t.Fatalf("x should expand the expired group\n%s", rendered)
	}
	model, _ = press(t, model, runeKey('x'))
	if rendered := model.View(); strings.Contains(rendered, "Legacy") {
		t.Fatalf("second x should collapse the expired group\n%s", rendered)
	}
}

func TestReferenceInputIsBoundedToTenCharacters(t *testing.T) {
	t.Parallel()

	model, _ := newAppModelForTest(t, nil)
	model = fillForm(t, model, "Contoso", "XSP12345678999")
	if got := model.Reference(); got != "XSP1234567" {
		t.Fatalf("reference = %q, want XSP1234567", got)
	}
}

func TestInvalidSubmitShowsErrorWithoutLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		company   string
		reference string
		want      string
	}{
		{name: "missing company", company: "", reference: "XSP1234567", want: license.MessageCompanyRequired},
		{name: "short reference", company: "Contoso", reference: "XSP12", want: license.MessageReferenceFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			model, source := newAppModelForTest(t, sampleResponse())
			model = fillForm(t, model, tt.company, tt.reference)
			model, cmd := press(t, model, tea.KeyMsg{Type: tea.KeyEnter})
			if cmd != nil {
				t.Fatal("invalid submit must not dispatch a lookup")
			}
			if model.Busy() {
				t.Fatal("invalid submit must not enter loading")
			}
			if rendered := model.View(); !strings.Contains(rendered, tt.want) {
				t.Fatalf("view missing error %q\n%s", tt.want, rendered)
			}
			if got := source.calls.Load(); got != 0 {
				t.Fatalf("lookup calls = %d, want 0", got)
			}
		})
	}
}

func TestEnterIgnoredWhileLoading(t *testing.T) {
	t.Parallel()

	model, source := newAppModelForTest(t, sampleResponse())
	model = fillForm(t, model, "Contoso", "XSP1234567")

	model, first := press(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if first == nil {
		t.Fatal("first submit should dispatch a lookup")
	}
	model, second := press(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if second != nil {
		t.Fatal("enter while loading must be ignored")
	}

	next, _ := model.Update(findLookupDone(t, first))
	model = mustAppModel(t, next)
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("lookup calls = %d, want 1", got)
	}
	if len(model.controller.History()) != 2 {
		t.Fatalf("history = %+v, want submit and completion only", model.controller.History())
	}
}

func TestEmptyResultShowsNoLicensesMessage(t *testing.T) {
	t.Parallel()

	model, _ := newAppModelForTest(t, license.RawResponse{})
	model = fillForm(t, model, "Contoso", "XSP1234567")
	model, cmd := press(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	next, _ := model.Update(findLookupDone(t, cmd))
	model = mustAppModel(t, next)

	rendered := model.View()
	if !strings.Contains(rendered, "No licenses found for this account.") {
		t.Fatalf("expected empty-result message\n%s", rendered)
	}
	if strings.Contains(rendered, "Expired (") {
		t.Fatalf("empty result must not show the expired disclosure\n%s", rendered)
	}
}

func TestShortcutsOnlyApplyOutsideInputs(t *testing.T) {
	t.Parallel()

	model, _ := newAppModelForTest(t, nil)
	model = typeText(t, model, "q?x")
	if model.Quitting() {
		t.Fatal("q typed into the company field must not quit")
	}
	if _, ok := model.CurrentOverlay(); ok {
		t.Fatal("? typed into the company field must not open help")
	}
	if got := model.company.Value(); got != "q?x" {
		t.Fatalf("company = %q, want q?x", got)
	}

	model, _ = press(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	model, _ = press(t, model, runeKey('?'))
	if top, ok := model.CurrentOverlay(); !ok || top.Kind != OverlayKindHelp {
		t.Fatalf("? outside inputs should open help, got %+v %v", top, ok)
	}
	if rendered := model.View(); !strings.Contains(rendered, "KEYBOARD SHORTCUTS") {
		t.Fatalf("help overlay not rendered\n%s", rendered)
	}

	model, _ = press(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := model.CurrentOverlay(); ok {
		t.Fatal("esc should close the help overlay")
	}

	model, cmd := press(t, model, runeKey('q'))
	if !model.Quitting() || cmd == nil {
		t.Fatal("q outside inputs should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("quit command result type = %T, want tea.QuitMsg", cmd())
	}
}

func TestCtrlCAlwaysQuits(t *testing.T) {
	t.Parallel()

	model, _ := newAppModelForTest(t, nil)
	model, cmd := press(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !model.Quitting() || cmd == nil {
		t.Fatal("ctrl+c should quit from a focused input")
	}
}

func TestFocusCyclesWithTab(t *testing.T) {
	t.Parallel()

	model, _ := newAppModelForTest(t, nil)
	want := []views.FormField{views.FieldReference, views.FieldNone, views.FieldCompany}
	for _, field := range want {
		model, _ = press(t, model, tea.KeyMsg{Type: tea.KeyTab})
		if model.Focus() != field {
			t.Fatalf("focus = %v, want %v", model.Focus(), field)
		}
	}
	model, _ = press(t, model, tea.KeyMsg{Type: tea.KeyShiftTab})
	if model.Focus() != views.FieldNone {
		t.Fatalf("shift+tab focus = %v, want FieldNone", model.Focus())
	}
}

func TestWindowSizeSwitchesLayoutMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		width int
		want  LayoutMode
	}{
		{name: "standard at threshold", width: 100, want: LayoutStandard},
		{name: "compact below threshold", width: 99, want: LayoutCompact},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			model, _ := newAppModelForTest(t, nil)
			next, _ := model.Update(tea.WindowSizeMsg{Width: tt.width, Height: 40})
			if got := mustAppModel(t, next).LayoutMode(); got != tt.want {
				t.Fatalf("layout mode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunRequiresController(t *testing.T) {
	t.Parallel()

	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil controller")
	}
}
