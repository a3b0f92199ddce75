package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/diagkit/licensecheck/internal/license"
)

// Phase is the resting state of the check flow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseLoading    Phase = "loading"
	PhaseResult     Phase = "result"
)

// EventKind names an input to the check flow.
type EventKind string

const (
	EventSubmit          EventKind = "submit"
	EventLookupCompleted EventKind = "lookup_completed"
	EventToggleExpired   EventKind = "toggle_expired"
)

// ErrSubmissionInFlight is returned when a submission arrives while a lookup is pending.
var ErrSubmissionInFlight = errors.New("a license lookup is already in progress")

// Event is one input to Transition.
type Event struct {
	Kind      EventKind
	Company   string
	Reference string
	Response  license.RawResponse
}

// Submit builds a submit event.
func Submit(company, reference string) Event {
	return Event{Kind: EventSubmit, Company: company, Reference: reference}
}

// LookupCompleted builds a lookup completion event.
func LookupCompleted(raw license.RawResponse) Event {
	return Event{Kind: EventLookupCompleted, Response: raw}
}

// ToggleExpired builds an expired-group toggle event.
func ToggleExpired() Event {
	return Event{Kind: EventToggleExpired}
}

// View is everything a presentation surface needs to render the check flow.
type View struct {
	Phase           Phase
	Company         string
	Reference       string
	Error           string
	Groups          license.Groups
	HasResult       bool
	ExpiredExpanded bool
}

// NewView returns the initial idle view.
func NewView() View {
	return View{Phase: PhaseIdle, Groups: emptyGroups()}
}

// Busy reports whether a lookup is pending.
func (v View) Busy() bool {
	return v.Phase == PhaseLoading
}

// NoLicenses reports a completed lookup that returned nothing.
func (v View) NoLicenses() bool {
	return v.HasResult && v.Groups.Len() == 0
}

// NoActive reports a completed lookup with expired licenses only.
func (v View) NoActive() bool {
	return v.HasResult && len(v.Groups.Active) == 0 && len(v.Groups.Expired) > 0
}

func (v View) clone() View {
	v.Groups = license.Groups{
		Active:  slices.Clone(v.Groups.Active),
		Expired: slices.Clone(v.Groups.Expired),
	}
	if v.Groups.Active == nil {
		v.Groups.Active = []license.Alert{}
	}
	if v.Groups.Expired == nil {
		v.Groups.Expired = []license.Alert{}
	}
	return v
}

// Effect is a side effect requested by a transition. The caller performs it.
type Effect interface {
	effectName() string
}

// BusyChanged asks the surface to show or hide its busy indicator.
type BusyChanged struct {
	Busy bool
}

// DispatchLookup asks the caller to run the lookup for Reference.
type DispatchLookup struct {
	Reference string
}

// ShowError asks the surface to display a validation message.
type ShowError struct {
	Message string
}

func (BusyChanged) effectName() string    { return "busy_changed" }
func (DispatchLookup) effectName() string { return "dispatch_lookup" }
func (ShowError) effectName() string      { return "show_error" }

// EffectName returns a stable label for an effect, used in logs and spans.
func EffectName(effect Effect) string {
	if effect == nil {
		return ""
	}
	return effect.effectName()
}

// TransitionRecord stores one accepted transition for local history.
type TransitionRecord struct {
	From      Phase
	To        Phase
	Via       Phase
	Event     EventKind
	Effects   []string
	Timestamp time.Time
}

// IllegalTransitionError is returned for an event the current phase does not accept.
type IllegalTransitionError struct {
	From   Phase
	Event  EventKind
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "event not accepted in this phase"
	}
	return fmt.Sprintf("cannot apply %q in phase %q: %s", e.Event, e.From, reason)
}

// Is enables errors.Is checks for illegal transition failures.
func (e *IllegalTransitionError) Is(target error) bool {
	_, ok := target.(*IllegalTransitionError)
	return ok
}

var allowedTransitions = map[Phase]map[EventKind]struct{}{
	PhaseIdle: {
		EventSubmit:        {},
		EventToggleExpired: {},
	},
	PhaseLoading: {
		EventLookupCompleted: {},
		EventToggleExpired:   {},
	},
	PhaseResult: {
		EventSubmit:        {},
		EventToggleExpired: {},
	},
}

// Accepts reports whether phase accepts event without error.
func Accepts(phase Phase, event EventKind) bool {
	events, ok := allowedTransitions[phase]
	if !ok {
		return false
	}
	_, ok = events[event]
	return ok
}

// Transition is the pure check-flow state machine. It never performs I/O;
// lookups are requested through a DispatchLookup effect.
func Transition(view View, event Event) (View, []Effect, error) {
	if event.Kind == EventSubmit && view.Phase == PhaseLoading {
		return view, nil, ErrSubmissionInFlight
	}
	if !Accepts(view.Phase, event.Kind) {
		return view, nil, &IllegalTransitionError{From: view.Phase, Event: event.Kind}
	}

	switch event.Kind {
	case EventSubmit:
		return submit(event)
	case EventLookupCompleted:
		next := view
		next.Phase = PhaseResult
		next.Groups = license.Pipeline(event.Response)
		next.HasResult = true
		next.ExpiredExpanded = false
		next.Error = ""
		return next, []Effect{BusyChanged{Busy: false}}, nil
	case EventToggleExpired:
		if view.Phase != PhaseResult {
			return view, nil, nil
		}
		next := view
		next.ExpiredExpanded = !view.ExpiredExpanded
		return next, nil, nil
	default:
		return view, nil, &IllegalTransitionError{From: view.Phase, Event: event.Kind, Reason: "unknown event"}
	}
}

// submit always clears the previous result, even when validation then fails.
func submit(event Event) (View, []Effect, error) {
	next := View{
		Phase:     PhaseValidating,
		Company:   event.Company,
		Reference: event.Reference,
		Groups:    emptyGroups(),
	}

	if message := license.ValidateSubmission(event.Company, event.Reference); message != "" {
		next.Phase = PhaseIdle
		next.Error = message
		return next, []Effect{ShowError{Message: message}}, nil
	}

	next.Phase = PhaseLoading
	return next, []Effect{
		BusyChanged{Busy: true},
		DispatchLookup{Reference: event.Reference},
	}, nil
}

func emptyGroups() license.Groups {
	return license.Groups{Active: []license.Alert{}, Expired: []license.Alert{}}
}
