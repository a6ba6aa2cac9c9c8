package form

import (
	"time"

	"rental_app_backend/internal/models"
)

// State is an immutable snapshot of one applicant's progress through the form.
// Reduce never mutates its input; every transition returns a new State.
type State struct {
	DraftID       string
	Current       Section
	Values        Values
	Documents     []models.Document
	CoApplicants  []models.CoApplicant
	ApplicationID string
	Summary       []SummaryItem
	Submitted     bool
	UpdatedAt     time.Time
}

// NewState returns an empty form positioned at the first section.
func NewState(draftID string, now time.Time) State {
	return State{DraftID: draftID, Current: SectionProperty, Values: Values{}, UpdatedAt: now}
}

func (s State) clone() State {
	c := s
	c.Values = s.Values.Clone()
	c.Documents = append([]models.Document(nil), s.Documents...)
	c.CoApplicants = append([]models.CoApplicant(nil), s.CoApplicants...)
	c.Summary = append([]SummaryItem(nil), s.Summary...)
	return c
}

// Step is one entry of the progress indicator.
type Step struct {
	Section   Section `json:"section"`
	Title     string  `json:"title"`
	Active    bool    `json:"active"`
	Completed bool    `json:"completed"`
}

// Progress is the progress bar state derived from the current section.
type Progress struct {
	Percent int    `json:"percent"`
	Steps   []Step `json:"steps"`
}

// Progress derives the progress indicator: (current-1)/(sections-1) percent,
// earlier sections completed and the current one active.
func (s State) Progress() Progress {
	p := Progress{Percent: int(s.Current-1) * 100 / (SectionCount - 1)}
	for _, sec := range Sections() {
		p.Steps = append(p.Steps, Step{
			Section:   sec,
			Title:     sec.Title(),
			Active:    sec == s.Current,
			Completed: sec < s.Current,
		})
	}
	return p
}

// Snapshot converts the state into its autosave form, dropping the identity number.
func (s State) Snapshot() models.DraftSnapshot {
	return models.DraftSnapshot{
		DraftID:       s.DraftID,
		Section:       int(s.Current),
		Values:        map[string]interface{}(s.Values.WithoutSensitive()),
		Documents:     append([]models.Document(nil), s.Documents...),
		CoApplicants:  append([]models.CoApplicant(nil), s.CoApplicants...),
		ApplicationID: s.ApplicationID,
		Submitted:     s.Submitted,
		SavedAt:       s.UpdatedAt,
	}
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Advance moves forward one section if the current section validates.
type Advance struct{}

// Retreat moves back one section without validating.
type Retreat struct{}

// SetFields merges field values. A nil value clears the field.
type SetFields struct {
	Values map[string]interface{}
}

// SetCoApplicants replaces the co-applicant list.
type SetCoApplicants struct {
	CoApplicants []models.CoApplicant
}

// AttachDocument appends an uploaded document reference.
type AttachDocument struct {
	Document models.Document
}

// Restore rebuilds the form from an autosave snapshot.
type Restore struct {
	Snapshot models.DraftSnapshot
}

// StartOver discards everything and returns to the first section.
type StartOver struct{}

// MarkSubmitted records the persisted application id and freezes the form.
type MarkSubmitted struct {
	ApplicationID string
}

func (Advance) isEvent()         {}
func (Retreat) isEvent()         {}
func (SetFields) isEvent()       {}
func (SetCoApplicants) isEvent() {}
func (AttachDocument) isEvent()  {}
func (Restore) isEvent()         {}
func (StartOver) isEvent()       {}
func (MarkSubmitted) isEvent()   {}

// Env supplies the impure inputs of a transition.
type Env struct {
	Now        func() time.Time
	AllocateID func() string
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Result describes what a transition did.
type Result struct {
	Transitioned bool
	Errors       FieldErrors
	Warnings     []string
}

// Reduce applies ev to s and returns the next state.
// A submitted form only accepts StartOver and Restore.
func Reduce(s State, ev Event, env Env) (State, Result) {
	now := env.now()
	if s.Submitted {
		switch ev.(type) {
		case StartOver, Restore:
		default:
			return s, Result{}
		}
	}
	if !s.Current.Valid() {
		s.Current = SectionProperty
	}

	switch e := ev.(type) {
	case Advance:
		return advance(s, env, now)

	case Retreat:
		if s.Current <= SectionProperty {
			return s, Result{}
		}
		next := s.clone()
		next.Current--
		next.UpdatedAt = now
		return next, Result{Transitioned: true}

	case SetFields:
		next := s.clone()
		for name, raw := range e.Values {
			if IsSensitiveField(name) {
				continue
			}
			val, ok := normalizeValue(raw)
			if !ok {
				delete(next.Values, name)
				continue
			}
			next.Values[name] = val
		}
		next.UpdatedAt = now
		if next.Current == SectionReview {
			next.Summary = BuildSummary(next)
		}
		return next, Result{Warnings: Warnings(next.Values)}

	case SetCoApplicants:
		next := s.clone()
		next.CoApplicants = append([]models.CoApplicant(nil), e.CoApplicants...)
		next.UpdatedAt = now
		if next.Current == SectionReview {
			next.Summary = BuildSummary(next)
		}
		return next, Result{}

	case AttachDocument:
		next := s.clone()
		next.Documents = append(next.Documents, e.Document)
		next.UpdatedAt = now
		if next.Current == SectionReview {
			next.Summary = BuildSummary(next)
		}
		return next, Result{}

	case Restore:
		next := NewState(s.DraftID, now)
		if e.Snapshot.DraftID != "" {
			next.DraftID = e.Snapshot.DraftID
		}
		next.Current = Section(e.Snapshot.Section)
		if !next.Current.Valid() {
			next.Current = SectionProperty
		}
		for name, raw := range e.Snapshot.Values {
			if IsSensitiveField(name) {
				continue
			}
			if val, ok := normalizeValue(raw); ok {
				next.Values[name] = val
			}
		}
		next.Documents = append([]models.Document(nil), e.Snapshot.Documents...)
		next.CoApplicants = append([]models.CoApplicant(nil), e.Snapshot.CoApplicants...)
		next.ApplicationID = e.Snapshot.ApplicationID
		next.Submitted = e.Snapshot.Submitted
		if !e.Snapshot.SavedAt.IsZero() {
			next.UpdatedAt = e.Snapshot.SavedAt
		}
		if next.Current == SectionReview {
			next.Summary = BuildSummary(next)
		}
		return next, Result{Transitioned: next.Current != s.Current, Warnings: Warnings(next.Values)}

	case StartOver:
		return NewState(s.DraftID, now), Result{Transitioned: s.Current != SectionProperty}

	case MarkSubmitted:
		next := s.clone()
		next.ApplicationID = e.ApplicationID
		next.Submitted = true
		next.UpdatedAt = now
		return next, Result{}
	}
	return s, Result{}
}

func advance(s State, env Env, now time.Time) (State, Result) {
	if s.Current >= SectionReview {
		return s, Result{}
	}
	if errs := ValidateSection(s.Current, s.Values, now); !errs.Empty() {
		return s, Result{Errors: errs, Warnings: Warnings(s.Values)}
	}

	next := s.clone()
	next.Current++
	next.UpdatedAt = now
	if next.Current == SectionReview {
		if next.ApplicationID == "" && env.AllocateID != nil {
			next.ApplicationID = env.AllocateID()
		}
		next.Summary = BuildSummary(next)
	}
	return next, Result{Transitioned: true, Warnings: Warnings(next.Values)}
}
