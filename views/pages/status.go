package pages

import (
	"github.com/rohanthewiz/element"

	"dayplan/plan"
	"dayplan/session"
	"dayplan/views"
	"dayplan/views/components"
	"dayplan/views/partials"
)

// StatusPage is the one page this client serves: the current plan beside
// the health of the session keeping it fresh.
type StatusPage struct {
	Status  session.Status
	Plan    *plan.DayContext
	Digests []session.Digest       // newest first
	Journal []session.JournalEntry // oldest first, as the session keeps it
}

// Render produces the full HTML document.
func (p StatusPage) Render() string {
	return views.BaseLayout("", "", statusContent{page: p})
}

// statusContent lays out the page body: header, summary panel, the three
// plan columns, and the activity row.
type statusContent struct {
	page StatusPage
}

func (c statusContent) Render(b *element.Builder) (x any) {
	p := c.page

	element.RenderComponents(b, components.Header{
		PlanDate:  p.Status.PlanDate,
		Connected: p.Status.Connected,
	})

	b.DivClass("app-container").R(
		element.RenderComponents(b, components.SummaryPanel{Status: p.Status}),

		b.Main("class", "main-content").R(
			// Day notes, when the plan carries any
			b.Wrap(func() {
				if p.Plan == nil || p.Plan.Day == nil {
					return
				}
				day := plan.AsDay(p.Plan.Day)
				if day.Notes == "" {
					return
				}
				b.DivClass("day-notes").R(
					b.H2().T("Notes"),
					b.P().T(day.Notes),
				)
			}),

			b.DivClass("plan-columns").R(
				b.DivClass("plan-column").R(
					b.H2().F("Tasks (%d)", len(p.planTasks())),
					b.T(partials.RenderTaskList(p.planTasks())),
				),
				b.DivClass("plan-column").R(
					b.H2().F("Events (%d)", len(p.planEvents())),
					b.T(partials.RenderEventList(p.planEvents())),
				),
				b.DivClass("plan-column").R(
					b.H2().F("Routines (%d)", len(p.planRoutines())),
					b.T(partials.RenderRoutineList(p.planRoutines())),
				),
			),

			b.DivClass("activity-row").R(
				b.DivClass("activity-column").R(
					b.H2().T("Activity"),
					b.T(partials.RenderDigestList(p.Digests)),
				),
				b.DivClass("activity-column").R(
					b.H2().T("Journal"),
					b.T(partials.RenderJournalList(newestFirst(p.Journal))),
				),
			),
		),
	)
	return
}

func (p StatusPage) planTasks() []plan.Document {
	if p.Plan == nil {
		return nil
	}
	return p.Plan.Tasks
}

func (p StatusPage) planEvents() []plan.Document {
	if p.Plan == nil {
		return nil
	}
	return p.Plan.Events
}

func (p StatusPage) planRoutines() []plan.Document {
	if p.Plan == nil {
		return nil
	}
	return p.Plan.Routines
}

// newestFirst reverses the session's oldest-first journal for display.
func newestFirst(entries []session.JournalEntry) []session.JournalEntry {
	if len(entries) < 2 {
		return entries
	}
	out := make([]session.JournalEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
