package partials

import (
	"fmt"
	"strings"

	"github.com/rohanthewiz/element"

	"dayplan/plan"
	"dayplan/session"
)

// RenderTaskList renders the day's tasks as an HTML partial
func RenderTaskList(tasks []plan.Document) string {
	b := element.NewBuilder()

	b.DivClass("task-list").R(
		func() (x any) {
			if len(tasks) == 0 {
				b.PClass("empty").T("No tasks yet")
				return
			}
			b.Ul().R(
				func() (x any) {
					for _, doc := range tasks {
						task := plan.AsTask(doc)
						b.Li("class", "task-item task-"+statusClass(task.Status)).R(
							b.SpanClass("task-status").T(statusGlyph(task.Status)),
							b.SpanClass("task-name").T(task.Name),
							b.Wrap(func() {
								if task.Time != "" {
									b.SpanClass("task-time").T(task.Time)
								}
								if task.Status != plan.StatusComplete {
									b.Button("class", "btn btn-sm",
										"onclick", fmt.Sprintf("completeTask('%s')", task.ID)).T("Done")
								}
							}),
						)
					}
					return
				}(),
			)
			return
		}(),
	)

	return b.String()
}

// RenderEventList renders the day's calendar entries as an HTML partial
func RenderEventList(events []plan.Document) string {
	b := element.NewBuilder()

	b.DivClass("event-list").R(
		func() (x any) {
			if len(events) == 0 {
				b.PClass("empty").T("No events today")
				return
			}
			b.Ul().R(
				func() (x any) {
					for _, doc := range events {
						event := plan.AsEvent(doc)
						b.Li("class", "event-item").R(
							b.SpanClass("event-when").T(eventWhen(event)),
							b.SpanClass("event-title").T(event.Title),
							b.Wrap(func() {
								if event.Location != "" {
									b.SpanClass("event-location").T(event.Location)
								}
							}),
						)
					}
					return
				}(),
			)
			return
		}(),
	)

	return b.String()
}

// RenderRoutineList renders the active routines as an HTML partial
func RenderRoutineList(routines []plan.Document) string {
	b := element.NewBuilder()

	b.DivClass("routine-list").R(
		func() (x any) {
			if len(routines) == 0 {
				b.PClass("empty").T("No routines")
				return
			}
			b.Ul().R(
				func() (x any) {
					for _, doc := range routines {
						routine := plan.AsRoutine(doc)
						b.Li("class", "routine-item").R(
							b.SpanClass("routine-name").T(routine.Name),
							b.Wrap(func() {
								if routine.Time != "" {
									b.SpanClass("routine-time").T(routine.Time)
								}
								if !routine.Active {
									b.SpanClass("routine-paused").T("paused")
								}
							}),
						)
					}
					return
				}(),
			)
			return
		}(),
	)

	return b.String()
}

// RenderDigestList renders recent digests newest-first. The list carries
// the id the SSE script prepends into, so live updates land in place.
func RenderDigestList(digests []session.Digest) string {
	b := element.NewBuilder()

	b.Ul("id", "digest-list", "class", "digest-list").R(
		func() (x any) {
			if len(digests) == 0 {
				b.Li("id", "digest-empty", "class", "empty").T("No activity yet")
				return
			}
			for _, d := range digests {
				b.Li("class", "digest-item digest-"+d.Kind).R(
					b.SpanClass("digest-time").T(d.At.Format("15:04:05")),
					b.SpanClass("digest-text").T(d.Text),
				)
			}
			return
		}(),
	)

	return b.String()
}

// RenderJournalList renders applied-change history in the order given.
func RenderJournalList(entries []session.JournalEntry) string {
	b := element.NewBuilder()

	b.UlClass("journal-list").R(
		func() (x any) {
			if len(entries) == 0 {
				b.Li("class", "empty").T("No changes applied yet")
				return
			}
			for _, e := range entries {
				b.Li("class", "journal-item").R(
					b.SpanClass("journal-time").T(e.At.Format("15:04:05")),
					b.SpanClass("verb-"+e.Verb).T(e.Verb),
					b.SpanClass("journal-label").T(e.Label),
					b.Wrap(func() {
						if e.Summary != "" {
							b.SpanClass("journal-diff").T(e.Summary)
						}
					}),
				)
			}
			return
		}(),
	)

	return b.String()
}

// statusClass maps a wire status onto a css class suffix.
func statusClass(status string) string {
	if status == "" {
		status = plan.StatusNotStarted
	}
	return strings.ToLower(strings.ReplaceAll(status, "_", "-"))
}

// statusGlyph maps a wire status onto its list marker.
func statusGlyph(status string) string {
	switch status {
	case plan.StatusComplete:
		return "✓"
	case plan.StatusInProgress:
		return "◐"
	case plan.StatusSkipped:
		return "⊘"
	}
	return "○"
}

// eventWhen renders the time range of an event.
func eventWhen(event plan.Event) string {
	if event.AllDay {
		return "all day"
	}
	if event.StartsAt == "" {
		return ""
	}
	if event.EndsAt == "" {
		return event.StartsAt
	}
	return event.StartsAt + " - " + event.EndsAt
}
