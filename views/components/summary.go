package components

import (
	"strconv"
	"time"

	"github.com/rohanthewiz/element"

	"dayplan/session"
)

// SummaryPanel shows session health down the side of the status page:
// transport state, fingerprint, and the apply counters.
type SummaryPanel struct {
	Status session.Status
}

func (p SummaryPanel) Render(b *element.Builder) (x any) {
	b.Aside("id", "summary", "class", "summary-panel").R(
		b.H3Class("panel-title").T("Session"),
		b.UlClass("stat-list").R(
			p.stat(b, "Client", ShortID(p.Status.ClientID)),
			p.stat(b, "Transport", p.Status.TransportState),
			p.stat(b, "Fingerprint", ShortID(p.Status.Fingerprint)),
			p.stat(b, "Snapshots", strconv.Itoa(p.Status.SnapshotsReceived)),
			p.stat(b, "Batches", strconv.Itoa(p.Status.BatchesApplied)),
			p.stat(b, "Changes", strconv.Itoa(p.Status.ChangesApplied)),
			p.stat(b, "Resyncs", strconv.Itoa(p.Status.ResyncsRequested)),
			p.stat(b, "Done today", strconv.Itoa(p.Status.TasksCompletedToday)),
		),
		b.Wrap(func() {
			if p.Status.LastApplied != nil {
				b.PClass("last-applied").F("Last applied %s", p.Status.LastApplied.Format(time.Kitchen))
			}
		}),
	)
	return
}

func (p SummaryPanel) stat(b *element.Builder, label, value string) (x any) {
	b.Li().R(
		b.SpanClass("stat-label").T(label),
		b.SpanClass("stat-value").T(value),
	)
	return
}

// ShortID trims long identifiers (UUIDs, fingerprints) down to a readable
// prefix for display.
func ShortID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "..."
}
