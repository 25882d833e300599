package components

import (
	"github.com/rohanthewiz/element"
)

// Header is the top bar: app title, the plan date being tracked, the feed
// connectivity badge, and the manual sync control.
type Header struct {
	PlanDate  string
	Connected bool
}

func (h Header) Render(b *element.Builder) (x any) {
	b.Header("id", "main-header").R(
		b.DivClass("header-content").R(
			// App title and the date this plan covers
			b.DivClass("header-left").R(
				b.H1Class("app-title").R(
					b.A("href", "/").T("DayPlan"),
				),
				b.SpanClass("plan-date").T(h.PlanDate),
			),

			// Connectivity badge and actions
			b.DivClass("header-right").R(
				b.Wrap(func() {
					if h.Connected {
						b.SpanClass("badge badge-live").T("feed: live")
					} else {
						b.SpanClass("badge badge-offline").T("feed: offline")
					}
				}),
				b.Button("class", "btn btn-primary",
					"onclick", "syncNow()",
					"title", "Ask the feed for a full snapshot").T("Sync Now"),
			),
		),
	)
	return
}
