package views

import (
	"github.com/rohanthewiz/element"
)

// baseStyles is the one inline stylesheet for the status surface. The
// client serves no static assets, so every page must be self-contained.
const baseStyles = `
	* { box-sizing: border-box; }
	body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
	       background: #f4f2ec; color: #2b2b2b; }
	a { color: inherit; text-decoration: none; }

	#main-header { background: #2f4858; color: #fdfcf8; padding: 0.6rem 1.2rem; }
	.header-content { display: flex; align-items: center; justify-content: space-between; }
	.header-left { display: flex; align-items: baseline; gap: 0.8rem; }
	.app-title { margin: 0; font-size: 1.3rem; }
	.plan-date { opacity: 0.8; font-size: 0.95rem; }
	.header-right { display: flex; align-items: center; gap: 0.8rem; }

	.badge { padding: 0.15rem 0.6rem; border-radius: 1rem; font-size: 0.8rem; }
	.badge-live { background: #2e7d32; color: #fff; }
	.badge-offline { background: #b23b3b; color: #fff; }

	.btn { border: none; border-radius: 4px; padding: 0.35rem 0.8rem; cursor: pointer; }
	.btn-primary { background: #e0a437; color: #2b2b2b; font-weight: 600; }
	.btn-sm { font-size: 0.8rem; padding: 0.2rem 0.6rem; background: #d8d4c8; }

	.app-container { display: flex; gap: 1.2rem; padding: 1.2rem; align-items: flex-start; }
	.summary-panel { background: #fdfcf8; border: 1px solid #ddd8cb; border-radius: 6px;
	                 padding: 0.8rem 1rem; min-width: 230px; }
	.panel-title { margin: 0 0 0.6rem 0; font-size: 1rem; }
	.stat-list { list-style: none; margin: 0; padding: 0; }
	.stat-list li { display: flex; justify-content: space-between; gap: 1rem;
	                padding: 0.2rem 0; font-size: 0.85rem; }
	.stat-label { opacity: 0.7; }
	.stat-value { font-family: ui-monospace, monospace; }
	.last-applied { font-size: 0.8rem; opacity: 0.7; margin: 0.6rem 0 0 0; }

	.main-content { flex: 1; }
	.day-notes { background: #fdfcf8; border: 1px solid #ddd8cb; border-radius: 6px;
	             padding: 0.2rem 1rem 0.8rem 1rem; margin-bottom: 1.2rem; }
	.plan-columns { display: grid; grid-template-columns: repeat(3, 1fr); gap: 1.2rem; }
	.plan-column h2, .activity-column h2, .day-notes h2 { font-size: 1rem; margin: 0.8rem 0 0.4rem 0; }

	.task-list ul, .event-list ul, .routine-list ul,
	.digest-list, .journal-list { list-style: none; margin: 0; padding: 0; }
	.task-item, .event-item, .routine-item { background: #fdfcf8; border: 1px solid #ddd8cb;
	       border-radius: 6px; padding: 0.45rem 0.7rem; margin-bottom: 0.4rem;
	       display: flex; align-items: center; gap: 0.5rem; }
	.task-name, .event-title, .routine-name { flex: 1; }
	.task-complete .task-name { text-decoration: line-through; opacity: 0.6; }
	.task-time, .event-when, .event-location, .routine-time { font-size: 0.8rem; opacity: 0.7; }
	.empty { opacity: 0.6; font-size: 0.9rem; }

	.activity-row { display: grid; grid-template-columns: 1fr 1fr; gap: 1.2rem; margin-top: 1.4rem; }
	.digest-item, .journal-item { padding: 0.3rem 0.2rem; border-bottom: 1px solid #e6e2d6;
	       font-size: 0.85rem; display: flex; gap: 0.6rem; }
	.digest-time, .journal-time { opacity: 0.6; font-family: ui-monospace, monospace; }
	.journal-diff { font-family: ui-monospace, monospace; }
	.verb-added { color: #2e7d32; }
	.verb-removed { color: #b23b3b; }
	.verb-updated { color: #8a6d1a; }
`

// BaseLayout creates the base HTML structure for all pages
// Takes CSS styles, additional head content, and a body component
func BaseLayout(styles string, headContent string, bodyComponent element.Component) string {
	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Meta("charset", "UTF-8"),
			b.Meta("viewport", "width=device-width, initial-scale=1.0"),
			b.Title().T("DayPlan"),

			b.Style().T(baseStyles),

			// Custom styles if provided
			b.Wrap(func() {
				if styles != "" {
					b.Style().T(styles)
				}
			}),

			// Additional head content if provided
			b.Wrap(func() {
				if headContent != "" {
					b.T(headContent)
				}
			}),
		),
		b.Body().R(
			element.RenderComponents(b, bodyComponent),

			// Page actions and the SSE connection. Incoming digests are
			// prepended to the live activity list without a reload.
			b.Script().T(`
				function syncNow() {
					fetch("/api/v1/sync", {method: "POST"})
						.then(() => location.reload())
						.catch((err) => console.error("Sync failed:", err));
				}

				function completeTask(id) {
					fetch("/api/v1/tasks/" + id + "/complete", {method: "POST"})
						.then(() => location.reload())
						.catch((err) => console.error("Complete failed:", err));
				}

				if (typeof(EventSource) !== "undefined") {
					const evtSource = new EventSource("/events");
					evtSource.onmessage = function(event) {
						const list = document.getElementById("digest-list");
						if (!list) { return; }
						let text = event.data;
						try {
							const digest = JSON.parse(event.data);
							if (digest && digest.text) { text = digest.text; }
						} catch (err) { /* show the raw payload */ }
						const item = document.createElement("li");
						item.className = "digest-item";
						item.textContent = text;
						list.prepend(item);
						const empty = document.getElementById("digest-empty");
						if (empty) { empty.remove(); }
					};
					evtSource.onerror = function(err) {
						console.error("SSE error:", err);
					};
				}
			`),
		),
	)

	return b.String()
}
