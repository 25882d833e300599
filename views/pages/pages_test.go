package pages

import (
	"strings"
	"testing"
	"time"

	"dayplan/plan"
	"dayplan/session"
)

// samplePage builds a status page with one of everything.
func samplePage() StatusPage {
	at := time.Date(2026, 8, 25, 11, 5, 0, 0, time.Local)
	return StatusPage{
		Status: session.Status{
			ClientID:       "client-1",
			PlanDate:       "2026-08-25",
			Connected:      true,
			TransportState: "open",
			Fingerprint:    "43258cff783fe7036d8a43033f830adf",
			TaskCount:      2,
		},
		Plan: &plan.DayContext{
			Day: plan.Document{"date": "2026-08-25", "notes": "focus day"},
			Tasks: []plan.Document{
				{"id": "t1", "name": "buy milk", "status": "NOT_STARTED"},
				{"id": "t2", "name": "write report", "status": "COMPLETE"},
			},
			Events: []plan.Document{
				{"id": "e1", "title": "standup", "starts_at": "09:30"},
			},
		},
		Digests: []session.Digest{
			{At: at, Kind: "changes", Text: "1 task updated"},
		},
		Journal: []session.JournalEntry{
			{At: at, Verb: "added", Label: "task", EntityID: "t1", Summary: "buy milk"},
			{At: at, Verb: "updated", Label: "task", EntityID: "t2", Summary: "write [+the ]report"},
		},
	}
}

// TestStatusPageRendersWholeDocument verifies the page is a complete HTML
// document carrying every section.
func TestStatusPageRendersWholeDocument(t *testing.T) {
	html := samplePage().Render()

	for _, want := range []string{
		"<html", "<head>", "<body>",
		"<title>DayPlan</title>",
		"feed: live",
		"2026-08-25",
		"focus day",
		"Tasks (2)",
		"Events (1)",
		"Routines (0)",
		"buy milk",
		"standup",
		"1 task updated",
		"EventSource", // the SSE script rides every page
	} {
		if !strings.Contains(html, want) {
			t.Errorf("status page missing %q", want)
		}
	}
}

// TestStatusPageJournalNewestFirst verifies display order is reversed from
// the session's oldest-first journal.
func TestStatusPageJournalNewestFirst(t *testing.T) {
	html := samplePage().Render()

	journalStart := strings.Index(html, "journal-list")
	if journalStart == -1 {
		t.Fatal("journal list missing from the page")
	}
	tail := html[journalStart:]

	updated := strings.Index(tail, "write [+the ]report")
	added := strings.Index(tail, ">buy milk<")
	if updated == -1 || added == -1 {
		t.Fatal("journal entries missing from the page")
	}
	if updated > added {
		t.Error("journal should render newest entries first")
	}
}

// TestStatusPageOfflineBadge verifies the disconnected rendering.
func TestStatusPageOfflineBadge(t *testing.T) {
	page := samplePage()
	page.Status.Connected = false

	html := page.Render()
	if !strings.Contains(html, "feed: offline") {
		t.Error("offline page should show the offline badge")
	}
}

// TestStatusPageNilPlan verifies the page survives a cold, empty session.
func TestStatusPageNilPlan(t *testing.T) {
	page := StatusPage{
		Status: session.Status{PlanDate: "2026-08-25"},
	}

	html := page.Render()
	for _, want := range []string{
		"Tasks (0)",
		"No tasks yet",
		"No events today",
		"No routines",
		"No activity yet",
		"No changes applied yet",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("empty status page missing %q", want)
		}
	}
}
