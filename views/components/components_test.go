package components

import (
	"strings"
	"testing"
	"time"

	"github.com/rohanthewiz/element"

	"dayplan/session"
)

// TestHeaderConnected verifies the live badge and the plan date render.
func TestHeaderConnected(t *testing.T) {
	b := element.NewBuilder()
	header := Header{PlanDate: "2026-08-25", Connected: true}

	header.Render(b)
	html := b.String()

	if !strings.Contains(html, "2026-08-25") {
		t.Error("header should show the plan date")
	}
	if !strings.Contains(html, "feed: live") {
		t.Error("header should show the live badge when connected")
	}
	if strings.Contains(html, "feed: offline") {
		t.Error("header should not show the offline badge when connected")
	}
	if !strings.Contains(html, "syncNow()") {
		t.Error("header should wire the Sync Now button to syncNow()")
	}
}

// TestHeaderDisconnected verifies the offline badge renders when the feed
// is down.
func TestHeaderDisconnected(t *testing.T) {
	b := element.NewBuilder()
	header := Header{PlanDate: "2026-08-25", Connected: false}

	header.Render(b)
	html := b.String()

	if !strings.Contains(html, "feed: offline") {
		t.Error("header should show the offline badge when disconnected")
	}
	if strings.Contains(html, "badge-live") {
		t.Error("header should not render the live badge class when disconnected")
	}
}

// TestSummaryPanelStats verifies the counters and identifiers land in the
// panel.
func TestSummaryPanelStats(t *testing.T) {
	applied := time.Date(2026, 8, 25, 14, 30, 0, 0, time.Local)
	b := element.NewBuilder()
	panel := SummaryPanel{
		Status: session.Status{
			ClientID:            "0f3c9a7e-1111-2222-3333-444455556666",
			TransportState:      "open",
			Fingerprint:         "43258cff783fe7036d8a43033f830adf",
			SnapshotsReceived:   2,
			BatchesApplied:      7,
			ChangesApplied:      19,
			ResyncsRequested:    3,
			TasksCompletedToday: 4,
			LastApplied:         &applied,
		},
	}

	panel.Render(b)
	html := b.String()

	for _, want := range []string{
		"open",
		"0f3c9a7e-111...",
		"43258cff783f...",
		">2<", ">7<", ">19<", ">3<", ">4<",
		"Last applied",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("summary panel missing %q", want)
		}
	}
}

// TestShortID verifies short values pass through untouched.
func TestShortID(t *testing.T) {
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID(abc) = %q", got)
	}
	if got := ShortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("ShortID long = %q", got)
	}
}
