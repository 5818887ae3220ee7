package telegram

import (
	"strings"
	"testing"

	"hund/internal/headsup"
	"hund/internal/notif"
)

func TestRenderEscapesHTML(t *testing.T) {
	t.Parallel()
	it := &notif.Item{
		Key:         "k",
		PackageName: "com.example",
		Title:       "<b>raw</b>",
		Body:        "1 < 2 & 3 > 2",
	}
	out := render(headsup.TemplateBasic, it)
	if strings.Contains(out, "<b>raw</b>") {
		t.Fatalf("title not escaped: %q", out)
	}
	if !strings.Contains(out, "&lt;b&gt;raw&lt;/b&gt;") {
		t.Fatalf("expected escaped title in %q", out)
	}
	if !strings.Contains(out, "1 &lt; 2 &amp; 3 &gt; 2") {
		t.Fatalf("body not escaped: %q", out)
	}
}

func TestRenderTemplates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tpl   headsup.Template
		badge string
	}{
		{headsup.TemplateEmergency, "🚨"},
		{headsup.TemplateWarning, "⚠️"},
		{headsup.TemplateMessage, "💬"},
	}
	for _, tc := range cases {
		out := render(tc.tpl, &notif.Item{Title: "t"})
		if !strings.HasPrefix(out, tc.badge) {
			t.Fatalf("template %v: expected badge %q in %q", tc.tpl, tc.badge, out)
		}
	}
	// Basic has no badge.
	if out := render(headsup.TemplateBasic, &notif.Item{Title: "t"}); !strings.HasPrefix(out, "<b>") {
		t.Fatalf("basic template should start with the title: %q", out)
	}
}

func TestRenderInboxSummary(t *testing.T) {
	t.Parallel()
	it := &notif.Item{
		Title:       "Inbox",
		Body:        "line",
		SummaryText: "3 new messages",
	}
	out := render(headsup.TemplateInbox, it)
	if !strings.Contains(out, "<i>3 new messages</i>") {
		t.Fatalf("summary missing: %q", out)
	}
}

func TestRenderFallsBackToPackageName(t *testing.T) {
	t.Parallel()
	out := render(headsup.TemplateBasic, &notif.Item{PackageName: "com.example.app"})
	if !strings.Contains(out, "com.example.app") {
		t.Fatalf("expected package name fallback: %q", out)
	}
}
