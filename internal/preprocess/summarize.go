package preprocess

import (
	"fmt"

	"hund/internal/notif"
)

// AppNameResolver maps a package name to the app's display name for
// synthesized group headers.
type AppNameResolver interface {
	DisplayName(packageName string) string
}

// StaticAppNames is a config-driven resolver. Unknown packages fall back to
// the package name itself.
type StaticAppNames map[string]string

func (m StaticAppNames) DisplayName(packageName string) string {
	if v, ok := m[packageName]; ok && v != "" {
		return v
	}
	return packageName
}

// Summarize fills in derived header text for groups whose header the platform
// synthesized (override group key present). Explicitly authored titles and
// summaries are never overwritten; the derived text lives on the group so the
// header item itself stays immutable.
func Summarize(groups []*notif.Group, names AppNameResolver) []*notif.Group {
	for _, g := range groups {
		if !g.IsGroup() {
			continue
		}
		header := g.Header()
		if header.OverrideGroupKey == "" {
			continue
		}
		if header.BigTitle == "" && names != nil {
			g.HeaderText.Title = names.DisplayName(header.PackageName)
		}
		if header.SummaryText == "" {
			g.HeaderText.Summary = childCountSummary(g.ChildCount())
		}
	}
	return groups
}

func childCountSummary(n int) string {
	if n == 1 {
		return "1 new notification"
	}
	return fmt.Sprintf("%d new notifications", n)
}
