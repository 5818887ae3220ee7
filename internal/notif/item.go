package notif

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is a closed set of notification categories.
// Unknown categories from the wire map to CategoryNone.
type Category int

const (
	CategoryNone Category = iota
	CategoryEmergency
	CategoryWarning
	CategoryInformation
	CategoryMessage
	CategoryCall
	CategoryNavigation
	CategoryTransport
)

var categoryNames = map[Category]string{
	CategoryNone:        "none",
	CategoryEmergency:   "emergency",
	CategoryWarning:     "warning",
	CategoryInformation: "information",
	CategoryMessage:     "message",
	CategoryCall:        "call",
	CategoryNavigation:  "navigation",
	CategoryTransport:   "transport",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "none"
}

// ParseCategory maps a wire string to a Category.
// Empty and unrecognized strings both map to CategoryNone.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == s {
			return c
		}
	}
	return CategoryNone
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	*c = ParseCategory(s)
	return nil
}

// Flags is the alerting-relevant subset of the posted notification's flag bits.
type Flags uint32

const (
	// FlagOngoing marks foreground/ongoing notifications.
	FlagOngoing Flags = 1 << iota
	// FlagOnlyAlertOnce suppresses re-alerting (sound, timer reset) on updates.
	FlagOnlyAlertOnce
	// FlagSuppressGroupAlert suppresses alerting because the group summary alerts instead.
	FlagSuppressGroupAlert
)

func (f Flags) Has(bits Flags) bool { return f&bits == bits }

// Item is one posted notification.
//
// An Item is immutable once constructed; a new arrival with the same Key is a
// distinct value representing an update, never a mutation of the prior one.
type Item struct {
	Key         string `json:"key"`
	PackageName string `json:"package_name"`

	Category Category `json:"category,omitempty"`

	// GroupKey is the app- or platform-supplied group key, empty for ungrouped items.
	GroupKey string `json:"group_key,omitempty"`
	// OverrideGroupKey is set when the platform force-grouped the item; its presence
	// marks the group header as synthesized rather than app-authored.
	OverrideGroupKey string `json:"override_group_key,omitempty"`
	IsGroupSummary   bool   `json:"is_group_summary,omitempty"`

	PostTime time.Time `json:"post_time"`
	Flags    Flags     `json:"flags,omitempty"`

	HasFullScreenIntent bool `json:"has_full_screen_intent,omitempty"`

	// Presentation payload. Opaque to the decision core except where the
	// summarize step checks for explicitly authored text.
	Title       string `json:"title,omitempty"`
	BigTitle    string `json:"big_title,omitempty"`
	SummaryText string `json:"summary_text,omitempty"`
	Body        string `json:"body,omitempty"`

	// ChannelSound is the notification channel's configured sound, if any.
	ChannelSound string `json:"channel_sound,omitempty"`
}

func (it *Item) IsOngoing() bool { return it.Flags.Has(FlagOngoing) }

// AlertsAgain reports whether an update to this item may re-trigger alerting.
func (it *Item) AlertsAgain() bool { return !it.Flags.Has(FlagOnlyAlertOnce) }

// SuppressAlertingDueToGrouping reports whether the group summary alerts on
// this item's behalf.
func (it *Item) SuppressAlertingDueToGrouping() bool {
	return it.Flags.Has(FlagSuppressGroupAlert)
}

// GroupIdentity returns the identity used to bucket items into groups.
//
// Ungrouped items form singleton groups keyed by their own Key. Grouped items
// get the package name appended so a shared default group key cannot collide
// across apps.
func (it *Item) GroupIdentity() string {
	if it.GroupKey == "" {
		return it.Key
	}
	return it.GroupKey + it.PackageName
}
