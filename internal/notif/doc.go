// Package notif holds the shared notification data model: posted items,
// ranking snapshots, and display groups.
//
// Everything here is a passive value type. Items are immutable; groups are
// rebuilt per preprocessing pass and mutated only while a pass assembles them.
package notif
