// Package timeline groups time-adjacent items into work sessions. Items
// are either checkpoints or externally supplied archive records; the
// clusterer only cares about timestamps and optional sizes.
package timeline

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anortham/tusk-sub000/internal/checkpoint"
)

// SessionGap is the idle gap that starts a new session.
const SessionGap = time.Hour

// LinkWindow is the symmetric window for associating archives with nearby
// checkpoints. Independent capture mechanisms are never perfectly
// synchronized, so exact timestamp equality is useless here.
const LinkWindow = 15 * time.Minute

// maxTopicTags and maxInsights bound per-session aggregation.
const (
	maxTopicTags = 5
	maxInsights  = 3
)

// ArchiveFile is an externally scanned backup record.
type ArchiveFile struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// Item is one timestamped thing to cluster: a checkpoint, an archive, or
// both when a linking pass paired them up.
type Item struct {
	Timestamp  time.Time         `json:"timestamp"`
	SizeBytes  int64             `json:"size_bytes,omitempty"`
	Checkpoint *checkpoint.Entry `json:"checkpoint,omitempty"`
	Archive    *ArchiveFile      `json:"archive,omitempty"`
}

// Session is a run of items whose consecutive gaps stay under SessionGap.
type Session struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TotalSize   int64     `json:"total_size"`
	ItemCount   int       `json:"item_count"`
	Items       []Item    `json:"items"`
	TopicTags   []string  `json:"topic_tags,omitempty"`
	KeyInsights []string  `json:"key_insights,omitempty"`
}

// Day is a calendar day (local time) of sessions, for display.
type Day struct {
	Label    string    `json:"label"` // "Today", "Yesterday", or a date
	Date     time.Time `json:"date"`
	Sessions []Session `json:"sessions"`
}

// CheckpointItems adapts stored entries for clustering.
func CheckpointItems(entries []checkpoint.Entry) []Item {
	items := make([]Item, len(entries))
	for i := range entries {
		items[i] = Item{Timestamp: entries[i].Timestamp, Checkpoint: &entries[i]}
	}
	return items
}

// ArchiveItems adapts archive records for clustering.
func ArchiveItems(files []ArchiveFile) []Item {
	items := make([]Item, len(files))
	for i := range files {
		items[i] = Item{
			Timestamp: files[i].Timestamp,
			SizeBytes: files[i].SizeBytes,
			Archive:   &files[i],
		}
	}
	return items
}

// ClusterIntoSessions sorts items ascending by timestamp and cuts a new
// session whenever the gap to the previous item exceeds SessionGap.
func ClusterIntoSessions(items []Item) []Session {
	return ClusterWithGap(items, SessionGap)
}

// ClusterWithGap is ClusterIntoSessions with an explicit gap threshold.
func ClusterWithGap(items []Item, gap time.Duration) []Session {
	if len(items) == 0 {
		return nil
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var sessions []Session
	cur := []Item{sorted[0]}
	for _, it := range sorted[1:] {
		if it.Timestamp.Sub(cur[len(cur)-1].Timestamp) > gap {
			sessions = append(sessions, buildSession(cur))
			cur = nil
		}
		cur = append(cur, it)
	}
	sessions = append(sessions, buildSession(cur))
	return sessions
}

func buildSession(items []Item) Session {
	s := Session{
		Start:     items[0].Timestamp,
		End:       items[len(items)-1].Timestamp,
		ItemCount: len(items),
		Items:     items,
	}

	var entries []*checkpoint.Entry
	for _, it := range items {
		s.TotalSize += it.SizeBytes
		if it.Checkpoint != nil {
			entries = append(entries, it.Checkpoint)
		}
	}
	s.TopicTags = topTags(entries, maxTopicTags)
	s.KeyInsights = keyInsights(entries, maxInsights)
	return s
}

// topTags returns the most frequent tags across a session's checkpoints,
// ties broken by first appearance.
func topTags(entries []*checkpoint.Entry, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		for _, tag := range e.Tags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// insightPattern matches narrative descriptions worth surfacing:
// "Fixed X", "Implemented X", "Discovered X", and friends.
var insightPattern = regexp.MustCompile(
	`(?i)\b(fixed|implemented|discovered|decided|learned|solved|resolved|completed)\b`,
)

func keyInsights(entries []*checkpoint.Entry, limit int) []string {
	var insights []string
	for _, e := range entries {
		if len(insights) >= limit {
			break
		}
		if insightPattern.MatchString(e.Description) {
			insights = append(insights, truncate(e.Description, 120))
		}
	}
	return insights
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}

// LinkArchives pairs each archive with the checkpoints captured within
// LinkWindow of it, and returns one item list ready for clustering.
// Checkpoints matching no archive and archives matching no checkpoint are
// kept as independent items.
func LinkArchives(archives []ArchiveFile, entries []checkpoint.Entry) []Item {
	items := ArchiveItems(archives)
	linked := make([]bool, len(entries))

	for i := range items {
		for j := range entries {
			d := entries[j].Timestamp.Sub(items[i].Timestamp)
			if d < 0 {
				d = -d
			}
			if d <= LinkWindow && items[i].Checkpoint == nil {
				items[i].Checkpoint = &entries[j]
				linked[j] = true
			}
		}
	}

	for j := range entries {
		if !linked[j] {
			items = append(items, Item{Timestamp: entries[j].Timestamp, Checkpoint: &entries[j]})
		}
	}
	return items
}

// GroupByDay buckets sessions by calendar day in local time, newest day
// first, labeling today and yesterday specially.
func GroupByDay(sessions []Session, now time.Time) []Day {
	byDay := make(map[string]*Day)
	var order []string

	for _, s := range sessions {
		local := s.Start.Local()
		key := local.Format("2006-01-02")
		d, ok := byDay[key]
		if !ok {
			midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
			d = &Day{Label: dayLabel(midnight, now), Date: midnight}
			byDay[key] = d
			order = append(order, key)
		}
		d.Sessions = append(d.Sessions, s)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	days := make([]Day, 0, len(order))
	for _, key := range order {
		days = append(days, *byDay[key])
	}
	return days
}

func dayLabel(midnight, now time.Time) string {
	local := now.Local()
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	switch {
	case midnight.Equal(today):
		return "Today"
	case midnight.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return midnight.Format("Monday, Jan 2 2006")
	}
}
