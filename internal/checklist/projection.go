package checklist

import (
	"fmt"
	"strings"

	"visadoc-backend/internal/analysis"
)

// Bucket is one timeline group.
type Bucket struct {
	Category analysis.DueCategory `json:"category"`
	Label    string               `json:"label"`
	Items    []Item               `json:"items"`
}

var timelineOrder = []struct {
	category analysis.DueCategory
	label    string
}{
	{analysis.DueToday, "Today"},
	{analysis.DueThisWeek, "This week"},
	{analysis.DueBeforeProgramEnd, "Before program end"},
	{analysis.DueAfterApproval, "After approval"},
	{analysis.DueUnspecified, "Unspecified"},
}

// Timeline groups items into the five buckets in fixed display order. Items
// with unknown or empty categories land in unspecified. Empty buckets are
// returned with no items.
func Timeline(items []Item) []Bucket {
	buckets := make([]Bucket, len(timelineOrder))
	index := make(map[analysis.DueCategory]int, len(timelineOrder))
	for i, b := range timelineOrder {
		buckets[i] = Bucket{Category: b.category, Label: b.label, Items: []Item{}}
		index[b.category] = i
	}
	for _, it := range items {
		i, ok := index[it.DueCategory]
		if !ok {
			i = index[analysis.DueUnspecified]
		}
		buckets[i].Items = append(buckets[i].Items, it)
	}
	return buckets
}

// Filter selects a subset of the checklist.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterHigh     Filter = "high"
	FilterToday    Filter = "today"
	FilterThisWeek Filter = "this_week"
)

// ParseFilter accepts the filter names; empty means all.
func ParseFilter(raw string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterHigh, FilterToday, FilterThisWeek:
		return f, nil
	default:
		return "", fmt.Errorf("unknown checklist filter %q", raw)
	}
}

func (f Filter) match(it Item) bool {
	switch f {
	case FilterHigh:
		return it.Priority != nil && strings.EqualFold(strings.TrimSpace(*it.Priority), "high")
	case FilterToday:
		return it.DueCategory == analysis.DueToday
	case FilterThisWeek:
		return it.DueCategory == analysis.DueThisWeek
	default:
		return true
	}
}

// Apply returns the items matching f, preserving order.
func (f Filter) Apply(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Progress counts completed items.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Remaining is the number of items not yet done.
func (p Progress) Remaining() int {
	return p.Total - p.Done
}

// Percent is Done/Total rounded down, 0 for an empty list.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

func CountProgress(items []Item) Progress {
	p := Progress{Total: len(items)}
	for _, it := range items {
		if it.Status == StatusDone {
			p.Done++
		}
	}
	return p
}

// ExportText renders the checklist as plain text for copying.
func ExportText(items []Item) string {
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		due := it.DueLabel
		if strings.TrimSpace(due) == "" {
			due = "Unspecified"
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s\n%s\nWho: %s\nDue: %s\n",
			strings.ToUpper(string(it.Status)), it.Title, it.Description, it.ActorOrDefault(), due))
	}
	return strings.Join(blocks, "\n")
}
