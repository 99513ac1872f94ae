package checklist

import (
	"github.com/google/uuid"

	"visadoc-backend/internal/analysis"
)

// Item is a checklist entry with a session-local id and a mutable status.
// The id is only stable for the lifetime of one analysis result; persistence
// keys on Title.
type Item struct {
	ID string `json:"id"`
	analysis.ChecklistEntry
	Status Status `json:"status"`
}

// NewID returns a fresh item id.
func NewID() string {
	return "item-" + uuid.NewString()
}

// Merge builds the live checklist for a freshly parsed result. Each entry gets
// a new id and takes its status from saved by exact title, else todo. With
// duplicate titles every copy takes the one stored status.
func Merge(entries []analysis.ChecklistEntry, saved map[string]Status, newID func() string) []Item {
	if newID == nil {
		newID = NewID
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		status, ok := saved[e.Title]
		if !ok || !status.Valid() {
			status = StatusTodo
		}
		items = append(items, Item{ID: newID(), ChecklistEntry: e, Status: status})
	}
	return items
}

// Toggle advances the status of the item with id and returns a new slice.
// Other items pass through unchanged; ok is false when id is unknown.
func Toggle(items []Item, id string) ([]Item, bool) {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = out[i].Status.Next()
			return out, true
		}
	}
	return out, false
}

// SetStatus assigns status to the item with id.
func SetStatus(items []Item, id string, status Status) ([]Item, bool) {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
			return out, true
		}
	}
	return out, false
}

// Move relocates the item with id to index, clamped to the list bounds.
func Move(items []Item, id string, index int) ([]Item, bool) {
	from := -1
	for i := range items {
		if items[i].ID == id {
			from = i
			break
		}
	}
	out := make([]Item, 0, len(items))
	if from < 0 {
		return append(out, items...), false
	}
	moved := items[from]
	for i := range items {
		if i != from {
			out = append(out, items[i])
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(out) {
		index = len(out)
	}
	out = append(out, Item{})
	copy(out[index+1:], out[index:])
	out[index] = moved
	return out, true
}

// Snapshot returns the title -> status mapping that gets persisted.
func Snapshot(items []Item) map[string]Status {
	snap := make(map[string]Status, len(items))
	for _, it := range items {
		snap[it.Title] = it.Status
	}
	return snap
}

// Find returns the item with id.
func Find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
