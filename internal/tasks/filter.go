package tasks

import (
	"strings"

	"github.com/nhle/taskflow/internal/model"
)

// DefaultPerPage is the number of tasks shown per page.
const DefaultPerPage = 4

// Filter is the client-side search state. Zero fields match everything;
// set fields combine with AND.
type Filter struct {
	Query    string
	Status   model.Status
	Priority model.Priority

	// Due is a YYYY-MM-DD calendar day compared against the UTC due date.
	Due string
}

// IsZero reports whether no filter is active.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Status == "" && f.Priority == "" && f.Due == ""
}

// Reset clears every filter.
func (f *Filter) Reset() {
	*f = Filter{}
}

// Matches reports whether t passes every active filter.
func (f Filter) Matches(t model.Task) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Due != "" && t.DueDay() != f.Due {
		return false
	}
	return true
}

// Apply returns the matching tasks in their original order.
func (f Filter) Apply(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Page is one page of a task list.
type Page struct {
	Items      []model.Task
	Page       int
	PerPage    int
	TotalPages int
	Total      int
}

// Paginate slices tasks into 1-based pages. page is clamped into range and
// perPage falls back to DefaultPerPage.
func Paginate(tasks []model.Task, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	total := len(tasks)
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}

	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := min((page-1)*perPage, total)
	end := total
	if total-start > perPage {
		end = start + perPage
	}

	return Page{
		Items:      tasks[start:end],
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
	}
}
