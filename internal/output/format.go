// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/tasks"
	"github.com/nhle/taskflow/internal/theme"
)

// Format selects how results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a -o flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// taskView is the serialized shape of a task in CLI output.
type taskView struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string `json:"status" yaml:"status"`
	Priority    string `json:"priority" yaml:"priority"`
	Due         string `json:"due,omitempty" yaml:"due,omitempty"`
	Assignee    string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Creator     string `json:"creator,omitempty" yaml:"creator,omitempty"`
	Overdue     bool   `json:"overdue" yaml:"overdue"`
}

type pageView struct {
	Page       int        `json:"page" yaml:"page"`
	PerPage    int        `json:"per_page" yaml:"per_page"`
	TotalPages int        `json:"total_pages" yaml:"total_pages"`
	Total      int        `json:"total" yaml:"total"`
	Tasks      []taskView `json:"tasks" yaml:"tasks"`
}

type userView struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

func refName(r *model.UserRef) string {
	if r == nil {
		return ""
	}
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func toTaskView(t model.Task, now time.Time) taskView {
	return taskView{
		ID:          t.ID,
		Title:       normalizeTitle(t.Title),
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Due:         t.DueDay(),
		Assignee:    refName(t.AssignedTo),
		Creator:     refName(t.CreatedBy),
		Overdue:     t.IsOverdue(now),
	}
}

// normalizeTitle keeps a title on one line; blank titles become "(untitled)".
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q cannot encode values", f)
	}
}

// newTable returns a bordered table in the dashboard palette.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// TaskPage writes one page of tasks.
func TaskPage(w io.Writer, f Format, p tasks.Page, now time.Time) error {
	views := make([]taskView, 0, len(p.Items))
	for _, t := range p.Items {
		views = append(views, toTaskView(t, now))
	}

	if f != FormatTable {
		return Encode(w, f, pageView{
			Page:       p.Page,
			PerPage:    p.PerPage,
			TotalPages: p.TotalPages,
			Total:      p.Total,
			Tasks:      views,
		})
	}

	if p.Total == 0 {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}

	tbl := newTable("ID", "Title", "Status", "Priority", "Due", "Assignee")
	for _, v := range views {
		due := v.Due
		if v.Overdue {
			due += " (overdue)"
		}
		tbl.Row(v.ID, v.Title, v.Status, v.Priority, due, v.Assignee)
	}
	_, err := fmt.Fprintf(w, "%s\nPage %d of %d (%d tasks)\n", tbl.Render(), p.Page, p.TotalPages, p.Total)
	return err
}

// Task writes a single task.
func Task(w io.Writer, f Format, t model.Task, now time.Time) error {
	v := toTaskView(t, now)
	if f != FormatTable {
		return Encode(w, f, v)
	}

	tbl := newTable("Field", "Value").
		Row("ID", v.ID).
		Row("Title", v.Title).
		Row("Status", v.Status).
		Row("Priority", v.Priority).
		Row("Due", v.Due).
		Row("Assignee", v.Assignee)
	if v.Description != "" {
		tbl.Row("Description", v.Description)
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func toUserView(u model.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

// Users writes a list of users.
func Users(w io.Writer, f Format, users []model.User) error {
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	if f != FormatTable {
		return Encode(w, f, views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No users found.")
		return err
	}

	tbl := newTable("ID", "Name", "Email", "Role")
	for _, v := range views {
		tbl.Row(v.ID, v.Name, v.Email, v.Role)
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

// User writes a single user.
func User(w io.Writer, f Format, u model.User) error {
	if f != FormatTable {
		return Encode(w, f, toUserView(u))
	}
	return Users(w, f, []model.User{u})
}

// summaryView is the serialized dashboard.
type summaryView struct {
	Assigned []taskView     `json:"assigned" yaml:"assigned"`
	Created  []taskView     `json:"created" yaml:"created"`
	Overdue  []taskView     `json:"overdue" yaml:"overdue"`
	ByStatus map[string]int `json:"by_status" yaml:"by_status"`
}

// Summary writes the dashboard groupings.
func Summary(w io.Writer, f Format, s tasks.Summary, now time.Time) error {
	conv := func(in []model.Task) []taskView {
		out := make([]taskView, 0, len(in))
		for _, t := range in {
			out = append(out, toTaskView(t, now))
		}
		return out
	}
	v := summaryView{
		Assigned: conv(s.Assigned),
		Created:  conv(s.Created),
		Overdue:  conv(s.Overdue),
		ByStatus: make(map[string]int, len(s.ByStatus)),
	}
	for st, n := range s.ByStatus {
		v.ByStatus[string(st)] = n
	}
	if f != FormatTable {
		return Encode(w, f, v)
	}

	counts := newTable("Status", "Tasks")
	for _, st := range model.Statuses {
		counts.Row(string(st), fmt.Sprint(s.ByStatus[st]))
	}
	if _, err := fmt.Fprintln(w, counts.Render()); err != nil {
		return err
	}

	sections := []struct {
		title string
		items []taskView
	}{
		{"Assigned to me", v.Assigned},
		{"Created by me", v.Created},
		{"Overdue", v.Overdue},
	}
	for _, sec := range sections {
		if _, err := fmt.Fprintf(w, "\n%s (%d)\n", sec.title, len(sec.items)); err != nil {
			return err
		}
		for _, t := range sec.items {
			line := fmt.Sprintf("  %-24s %-12s %s", t.Title, t.Status, t.Due)
			if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// Notification writes one notification as a single line.
func Notification(w io.Writer, ev model.NotificationEvent) error {
	line := fmt.Sprintf("[%s] %s", ev.Timestamp.Local().Format("15:04:05"), ev.Message)
	if ev.Task != nil && ev.Task.Title != "" {
		line += ": " + ev.Task.Title
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// Session writes the current identity.
func Session(w io.Writer, f Format, s model.Session) error {
	if f != FormatTable {
		return Encode(w, f, userView{ID: s.UserID, Name: s.Name, Email: s.Email, Role: string(s.Role)})
	}
	_, err := fmt.Fprintf(w, "%s <%s> (%s) id=%s\n", s.Name, s.Email, s.Role, s.UserID)
	return err
}
