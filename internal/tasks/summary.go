package tasks

import (
	"time"

	"github.com/nhle/taskflow/internal/model"
)

// Summary holds the dashboard groupings for one user.
type Summary struct {
	Assigned []model.Task
	Created  []model.Task
	Overdue  []model.Task
	ByStatus map[model.Status]int
}

// Summarize groups tasks the way the dashboard shows them.
func Summarize(tasks []model.Task, userID string, now time.Time) Summary {
	s := Summary{ByStatus: make(map[model.Status]int, len(model.Statuses))}
	for _, t := range tasks {
		if userID != "" && t.AssigneeID() == userID {
			s.Assigned = append(s.Assigned, t)
		}
		if userID != "" && t.CreatorID() == userID {
			s.Created = append(s.Created, t)
		}
		if t.IsOverdue(now) {
			s.Overdue = append(s.Overdue, t)
		}
		s.ByStatus[t.Status]++
	}
	return s
}
