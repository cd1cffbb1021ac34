package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/output"
	"github.com/nhle/taskflow/internal/tasks"
)

func dashboardCmd(rt *runtime) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize assigned, created and overdue tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := rt.requireSession(ctx)
			if err != nil {
				return err
			}

			list, err := rt.repo.Refresh(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			return output.Summary(cmd.OutOrStdout(), f, tasks.Summarize(list, s.UserID, now), now)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func tasksCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and manage tasks",
	}
	cmd.AddCommand(
		tasksListCmd(rt),
		tasksCreateCmd(rt),
		tasksUpdateCmd(rt),
		tasksDeleteCmd(rt),
	)
	return cmd
}

func tasksListCmd(rt *runtime) *cobra.Command {
	var (
		filter  tasks.Filter
		status  string
		prio    string
		page    int
		perPage int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if filter.Status, err = parseStatus(status); err != nil {
				return err
			}
			if filter.Priority, err = parsePriority(prio); err != nil {
				return err
			}
			if filter.Due != "" {
				if _, err := parseDay(filter.Due); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}
			list, err := rt.repo.Refresh(ctx)
			if err != nil {
				return err
			}

			if perPage <= 0 {
				perPage = rt.cfg.Display.PageSize
			}
			p := tasks.Paginate(filter.Apply(list), page, perPage)
			return output.TaskPage(cmd.OutOrStdout(), f, p, time.Now())
		},
	}

	cmd.Flags().StringVar(&filter.Query, "search", "", "Match title or description (case-insensitive)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, in-progress, completed")
	cmd.Flags().StringVar(&prio, "priority", "", "Filter by priority: low, medium, high")
	cmd.Flags().StringVar(&filter.Due, "due", "", "Filter by due day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "Tasks per page (default from config)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func tasksCreateCmd(rt *runtime) *cobra.Command {
	var (
		draft  model.TaskDraft
		due    string
		prio   string
		status string
		format string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			if due != "" {
				d, err := parseDay(due)
				if err != nil {
					return err
				}
				draft.DueDate = &d
			}
			draft.Priority = model.Priority(strings.ToLower(prio))
			draft.Status = model.Status(strings.ToLower(status))

			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}
			t, err := rt.repo.CreateTask(ctx, draft)
			if err != nil {
				return err
			}
			return output.Task(cmd.OutOrStdout(), f, t, time.Now())
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&draft.Description, "description", "", "Task description")
	cmd.Flags().StringVar(&due, "due", "", "Due day YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&prio, "priority", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&status, "status", "", "pending, in-progress or completed (default pending)")
	cmd.Flags().StringVar(&draft.AssignedTo, "assign", "", "Assignee user id (admins only)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func tasksUpdateCmd(rt *runtime) *cobra.Command {
	var (
		title, description, due string
		prio, status, assign    string
		format                  string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}

			var patch model.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("due") {
				d, err := parseDay(due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if flags.Changed("priority") {
				p := model.Priority(strings.ToLower(prio))
				patch.Priority = &p
			}
			if flags.Changed("status") {
				s := model.Status(strings.ToLower(status))
				patch.Status = &s
			}
			if flags.Changed("assign") {
				patch.AssignedTo = &assign
			}

			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}
			t, err := rt.repo.UpdateTask(ctx, args[0], patch)
			if err != nil {
				return err
			}
			return output.Task(cmd.OutOrStdout(), f, t, time.Now())
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&due, "due", "", "New due day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&prio, "priority", "", "New priority")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&assign, "assign", "", `New assignee id; "" unassigns`)
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func tasksDeleteCmd(rt *runtime) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := rt.requireSession(ctx); err != nil {
				return err
			}

			if !yes {
				if !rt.opts.Interactive {
					return &api.ValidationError{Field: "yes", Message: "refusing to delete without --yes"}
				}
				ok, err := confirm(fmt.Sprintf("Delete task %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := rt.repo.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, &api.ValidationError{Field: "dueDate", Message: "must be YYYY-MM-DD"}
	}
	return d, nil
}

func parseStatus(s string) (model.Status, error) {
	if s == "" {
		return "", nil
	}
	st := model.Status(strings.ToLower(s))
	if !st.Valid() {
		return "", &api.ValidationError{Field: "status", Message: "must be pending, in-progress or completed"}
	}
	return st, nil
}

func parsePriority(s string) (model.Priority, error) {
	if s == "" {
		return "", nil
	}
	p := model.Priority(strings.ToLower(s))
	if !p.Valid() {
		return "", &api.ValidationError{Field: "priority", Message: "must be low, medium or high"}
	}
	return p, nil
}
