package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskclient/internal/domain/entities"
)

// Task list filters.
const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

func (c *CLI) newTasksCommand() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage your tasks",
		Long:  "List, add, complete, edit and remove the tasks of the logged-in user.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}
			if err := app.Guard.Require(); err != nil {
				return fmt.Errorf("%w (run 'taskclient login EMAIL' first)", err)
			}
			return nil
		},
	}

	tasksCmd.AddCommand(c.newTasksListCommand())
	tasksCmd.AddCommand(c.newTasksAddCommand())
	tasksCmd.AddCommand(c.newTasksToggleCommand("done", "Mark a task as completed", true))
	tasksCmd.AddCommand(c.newTasksToggleCommand("undo", "Mark a task as pending", false))
	tasksCmd.AddCommand(c.newTasksEditCommand())
	tasksCmd.AddCommand(c.newTasksRemoveCommand())

	return tasksCmd
}

func (c *CLI) newTasksListCommand() *cobra.Command {
	var (
		asJSON bool
		status string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch status {
			case StatusAll, StatusPending, StatusCompleted:
			default:
				return fmt.Errorf("%w: status must be one of all, pending, completed", entities.ErrInvalidInput)
			}

			app, err := c.App()
			if err != nil {
				return err
			}
			if err := app.Board.Reload(cmd.Context()); err != nil {
				return err
			}

			tasks := filterTasks(app.Board.Sorted(), status)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			return writeTaskTable(cmd.OutOrStdout(), tasks, app.Board.Counts())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	cmd.Flags().StringVar(&status, "status", StatusAll, "Filter by status (all, pending, completed)")
	return cmd
}

func (c *CLI) newTasksAddCommand() *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			task, err := app.Board.Add(cmd.Context(), title, description)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Task title (3-100 characters)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description (10-500 characters)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func (c *CLI) newTasksToggleCommand(use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			task, err := app.Board.Toggle(cmd.Context(), args[0], completed)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", task.ID, statusLabel(task.Completed))
			return nil
		},
	}
}

func (c *CLI) newTasksEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title, description or status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dto entities.UpdateTaskDTO
			flags := cmd.Flags()
			if flags.Changed("title") {
				title, _ := flags.GetString("title")
				dto.Title = &title
			}
			if flags.Changed("description") {
				description, _ := flags.GetString("description")
				dto.Description = &description
			}
			if flags.Changed("completed") {
				completed, _ := flags.GetBool("completed")
				dto.Completed = &completed
			}

			app, err := c.App()
			if err != nil {
				return err
			}

			task, err := app.Board.Edit(cmd.Context(), args[0], dto)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", task.ID)
			return nil
		},
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().Bool("completed", false, "New completed state")
	return cmd
}

func (c *CLI) newTasksRemoveCommand() *cobra.Command {
	var assumeYes bool

	cmd := &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}

			if !assumeYes {
				if err := app.Board.Reload(cmd.Context()); err != nil {
					return err
				}
				question := "Are you sure you want to delete this task?"
				if task, found := app.Board.Find(args[0]); found {
					question = fmt.Sprintf("Are you sure you want to delete %q?", task.Title)
				}

				ok, err := confirm(cmd, question)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted")
					return nil
				}
			}

			if err := app.Board.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Delete without asking")
	return cmd
}

func filterTasks(tasks []entities.Task, status string) []entities.Task {
	if status == StatusAll {
		return tasks
	}

	out := make([]entities.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed == (status == StatusCompleted) {
			out = append(out, t)
		}
	}
	return out
}

func statusLabel(completed bool) string {
	if completed {
		return StatusCompleted
	}
	return StatusPending
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTaskTable(w io.Writer, tasks []entities.Task, counts entities.TaskCounts) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tCREATED")
	for _, t := range tasks {
		created := "-"
		if t.CreatedAt != nil {
			created = t.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, statusLabel(t.Completed), t.Title, created)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d tasks, %d completed, %d pending\n", counts.Total, counts.Completed, counts.Pending)
	return err
}
