package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/repo"
	"planline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Planline CLI",
	Long: `Planline plans projects as Gantt charts: tasks with date windows,
typed dependencies with lag, and a critical-path schedule computed on
every read.

- Workspace: the .planline directory holding the database; planline.yml
  next to it tunes defaults.
- Project: owns tasks and dependencies; its snapshot is the whole plan
  with earliest/latest dates, slack, critical path and progress roll-up.
- Tasks: date-ranged work items, optionally nested under a parent whose
  schedule and progress follow its children.
- Dependencies: FS/SS/FF/SF links with lag in days; cycles are refused.
- Event log: diary of changes, view with 'pl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(depCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(criticalPathCmd())
	rootCmd.AddCommand(recalculateCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var name, desc, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				startDate, err := domain.ParseDate(start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				endDate, err := domain.ParseDate(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					Name:        name,
					Description: desc,
					Start:       startDate,
					End:         endDate,
				})
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Start, p.End, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, desc, start, end, status string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var opts engine.ProjectUpdateOptions
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("start") {
					d, err := domain.ParseDate(start)
					if err != nil {
						return fmt.Errorf("--start: %w", err)
					}
					opts.Start = &d
				}
				if cmd.Flags().Changed("end") {
					d, err := domain.ParseDate(end)
					if err != nil {
						return fmt.Errorf("--end: %w", err)
					}
					opts.End = &d
				}
				if cmd.Flags().Changed("status") {
					st := domain.ProjectStatus(status)
					opts.Status = &st
				}
				p, err := e.UpdateProject(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "project status")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete project and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteProject(ctx, args[0])
			})
		},
	}
}

func taskCmd() *cobra.Command {
	tsk := &cobra.Command{Use: "task", Short: "Manage tasks"}
	tsk.AddCommand(taskCreateCmd())
	tsk.AddCommand(taskListCmd())
	tsk.AddCommand(taskShowCmd())
	tsk.AddCommand(taskUpdateCmd())
	tsk.AddCommand(taskDeleteCmd())
	tsk.AddCommand(taskShiftCmd())
	tsk.AddCommand(taskProgressCmd())
	tsk.AddCommand(taskStatusCmd())
	return tsk
}

func taskCreateCmd() *cobra.Command {
	var projectID, name, desc, start, end, parent string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				startDate, err := domain.ParseDate(start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				endDate, err := domain.ParseDate(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					ProjectID:   projectID,
					Name:        name,
					Description: desc,
					Start:       startDate,
					End:         endDate,
					ParentID:    parent,
				})
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func taskListCmd() *cobra.Command {
	var projectID, status, parentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var items []domain.Task
				var err error
				if parentID != "" {
					items, err = e.ListSubtasks(ctx, parentID)
				} else {
					items, err = e.ListTasks(ctx, projectID, domain.TaskStatus(status))
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Days", "Progress", "Status"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Start, t.End, t.Duration, fmt.Sprintf("%.2f", t.Progress), t.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&parentID, "parent", "", "list direct subtasks of a task")
	cmd.MarkFlagsOneRequired("project", "parent")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var name, desc, start, end, parent string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var opts engine.TaskUpdateOptions
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("start") {
					d, err := domain.ParseDate(start)
					if err != nil {
						return fmt.Errorf("--start: %w", err)
					}
					opts.Start = &d
				}
				if cmd.Flags().Changed("end") {
					d, err := domain.ParseDate(end)
					if err != nil {
						return fmt.Errorf("--end: %w", err)
					}
					opts.End = &d
				}
				if cmd.Flags().Changed("parent") {
					opts.SetParent = &parent
				}
				t, err := e.UpdateTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id, empty to detach")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete task, dropping its edges and orphaning children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteTask(ctx, args[0])
			})
		},
	}
}

func taskShiftCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "shift <task-id>",
		Short: "Shift task window by whole days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.ShiftTask(ctx, args[0], days)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "days to shift, negative to pull earlier")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func taskProgressCmd() *cobra.Command {
	var percent float64
	cmd := &cobra.Command{
		Use:   "progress <task-id>",
		Short: "Set task progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.SetProgress(ctx, args[0], percent)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().Float64Var(&percent, "percent", 0, "progress percentage 0-100")
	_ = cmd.MarkFlagRequired("percent")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Set task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.SetStatus(ctx, args[0], domain.TaskStatus(status))
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "not_started|in_progress|completed|on_hold|cancelled")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func depCmd() *cobra.Command {
	dep := &cobra.Command{Use: "dep", Short: "Manage dependencies"}
	dep.AddCommand(depAddCmd())
	dep.AddCommand(depListCmd())
	dep.AddCommand(depUpdateCmd())
	dep.AddCommand(depRemoveCmd())
	dep.AddCommand(depCheckCmd())
	return dep
}

func depAddCmd() *cobra.Command {
	var pred, succ, typ string
	var lag int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Link two tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				opts := engine.DependencyCreateOptions{
					PredecessorID: pred,
					SuccessorID:   succ,
					Type:          domain.DependencyType(typ),
				}
				if cmd.Flags().Changed("lag") {
					opts.Lag = &lag
				}
				d, err := e.AddDependency(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
	cmd.Flags().StringVar(&pred, "from", "", "predecessor task id")
	cmd.Flags().StringVar(&succ, "to", "", "successor task id")
	cmd.Flags().StringVar(&typ, "type", "", "FS|SS|FF|SF (default from config)")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in days, may be negative")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func depListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.ListDependencies(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Predecessor", "Successor", "Type", "Lag"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.PredecessorID, d.SuccessorID, d.Type, d.Lag})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func depUpdateCmd() *cobra.Command {
	var typ string
	var lag int
	cmd := &cobra.Command{
		Use:   "update <dependency-id>",
		Short: "Change dependency type or lag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var opts engine.DependencyUpdateOptions
				if cmd.Flags().Changed("type") {
					dt := domain.DependencyType(typ)
					opts.Type = &dt
				}
				if cmd.Flags().Changed("lag") {
					opts.Lag = &lag
				}
				d, err := e.UpdateDependency(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "FS|SS|FF|SF")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in days")
	return cmd
}

func depRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dependency-id>",
		Short: "Remove dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.RemoveDependency(ctx, args[0])
			})
		},
	}
}

func depCheckCmd() *cobra.Command {
	var pred, succ string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a link would close a loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				wouldCycle, path, err := e.WouldCycle(ctx, pred, succ)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"would_cycle": wouldCycle, "path": path})
			})
		},
	}
	cmd.Flags().StringVar(&pred, "from", "", "predecessor task id")
	cmd.Flags().StringVar(&succ, "to", "", "successor task id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <project-id>",
		Short: "Full project snapshot with computed schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				fmt.Printf("%s  %s..%s (%d days)  progress %.2f%%  status %s\n",
					snap.Project.Name, snap.Timeline.Start, snap.Timeline.End,
					snap.Timeline.TotalDays, snap.Progress, snap.Status)
				for _, w := range snap.Warnings {
					fmt.Println("warning:", w)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "ES", "LF", "Slack", "Progress", "Status", "Critical"})
				for _, t := range snap.Tasks {
					crit := ""
					if t.Critical {
						crit = "*"
					}
					tw.AppendRow(table.Row{t.ID, t.Name, t.Start, t.End, t.EarliestStart, t.LatestFinish,
						t.Slack, fmt.Sprintf("%.2f", t.Progress), t.Status, crit})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func criticalPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "critical-path <project-id>",
		Short: "Critical path tasks in schedule order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.CriticalPath(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "ES", "EF", "Slack"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.EarliestStart, t.EarliestFinish, t.Slack})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func recalculateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate <project-id>",
		Short: "Rebuild the schedule from stored data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Recalculate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(snap)
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var projectID string
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.ListEvents(ctx, projectID, n)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default planline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Planline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(repo.NewSQLite(conn), cfg)
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
