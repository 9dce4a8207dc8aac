package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agalitsyn/sqlite"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agalitsyn/task-planner/internal/calendar"
	"github.com/agalitsyn/task-planner/internal/model"
	storage "github.com/agalitsyn/task-planner/internal/storage/sqlite"
	"github.com/agalitsyn/task-planner/internal/storage/sqlite/migrations"
	"github.com/agalitsyn/task-planner/internal/task"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := ParseFlags()
	setupLogger(cfg.Debug)

	if cfg.Debug {
		log.Printf("[DEBUG] running with config %s", cfg.String())
	}

	db, err := sqlite.Connect(cfg.DBPath.Unmask())
	if err != nil {
		log.Fatalf("[ERROR] could not open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.MigrateUp(db, migrations.FS); err != nil {
		log.Fatalf("[ERROR] could not apply migrations: %v", err)
	}

	tasks := storage.NewTaskStorage(db)
	deps := storage.NewDependencyStorage(db)
	taskSvc := task.NewService(tasks, deps, nil)
	calSvc := calendar.NewService(tasks)

	if err := run(ctx, cfg, taskSvc, calSvc); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func setupLogger(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	lgr.SetupStdLogger(logOpts...)
}

func run(ctx context.Context, cfg Config, taskSvc *task.Service, calSvc *calendar.Service) error {
	switch flag.Arg(0) {
	case "critical-path":
		return printCriticalPath(ctx, cfg, taskSvc)
	case "schedule":
		return printSchedule(ctx, cfg, calSvc)
	case "availability":
		return printAvailability(ctx, cfg, calSvc)
	case "conflicts":
		return printConflicts(ctx, cfg, calSvc)
	case "suggest":
		return printSuggestions(ctx, cfg, calSvc)
	case "overdue":
		return printOverdue(ctx, taskSvc)
	case "":
		return fmt.Errorf("missing command, expected one of: critical-path, schedule, availability, conflicts, suggest, overdue")
	default:
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
}

func printCriticalPath(ctx context.Context, cfg Config, svc *task.Service) error {
	if cfg.Project == "" {
		return fmt.Errorf("critical-path requires -project")
	}
	items, err := svc.CriticalPath(ctx, cfg.Project)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no tasks in project")
		return nil
	}

	critical := color.New(color.FgRed, color.Bold)
	for _, it := range items {
		marker := " "
		if it.IsCritical {
			marker = critical.Sprint("*")
		}
		fmt.Printf("%s %-30s %s  %s -> %s  slack %dd\n",
			marker,
			truncate(it.Task.Title, 30),
			statusLabel(it.Task.Status),
			it.EarliestStart.Format("2006-01-02"),
			it.EarliestFinish.Format("2006-01-02"),
			it.SlackDays,
		)
	}
	return nil
}

func printSchedule(ctx context.Context, cfg Config, svc *calendar.Service) error {
	start, end, err := parseRange(cfg)
	if err != nil {
		return err
	}
	entries, err := svc.GetSchedule(ctx, start, end, model.TaskFilter{
		ProjectID: cfg.Project,
		Assignee:  cfg.Assignee,
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		due := "no due date"
		if e.Task.DueDate != nil {
			due = humanize.Time(*e.Task.DueDate)
		}
		line := fmt.Sprintf("%-30s %-12s due %s", truncate(e.Task.Title, 30), statusLabel(e.Task.Status), due)
		if e.Overdue {
			line = color.RedString(line + "  OVERDUE")
		}
		fmt.Println(line)
	}
	return nil
}

func printAvailability(ctx context.Context, cfg Config, svc *calendar.Service) error {
	date := time.Now()
	if cfg.Date != "" {
		var err error
		date, err = parseDate(cfg.Date)
		if err != nil {
			return err
		}
	}
	slots, err := svc.GetAvailability(ctx, date, cfg.Assignee)
	if err != nil {
		return err
	}
	for _, s := range slots {
		if s.Available {
			fmt.Printf("%s - %s  %s\n", s.Start.Format("15:04"), s.End.Format("15:04"), color.GreenString("free"))
			continue
		}
		titles := make([]string, len(s.Tasks))
		for i, t := range s.Tasks {
			titles[i] = t.Title
		}
		fmt.Printf("%s - %s  %s %s\n",
			s.Start.Format("15:04"), s.End.Format("15:04"),
			color.YellowString("busy"), strings.Join(titles, ", "))
	}
	return nil
}

func printConflicts(ctx context.Context, cfg Config, svc *calendar.Service) error {
	start, end, err := parseRange(cfg)
	if err != nil {
		return err
	}
	conflicts, err := svc.DetectConflicts(ctx, calendar.Candidate{
		ProjectID: cfg.Project,
		Assignee:  cfg.Assignee,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println(color.GreenString("no conflicts"))
		return nil
	}
	for _, c := range conflicts {
		fmt.Printf("%s  task %s: %s\n", color.YellowString("%-17s", string(c.Type)), c.TaskID, c.Reason)
	}
	return nil
}

func printSuggestions(ctx context.Context, cfg Config, svc *calendar.Service) error {
	var startAfter *time.Time
	if cfg.From != "" {
		d, err := parseDate(cfg.From)
		if err != nil {
			return err
		}
		startAfter = &d
	}
	suggestions, err := svc.SuggestNextAvailableSlot(ctx, cfg.Hours, cfg.Assignee, startAfter)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		fmt.Printf("%s -> %s  confidence %d  (%s)\n",
			s.Start.Format("2006-01-02 15:04"), s.End.Format("15:04"), s.Confidence, s.Reason)
	}
	return nil
}

func printOverdue(ctx context.Context, svc *task.Service) error {
	tasks, err := svc.ListOverdueTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Println(color.RedString("%-30s due %s", truncate(t.Title, 30), humanize.Time(*t.DueDate)))
	}
	return nil
}

var statusCaser = cases.Title(language.English)

func statusLabel(s model.TaskStatus) string {
	return statusCaser.String(strings.ReplaceAll(string(s), "-", " "))
}

func parseRange(cfg Config) (time.Time, time.Time, error) {
	if cfg.From == "" || cfg.To == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("command requires -from and -to")
	}
	start, err := parseDate(cfg.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(cfg.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// A bare date means end of that day for the range end.
	if len(cfg.To) == len("2006-01-02") {
		end = end.Add(24*time.Hour - time.Second)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "..."
}
