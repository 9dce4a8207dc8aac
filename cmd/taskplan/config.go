package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/agalitsyn/flagutils"
	"github.com/agalitsyn/secret"

	"github.com/agalitsyn/task-planner/version"
)

const EnvPrefix = "TASK_PLANNER"

type Config struct {
	Debug bool

	DBPath secret.String

	Project  string
	Assignee string
	Date     string
	From     string
	To       string
	Hours    float64
}

func (c Config) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stdout, err)
		os.Exit(0)
	}
	return string(b)
}

func ParseFlags() Config {
	var cfg Config

	printVersion := flag.Bool("version", false, "Show version.")
	flag.BoolVar(&cfg.Debug, "dbg", false, "Debug mode.")
	dbPath := flag.String("db", "task-planner.db", "Path to SQLite database file.")
	flag.StringVar(&cfg.Project, "project", "", "Project id.")
	flag.StringVar(&cfg.Assignee, "assignee", "", "Assignee id.")
	flag.StringVar(&cfg.Date, "date", "", "Date (YYYY-MM-DD), defaults to today.")
	flag.StringVar(&cfg.From, "from", "", "Range start (YYYY-MM-DD or RFC3339).")
	flag.StringVar(&cfg.To, "to", "", "Range end (YYYY-MM-DD or RFC3339).")
	flag.Float64Var(&cfg.Hours, "hours", 1, "Duration in hours for slot suggestions.")

	flagutils.Prefix = EnvPrefix
	flagutils.Parse()
	flag.Parse()

	cfg.DBPath = secret.NewString(*dbPath)

	if *printVersion {
		fmt.Fprintln(os.Stdout, version.String())
		os.Exit(0)
	}

	return cfg
}
