package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	corpora "github.com/parchmint/corpora"
	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/query"
	"github.com/parchmint/corpora/store"
)

func main() {
	app := &cli.App{
		Name:  "corpora",
		Usage: "Content record pipelines: query, transform, persist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run job specifications through the queue and print their results",
				ArgsUsage: "[spec.yaml ...]",
				Action:    runCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:    "task",
						Aliases: []string{"t"},
						Usage:   "A quick task: a query, or 'datasource=name;key=value;...'",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Store the specs in the job store before running",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Skip this many entries of a list result",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Print at most this many entries of a list result",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query records and print them as JSON lines",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags:     append([]cli.Flag{dbFlag()}, queryFlags()...),
			},
			{
				Name:      "count",
				Usage:     "Count records matching a query",
				ArgsUsage: "<query>",
				Action:    countCommand,
				Flags:     append([]cli.Flag{dbFlag()}, queryFlags()...),
			},
			{
				Name:   "jobs",
				Usage:  "List stored job specifications",
				Action: jobsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the data directory",
		Required: true,
	}
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Extra filter expression, ANDed into the query",
		},
		&cli.StringSliceFlag{
			Name:    "collection",
			Aliases: []string{"c"},
			Usage:   "Collection to search (repeatable)",
		},
		&cli.Int64Flag{
			Name:  "limit",
			Usage: "Maximum number of records",
		},
		&cli.Int64Flag{
			Name:  "skip",
			Usage: "Records to skip, counted across collections",
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "Sort expression: field, -field, comma-separated",
		},
		&cli.StringFlag{
			Name:  "groups",
			Usage: "Grouping mode: none, group, source, or a field name",
			Value: query.GroupsNone,
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Skip default sorting and shaping",
		},
	}
}

func openEngine(c *cli.Context) (*corpora.Engine, error) {
	engine, err := corpora.NewEngine(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return engine, nil
}

func runCommand(c *cli.Context) error {
	ctx := context.Background()

	var specs []core.JobSpec
	for _, path := range c.Args().Slice() {
		spec, err := loadSpec(path)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}
	if quick := c.String("task"); quick != "" {
		specs = append(specs, quickSpec(quick))
	}
	if len(specs) == 0 {
		return fmt.Errorf("nothing to run: give spec files or --task")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if c.Bool("save") {
		for _, spec := range specs {
			job, err := engine.Jobs().PutJob(ctx, &core.Job{Spec: spec})
			if err != nil {
				return fmt.Errorf("failed to store job %s: %w", spec.Name, err)
			}
			fmt.Fprintf(os.Stderr, "stored job %s as %s\n", spec.Name, job.ID)
		}
	}

	runs := make([]core.RunID, 0, len(specs))
	for _, spec := range specs {
		run, err := engine.Submit(spec)
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", spec.Name, err)
		}
		runs = append(runs, run)
	}
	engine.Queue().Wait()

	status := engine.Queue().Status()
	fmt.Fprintf(os.Stderr, "finished %d task(s), %d waiting\n", len(status.Finished), status.Waiting)

	for _, run := range runs {
		res, err := engine.Queue().Result(run)
		if err != nil {
			return err
		}
		if res.Failure != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %s\n", run, res.Failure.Message)
			continue
		}
		if err := printValue(res.Window(c.Int("offset"), c.Int("limit"))); err != nil {
			return err
		}
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	recs, err := engine.Search(context.Background(), queryRequest(c))
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := printRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func countCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.Count(context.Background(), queryRequest(c))
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func jobsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	jobs, err := engine.Jobs().ListJobs(context.Background())
	if err != nil {
		return err
	}
	for _, job := range jobs {
		last := "never"
		if !job.LastRun.IsZero() {
			last = job.LastRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s\t%s\tlast run %s\n", job.ID, job.Spec.Name, last)
	}
	return nil
}

func queryRequest(c *cli.Context) query.Request {
	return query.Request{
		Query:       c.Args().First(),
		Filters:     c.StringSlice("filter"),
		Collections: c.StringSlice("collection"),
		Limit:       c.Int64("limit"),
		Skip:        c.Int64("skip"),
		Sort:        c.String("sort"),
		Raw:         c.Bool("raw"),
		Groups:      c.String("groups"),
	}
}

func loadSpec(path string) (core.JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.JobSpec{}, fmt.Errorf("failed to read spec %s: %w", path, err)
	}
	var spec core.JobSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return core.JobSpec{}, fmt.Errorf("failed to parse spec %s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(path, ".yaml")
	}
	return spec, nil
}

// quickSpec builds a full job from a query-surface string. A plain
// query becomes a dbquery task that accumulates its matches; a
// "datasource=name;key=value;..." string configures any data source.
func quickSpec(q string) core.JobSpec {
	spec := core.JobSpec{
		Name:     "quicktask",
		Pipeline: []core.StageSpec{{Name: "Accumulate"}},
	}
	if !strings.HasPrefix(q, "datasource=") {
		spec.DataSource = "dbquery"
		spec.DataSourceConfig = map[string]any{"query": q}
		return spec
	}
	cfg := map[string]any{}
	for _, pair := range strings.Split(q, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "datasource" {
			spec.DataSource = v
			continue
		}
		cfg[k] = v
	}
	spec.DataSourceConfig = cfg
	return spec
}

func printValue(v any) error {
	if recs, ok := v.([]*core.Record); ok {
		for _, rec := range recs {
			if err := printRecord(rec); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printRecord(rec *core.Record) error {
	data, err := store.MarshalRecord(rec)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	return nil
}
