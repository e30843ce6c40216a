// befly-sync 将 MySQL 表结构同步到声明文件
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/chenbimo/befly-sub001/rdb/loader"
)

var version = "dev"

type Globals struct {
	Config   string `name:"config" short:"c" help:"Config file path (yaml, json or toml)" type:"path" env:"BEFLY_SYNC_CONFIG" default:"befly-sync.yaml"`
	LogLevel string `name:"log-level" help:"Override logger level (debug, info, warn, error)" env:"BEFLY_SYNC_LOG_LEVEL"`
}

var CLI struct {
	Globals

	Sync    SyncCmd    `cmd:"" default:"withargs" help:"Reconcile the database schema with the declarations"`
	Plan    PlanCmd    `cmd:"" help:"Print the statements a sync would execute"`
	Check   CheckCmd   `cmd:"" help:"Validate declarations without connecting to the database"`
	Watch   WatchCmd   `cmd:"" help:"Sync on start and again whenever a declaration changes"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

type SyncCmd struct{}

func (c *SyncCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.reconciler.Run(ctx)
	a.writeMetrics()
	return err
}

type PlanCmd struct{}

func (c *PlanCmd) Run(g *Globals, k *kong.Context) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.reconciler.Plan(context.Background())
	if err != nil {
		return err
	}
	for _, step := range stats.Steps {
		fmt.Fprintf(k.Stdout, "-- %s %s\n%s;\n", step.Table, step.Action.Kind(), step.Statement.SQL)
	}
	fmt.Fprintf(k.Stdout, "-- %d table(s), %d to create, %d to modify\n", stats.Processed, stats.Created, stats.Modified)
	return nil
}

type CheckCmd struct{}

func (c *CheckCmd) Run(g *Globals, k *kong.Context) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	tables, err := a.reconciler.Validate()
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Fprintf(k.Stdout, "%s\t%d field(s)\t%s\n", t.Name, len(t.Fields), t.Source)
	}
	return nil
}

type WatchCmd struct{}

func (c *WatchCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	dirs := make([]string, 0, len(a.options.Reconcile.Sources))
	for _, src := range a.options.Reconcile.Sources {
		dirs = append(dirs, src.Dir)
	}
	w, err := loader.NewWatcherWithOptions(&loader.WatcherOptions{
		Dirs:     dirs,
		Debounce: a.options.Watch.Debounce,
	}, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Watch(ctx, func(ctx context.Context) error {
		_, err := a.reconciler.Run(ctx)
		a.writeMetrics()
		return err
	})
}

type VersionCmd struct{}

func (c *VersionCmd) Run(k *kong.Context) error {
	fmt.Fprintln(k.Stdout, "befly-sync", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("befly-sync"),
		kong.Description("Reconcile a MySQL schema with declarative table files"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
