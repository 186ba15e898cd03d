package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/claude/mapty/internal/config"
	"github.com/claude/mapty/internal/form"
	"github.com/claude/mapty/internal/importer"
	"github.com/claude/mapty/internal/render"
	"github.com/claude/mapty/internal/storage"
	"github.com/claude/mapty/internal/tracker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `Usage: mapty-cli [-config file] [-v] <command> [args]

Commands:
  list [-type running|cycling]     show all workouts, newest first
  show <id>                        show one workout
  add -type T -distance D -duration M [-cadence C] [-elevation E] [-lat L] [-lng L]
  edit <id> [-distance D] [-duration M] [-cadence C] [-elevation E]
  rm <id>                          delete a workout
  focus <id>                       select a workout on the map
  clear                            delete every workout
  import [-dry-run] <file>         merge a saved, exported or .fit file
  export <file|->                  write the collection (.gz to compress)
  report [-format csv|pdf] <file|->  write a printable summary
  version                          print version
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mapty-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "path to config file (empty for defaults)")
	verbose := fs.Bool("v", false, "log storage activity to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintln(stdout, "mapty-cli", Version)
		return nil
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	blobs, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Target())
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer blobs.Close()

	list := render.NewList(stdout)
	store := tracker.New(blobs, cfg.Storage.Key, log)
	if _, err := store.Initialize(ctx); err != nil {
		var corrupt *tracker.StorageCorruptError
		if !errors.As(err, &corrupt) {
			return err
		}
		fmt.Fprintln(stderr, "warning:", err)
	}
	store.Subscribe(list)

	c := &cli{store: store, list: list, log: log, stdout: stdout, stderr: stderr, zoom: cfg.Map.ZoomLevel}
	switch cmd {
	case "list":
		return c.listCmd(cmdArgs)
	case "show":
		return c.showCmd(cmdArgs)
	case "add":
		return c.addCmd(ctx, cmdArgs)
	case "edit":
		return c.editCmd(ctx, cmdArgs)
	case "rm":
		return c.rmCmd(ctx, cmdArgs)
	case "focus":
		return c.focusCmd(ctx, cmdArgs)
	case "clear":
		return warnOnly(c.stderr, store.Clear(ctx))
	case "import":
		return c.importCmd(ctx, cmdArgs)
	case "export":
		return c.exportCmd(cmdArgs)
	case "report":
		return c.reportCmd(cmdArgs)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type cli struct {
	store  *tracker.Store
	list   *render.List
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
	zoom   int
}

func (c *cli) listCmd(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	kind := fs.String("type", "", "only show running or cycling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	workouts := c.store.List()
	if *kind != "" {
		filtered := workouts[:0]
		for _, w := range workouts {
			if string(w.Kind) == *kind {
				filtered = append(filtered, w)
			}
		}
		workouts = filtered
	}
	c.list.Render(workouts)
	return nil
}

func (c *cli) showCmd(args []string) error {
	id, err := oneID("show", args)
	if err != nil {
		return err
	}
	w, err := c.store.FindByID(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "[%s] %s\n  created %s at %.5f, %.5f, %d clicks\n",
		w.ID, render.Entry(w), w.CreatedAt.Format(time.RFC3339), w.Coords.Lat, w.Coords.Lng, w.Clicks)
	return nil
}

func (c *cli) addCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var in form.Input
	fs.StringVar(&in.Kind, "type", "running", "running or cycling")
	fs.StringVar(&in.Distance, "distance", "", "distance in km")
	fs.StringVar(&in.Duration, "duration", "", "duration in min")
	fs.StringVar(&in.Cadence, "cadence", "", "steps per minute (running)")
	fs.StringVar(&in.Elevation, "elevation", "", "elevation gain in m (cycling)")
	fs.Float64Var(&in.Lat, "lat", 0, "latitude")
	fs.Float64Var(&in.Lng, "lng", 0, "longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w, err := form.Parse(in, time.Now())
	if err != nil {
		return err
	}
	return warnOnly(c.stderr, c.store.Add(ctx, *w))
}

func (c *cli) editCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("edit: workout id required")
	}
	id := args[0]

	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Float64("distance", 0, "distance in km")
	fs.Float64("duration", 0, "duration in min")
	fs.Float64("cadence", 0, "steps per minute (running)")
	fs.Float64("elevation", 0, "elevation gain in m (cycling)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var patch tracker.Patch
	var visitErr error
	fs.Visit(func(f *flag.Flag) {
		v, err := strconv.ParseFloat(f.Value.String(), 64)
		if err != nil {
			visitErr = err
			return
		}
		switch f.Name {
		case "distance":
			patch.DistanceKm = &v
		case "duration":
			patch.DurationMin = &v
		case "cadence":
			patch.Cadence = &v
		case "elevation":
			patch.ElevationGainM = &v
		}
	})
	if visitErr != nil {
		return visitErr
	}

	_, err := c.store.Update(ctx, id, patch)
	return warnOnly(c.stderr, err)
}

func (c *cli) rmCmd(ctx context.Context, args []string) error {
	id, err := oneID("rm", args)
	if err != nil {
		return err
	}
	return warnOnly(c.stderr, c.store.Remove(ctx, id))
}

func (c *cli) focusCmd(ctx context.Context, args []string) error {
	id, err := oneID("focus", args)
	if err != nil {
		return err
	}
	w, err := c.store.Focus(ctx, id)
	if err := warnOnly(c.stderr, err); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\n  map centred on %.5f, %.5f at zoom %d\n", render.Marker(w), w.Coords.Lat, w.Coords.Lng, c.zoom)
	return nil
}

func (c *cli) importCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	dryRun := fs.Bool("dry-run", false, "report counts without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import: exactly one file required")
	}

	stats, err := importer.New(c.store, c.log, *dryRun).ImportFile(ctx, fs.Arg(0))
	if err := warnOnly(c.stderr, err); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "received %d, imported %d, duplicated %d, skipped %d\n", stats.Received, stats.Imported, stats.Duplicated, stats.Skipped)
	return nil
}

func (c *cli) exportCmd(args []string) error {
	if len(args) != 1 {
		return errors.New("export: output file or - required")
	}
	if args[0] == "-" {
		return importer.Export(c.store, c.stdout)
	}
	return importer.ExportFile(c.store, args[0])
}

func (c *cli) reportCmd(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	format := fs.String("format", render.FormatCSV, "csv or pdf")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("report: output file or - required")
	}

	if fs.Arg(0) == "-" {
		return render.Report(c.stdout, *format, c.store.List())
	}
	f, err := os.Create(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := render.Report(f, *format, c.store.List()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func oneID(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: exactly one workout id required", cmd)
	}
	return args[0], nil
}

// warnOnly reports storage write failures without failing the command:
// the change was applied but may not survive.
func warnOnly(stderr io.Writer, err error) error {
	var werr *tracker.StorageWriteError
	if errors.As(err, &werr) {
		fmt.Fprintln(stderr, "warning:", err)
		return nil
	}
	return err
}
