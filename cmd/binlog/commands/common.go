// Package commands implements the binlog command line.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/binlog/internal/backend"
	"git.home.luguber.info/inful/binlog/internal/config"
	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/logfields"
	"git.home.luguber.info/inful/binlog/internal/version"
	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// Global carries process-wide collaborators into every command.
type Global struct {
	Logger  *slog.Logger
	Level   *slog.LevelVar
	Out     io.Writer
	ErrOut  io.Writer
	Printer *message.Printer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default ${default_config})." placeholder:"PATH" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
	Push   PushCmd   `cmd:"" help:"Append one entry"`
	Count  CountCmd  `cmd:"" help:"Count entries in a range"`
	Dump   DumpCmd   `cmd:"" help:"Print entries in a range"`
	Remove RemoveCmd `cmd:"" help:"Delete entries in a range"`
	Latest LatestCmd `cmd:"" help:"Print the newest entry for a name"`
	Tail   TailCmd   `cmd:"" help:"Follow live entries for a name"`
	Daemon DaemonCmd `cmd:"" help:"Archive streams, enforce retention and serve metrics"`
}

// Execute parses args and runs the selected command.
func Execute(args []string, out, errOut io.Writer, opts ...kong.Option) error {
	var cli CLI
	opts = append([]kong.Option{
		kong.Name("binlog"),
		kong.Description("Push, query and follow binlog entries."),
		kong.Writers(out, errOut),
		kong.Vars{"version": version.String(), "default_config": config.DefaultPath},
		kong.UsageOnError(),
	}, opts...)
	parser, err := kong.New(&cli, opts...)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to build command line").Build()
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid arguments").Build()
	}

	level := new(slog.LevelVar)
	if cli.Verbose {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	g := &Global{
		Logger:  logger,
		Level:   level,
		Out:     out,
		ErrOut:  errOut,
		Printer: newPrinter(),
	}
	return kctx.Run(g, &cli)
}

// newPrinter formats counts with thousands separators.
func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// Verbose reports whether -v/--verbose appears in args. main uses it to
// pick the error format before parsing has happened.
func Verbose(args []string) bool {
	return slices.ContainsFunc(args, func(a string) bool { return a == "-v" || a == "--verbose" })
}

// loadConfig reads the configuration file and reconfigures logging from it.
// A missing file at the default path falls back to built-in defaults.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.configPath())
	if err != nil {
		if c.Config != "" || !errors.HasCategory(err, errors.CategoryNotFound) {
			return nil, err
		}
		g.Logger.Debug("No configuration file, using defaults", logfields.Path(config.DefaultPath))
		cfg = config.Default()
	}
	g.applyLogging(cfg.Logging, c.Verbose)
	return cfg, nil
}

// configPath is the -c value, or DefaultPath when -c was not given.
func (c *CLI) configPath() string {
	if c.Config == "" {
		return config.DefaultPath
	}
	return c.Config
}

func (g *Global) applyLogging(lc config.LoggingConfig, verbose bool) {
	if verbose {
		g.Level.Set(slog.LevelDebug)
	} else {
		g.Level.Set(lc.Level.SlogLevel())
	}
	opts := &slog.HandlerOptions{Level: g.Level}
	var h slog.Handler = slog.NewTextHandler(g.ErrOut, opts)
	if lc.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(g.ErrOut, opts)
	}
	g.Logger = slog.New(h)
	slog.SetDefault(g.Logger)
}

// BackendFlag selects the store a command talks to.
type BackendFlag struct {
	Backend string `help:"Store to use (durable, stream, memory); defaults to default_backend from the config" placeholder:"KIND"`
}

func (b BackendFlag) open(ctx context.Context, root *CLI, g *Global) (binlog.Store, error) {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return nil, err
	}
	kind, err := config.ParseBackend(b.Backend)
	if err != nil {
		return nil, err
	}
	if b.Backend == "" {
		kind = cfg.DefaultBackend
	}
	return backend.Open(ctx, cfg, kind, backend.Deps{Logger: g.Logger})
}

// RangeFlags describe a timestamp interval and an optional name.
type RangeFlags struct {
	Start        *int64  `help:"First timestamp to include (microseconds)"`
	End          *int64  `help:"Timestamp to stop before (microseconds)"`
	InclusiveEnd bool    `help:"Include the --end timestamp itself"`
	Name         *string `help:"Restrict to one exact name (may be empty)"`
}

func (r RangeFlags) bounds() (start, end binlog.Bound, name binlog.NameFilter) {
	start, end, name = binlog.Unbounded(), binlog.Unbounded(), binlog.AnyName
	if r.Start != nil {
		start = binlog.Included(*r.Start)
	}
	if r.End != nil {
		end = binlog.Excluded(*r.End)
		if r.InclusiveEnd {
			end = binlog.Included(*r.End)
		}
	}
	if r.Name != nil {
		name = binlog.Named(*r.Name)
	}
	return start, end, name
}

// query opens the backend and builds the range the flags describe.
func (r RangeFlags) query(ctx context.Context, b BackendFlag, root *CLI, g *Global) (binlog.Range, func(), error) {
	st, err := b.open(ctx, root, g)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = st.Close() }
	rs, err := binlog.AsRangeable(st)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	start, end, name := r.bounds()
	rng, err := rs.Range(start, end, name)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return rng, closeStore, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseValue turns VALUE... into bytes: decimal byte values by default, or
// the space-joined UTF-8 text with asString.
func parseValue(args []string, asString bool) ([]byte, error) {
	if asString {
		return []byte(strings.Join(args, " ")), nil
	}
	out := make([]byte, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return nil, errors.ValidationError("value must be decimal bytes (0-255); use --string for text").
				WithContext("value", a).
				Build()
		}
		out = append(out, byte(n))
	}
	return out, nil
}
