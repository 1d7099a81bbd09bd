// Command schedulectl drives the scheduling API from the shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"schedulink/internal/access"
	"schedulink/internal/apiclient"
	"schedulink/internal/booking"
	"schedulink/internal/config"
	"schedulink/internal/database"
	"schedulink/internal/models"
	"schedulink/internal/session"
)

const usage = `usage: schedulectl [flags] <command> [args]

commands:
  users create -name N -email E -phone P
  users list
  users get <id>
  users slots <id>
  bookings <user id>
  slots create -title T -date YYYY-MM-DD -start HH:MM -end HH:MM [-description D] [-user ID]
  slots list [-date YYYY-MM-DD] [-available | -booked] [-user ID]
  slots get <id>
  slots update <id> [-title T] [-description D] [-date D] [-start HH:MM] [-end HH:MM]
  slots delete <id>
  book <slot id> <user id>
  cancel <slot id>
  health
  prefs show
  prefs theme [light|dark]
  prefs role <guest|master>
  journal [-limit N]
  export <file.xlsx>
  backup [-keep-days N] <dir>

flags:
`

// errUsage marks bad invocations; they exit with status 2.
var errUsage = errors.New("usage")

type globalFlags struct {
	configPath string
	apiURL     string
	profile    string
	role       string
	ephemeral  bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schedulectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var g globalFlags
	fs.StringVar(&g.configPath, "config", os.Getenv("SCHEDULINK_CONFIG_PATH"), "path to config.yaml")
	fs.StringVar(&g.apiURL, "api", "", "API base URL (overrides config)")
	fs.StringVar(&g.profile, "profile", "cli", "preferences profile")
	fs.StringVar(&g.role, "as", "", "switch the profile to this role before running the command")
	fs.BoolVar(&g.ephemeral, "ephemeral", false, "keep preferences in memory and skip the local database")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	output := zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if g.verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	a, cleanup, err := newApp(ctx, g, stdout, &logger)
	if err == nil {
		defer cleanup()
		err = a.dispatch(ctx, fs.Args())
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

// app holds everything a command may need.
type app struct {
	api     *apiclient.Client
	slots   *booking.Controller
	prefs   *session.Manager
	access  *access.Service
	db      *database.DB
	profile string
	out     io.Writer
	logger  *zerolog.Logger
}

func newApp(ctx context.Context, g globalFlags, out io.Writer, logger *zerolog.Logger) (*app, func(), error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseURL := cfg.API.BaseURL
	if g.apiURL != "" {
		baseURL = g.apiURL
	}
	opts := apiclient.Options{
		BaseURL:   baseURL,
		APIKey:    cfg.API.APIKey,
		UserAgent: "schedulectl",
		Timeout:   cfg.APITimeout(),
		Logger:    logger,
	}
	if cfg.API.RateLimitRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimitRPS), cfg.API.RateLimitBurst)
	}
	client := apiclient.New(opts)

	a := &app{api: client, profile: g.profile, out: out, logger: logger}
	cleanup := func() {}

	var store session.Store
	var journal booking.Journal
	if g.ephemeral {
		store = session.NewMemoryStore()
	} else {
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = db.Close() }
		store = db
		a.db = db
		if cfg.Journal.Enabled {
			journal = db
		}
	}

	a.slots = booking.NewController(client, booking.Options{Journal: journal, Logger: logger})
	a.prefs = session.NewManager(store, logger)
	a.access = access.NewService(a.prefs, cfg.Masters, *logger)

	if g.role != "" {
		role, ok := models.ParseRole(g.role)
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf("%w: -as must be guest or master", errUsage)
		}
		if role == models.RoleMaster && !a.access.CanBecomeMaster(a.profile) {
			cleanup()
			return nil, nil, fmt.Errorf("profile %s may not act as master", a.profile)
		}
		if _, err := a.prefs.Complete(ctx, a.profile, role); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return a, cleanup, nil
}
