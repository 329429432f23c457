package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeanpaul/favourites/internal/config"
	"github.com/jeanpaul/favourites/internal/headless"
	"github.com/jeanpaul/favourites/internal/store"
	"github.com/jeanpaul/favourites/internal/tui"
)

var version = "dev"

func main() {
	versionFlag := flag.Bool("version", false, "Print version")
	helpFlag := flag.Bool("help", false, "Show help")
	flag.BoolVar(helpFlag, "h", false, "Show help")
	jsonFlag := flag.Bool("json", false, "Print command output as JSON")
	backendFlag := flag.String("backend", "", "Storage backend (file, sqlite, memory)")
	logLevelFlag := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	flag.Usage = showHelp
	flag.Parse()

	if *helpFlag {
		showHelp()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("favourites %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("config error: %s", err)
	}
	if *backendFlag != "" {
		cfg.Storage.Backend = *backendFlag
		cfg.Storage.Path = ""
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		fatal("%s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		launchTUI(ctx, cfg)
		return
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		only := fs.Bool("favourites", false, "Only list favourites")
		fs.BoolVar(only, "f", false, "Only list favourites")
		fs.Parse(args[1:])
		runHeadless(ctx, cfg, *jsonFlag, func(r *headless.Runner) error { return r.List(*only) })
	case "add":
		if len(args) < 3 {
			fatal("usage: favourites add <contact-id> <message>")
		}
		id, msg := args[1], strings.Join(args[2:], " ")
		runHeadless(ctx, cfg, *jsonFlag, func(r *headless.Runner) error { return r.Add(ctx, id, msg) })
	case "remove", "rm":
		if len(args) < 2 {
			fatal("usage: favourites remove <contact-id>")
		}
		runHeadless(ctx, cfg, *jsonFlag, func(r *headless.Runner) error { return r.Remove(args[1]) })
	case "show":
		if len(args) < 2 {
			fatal("usage: favourites show <contact-id>")
		}
		runHeadless(ctx, cfg, *jsonFlag, func(r *headless.Runner) error { return r.Show(args[1]) })
	case "doctor":
		cmdDoctor(ctx, cfg)
	case "help":
		showHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		showHelp()
		os.Exit(2)
	}
}

func runHeadless(ctx context.Context, cfg *config.Config, asJSON bool, fn func(*headless.Runner) error) {
	logger, closeLog, err := newLogger(cfg.Log, false)
	if err != nil {
		fatal("log setup: %s", err)
	}
	defer closeLog()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fatal("%s", err)
	}
	r := &headless.Runner{Svc: a.svc, Out: os.Stdout, JSON: asJSON}
	runErr := fn(r)
	a.close()
	if runErr != nil {
		fatal("%s", runErr)
	}
}

func launchTUI(ctx context.Context, cfg *config.Config) {
	logger, closeLog, err := newLogger(cfg.Log, true)
	if err != nil {
		fatal("log setup: %s", err)
	}
	defer closeLog()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fatal("%s", err)
	}
	defer a.close()

	// subscribers run under the store's locks, so never block here
	events := make(chan store.Event, 64)
	unsubscribe := a.store.Subscribe(func(e store.Event) {
		select {
		case events <- e:
		default:
			logger.Warn("tui: event dropped", "kind", e.Kind)
		}
	})
	defer unsubscribe()

	var opts []tea.ProgramOption
	if isTerminal() {
		opts = append(opts, tea.WithAltScreen())
	}
	opts = append(opts, tea.WithContext(ctx))

	p := tea.NewProgram(tui.NewModel(a.svc, events), opts...)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fatal("TUI error: %s", err)
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("error: "+msg))
	os.Exit(1)
}

func showHelp() {
	help := `
` + tui.TitleStyle.Render("favourites") + ` - keep a list of favourite contacts

` + tui.DialogTitleStyle.Render("USAGE:") + `
  favourites [flags]                   Browse contacts interactively
  favourites [flags] <command> [args]  Run one command

` + tui.DialogTitleStyle.Render("COMMANDS:") + `
  list [-f]                    List contacts (-f: favourites only)
  add <id> <message>           Add a contact to favourites
  remove <id>                  Remove a contact from favourites
  show <id>                    Show a stored favourite
  doctor                       Check storage, contacts and gender lookup
  help                         Show this help

` + tui.DialogTitleStyle.Render("FLAGS:") + `
  --json                       Print command output as JSON
  --backend <name>             Storage backend (file, sqlite, memory)
  --log-level <level>          debug, info, warn or error
  --version                    Show version
  --help, -h                   Show this help

` + tui.HelpStyle.Render("Config: "+config.Dir()+"/config.yaml (env: FAVOURITES_*)") + `
`
	fmt.Println(help)
}
