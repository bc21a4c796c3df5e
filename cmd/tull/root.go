package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/ternarybob/tull/internal/api"
	"github.com/ternarybob/tull/internal/capture"
	"github.com/ternarybob/tull/internal/config"
	"github.com/ternarybob/tull/internal/logger"
	"github.com/ternarybob/tull/internal/service"
	"github.com/ternarybob/tull/internal/store"
)

type options struct {
	web    bool
	start  bool
	stop   bool
	status bool
	ls     bool
	serve  bool
	follow string
	reopen string

	host       string
	port       int
	home       string
	configPath string
	logLevel   string
}

type app struct {
	opts   options
	cmd    *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "tull",
		Short: "Capture terminal input into sessions and serve them over HTTP",
		Long: `tull copies its standard input to standard output and records every
line as a session under ~/.tull/data. Sessions are served as HTML, JSON and
raw text by a background server that tull starts when none is running.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	a.cmd = cmd

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.BoolVarP(&a.opts.web, "web", "w", false, "print the server URLs")
	flags.BoolVar(&a.opts.start, "start", false, "start the server if needed and capture a session (default)")
	flags.BoolVar(&a.opts.stop, "stop", false, "stop the server (not supported)")
	flags.BoolVarP(&a.opts.status, "status", "s", false, "report whether the server is running")
	flags.BoolVarP(&a.opts.ls, "ls", "l", false, "list session ids")
	flags.StringVarP(&a.opts.follow, "follow", "f", "", "follow a session (not supported)")
	flags.StringVarP(&a.opts.reopen, "reopen", "r", "", "append to the session with this id")
	flags.StringVarP(&a.opts.host, "host", "h", defaults.Service.Host, "server host")
	flags.IntVarP(&a.opts.port, "port", "p", defaults.Service.Port, "server port")
	flags.StringVar(&a.opts.home, "home", "", "base directory for data and meta (default ~/.tull)")
	flags.StringVar(&a.opts.configPath, "config", "", "config file (default <home>/config.yaml or config.toml)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "server log level (debug, info, warn, error)")
	flags.BoolVar(&a.opts.serve, "serve", false, "run the server in the foreground")
	_ = flags.MarkHidden("serve")

	return cmd
}

// loadConfig resolves configuration: defaults, then the config file, then flags.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.opts.configPath
	if path == "" {
		if a.opts.home != "" {
			path = config.FindConfig(a.opts.home)
		} else {
			path = config.DefaultConfigPath()
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := a.cmd.Flags()
	if a.opts.home != "" {
		cfg.Service.Home = a.opts.home
	}
	if flags.Changed("host") {
		cfg.Service.Host = a.opts.host
	}
	if flags.Changed("port") {
		cfg.Service.Port = a.opts.port
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	st := store.New(cfg.DataDir(), cfg.MetaDir())

	if a.opts.serve {
		return a.runServe(ctx, cfg, st)
	}

	informational := false
	if a.opts.web {
		a.printURLs(cfg)
		informational = true
	}
	if a.opts.status {
		a.printStatus(ctx, cfg)
		informational = true
	}
	if a.opts.stop {
		fmt.Fprintln(a.stderr, "--stop is not supported; stop the tull server process directly")
		informational = true
	}
	if a.opts.ls {
		if err := a.printSessions(st); err != nil {
			return err
		}
		informational = true
	}
	if a.opts.follow != "" {
		fmt.Fprintf(a.stderr, "--follow is not supported; open %s/web/%s instead\n", cfg.BaseURL(), a.opts.follow)
		informational = true
	}

	if informational && !a.opts.start && a.opts.reopen == "" {
		return nil
	}
	return a.runCapture(ctx, cfg, st)
}

func (a *app) printURLs(cfg *config.Config) {
	base := cfg.BaseURL()
	fmt.Fprintf(a.stdout, "TULL_API_URL: %s/api\n", base)
	fmt.Fprintf(a.stdout, "TULL_WEB_URL: %s/web\n", base)
	fmt.Fprintf(a.stdout, "TULL_RAW_URL: %s/raw\n", base)
}

func (a *app) printStatus(ctx context.Context, cfg *config.Config) {
	probe := service.NewProbe(cfg.Service.ProbeTimeout)
	if probe.IsAlive(ctx, cfg.Service.Host, cfg.Service.Port) {
		fmt.Fprintf(a.stdout, "tull server: running at %s\n", cfg.BaseURL())
	} else {
		fmt.Fprintf(a.stdout, "tull server: not running at %s\n", cfg.Address())
	}
}

func (a *app) printSessions(st *store.Store) error {
	ids, err := st.List()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, id := range ids {
		fmt.Fprintln(a.stdout, id)
	}
	return nil
}

func (a *app) runCapture(ctx context.Context, cfg *config.Config, st *store.Store) error {
	id := a.opts.reopen
	if id != "" {
		if err := store.ValidateID(id); err != nil {
			return err
		}
	}

	if err := st.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create the data directories: %w", err)
	}

	launcher := service.NewLauncher(cfg, service.NewProbe(cfg.Service.ProbeTimeout))
	launched, err := launcher.EnsureRunning(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "warning: couldn't start the web server: %v\n", err)
	} else if launched {
		fmt.Fprintf(a.stderr, "tull server starting at %s (log: %s)\n", cfg.BaseURL(), cfg.ServerLogPath())
	}

	if id == "" {
		id = st.NewID()
	}
	fmt.Fprintf(a.stderr, "tull session %s\n", id)

	res, err := capture.Run(ctx, capture.Options{
		Store: st,
		ID:    id,
		In:    a.stdin,
		Out:   a.stdout,
		Warn:  a.stderr,
	})
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		fmt.Fprintf(a.stderr, "warning: %d line(s) of session %s were not saved\n", res.Failed, res.ID)
	}
	return nil
}

func (a *app) runServe(ctx context.Context, cfg *config.Config, st *store.Store) error {
	if err := st.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create the data directories: %w", err)
	}

	log := logger.SetupLogger(cfg)
	defer logger.Stop()

	srv, err := api.NewServer(st, log)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	daemon := service.NewDaemon(cfg, log)
	if err := daemon.Start(srv.Handler()); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	daemon.WatchSessions(st)

	log.Info().Str("version", version).Str("url", cfg.BaseURL()).Str("data_dir", cfg.DataDir()).Msg("tull server started")

	return daemon.Wait(ctx)
}
