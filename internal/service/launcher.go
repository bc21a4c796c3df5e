package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/tull/internal/config"
)

// Launcher starts a background gateway when none is answering.
type Launcher struct {
	cfg    *config.Config
	probe  Prober
	exe    string
	argsFn func(cfg *config.Config) []string
}

// LauncherOption customises a Launcher.
type LauncherOption func(*Launcher)

// WithExecutable overrides the binary that is started. It defaults to the
// running executable.
func WithExecutable(path string) LauncherOption {
	return func(l *Launcher) {
		l.exe = path
	}
}

// WithArgs overrides the arguments passed to the started binary.
func WithArgs(fn func(cfg *config.Config) []string) LauncherOption {
	return func(l *Launcher) {
		l.argsFn = fn
	}
}

// NewLauncher creates a launcher for the gateway described by cfg.
func NewLauncher(cfg *config.Config, probe Prober, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		probe:  probe,
		argsFn: ServeArgs,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ServeArgs returns the arguments that make the tull binary run the gateway
// in the foreground for cfg. The config file cfg was read from, if any, is
// passed on so the gateway sees the same logging settings.
func ServeArgs(cfg *config.Config) []string {
	args := []string{
		"--serve",
		"--host", cfg.Service.Host,
		"--port", strconv.Itoa(cfg.Service.Port),
		"--home", cfg.Service.Home,
	}
	if cfg.Source != "" {
		args = append(args, "--config", cfg.Source)
	}
	if cfg.Logging.Level != "" {
		args = append(args, "--log-level", cfg.Logging.Level)
	}
	return args
}

// EnsureRunning starts a gateway unless one already answers on the configured
// address. It reports whether a process was started. It does not wait for
// the new gateway to accept connections.
//
// Two callers racing here may both start a gateway; the loser fails to bind
// and exits, which leaves a line in server.log and nothing else.
func (l *Launcher) EnsureRunning(ctx context.Context) (bool, error) {
	if l.probe.IsAlive(ctx, l.cfg.Service.Host, l.cfg.Service.Port) {
		return false, nil
	}

	if err := l.spawn(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Launcher) spawn() error {
	exe := l.exe
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return fmt.Errorf("get executable path: %w", err)
		}
	}

	logPath := l.cfg.ServerLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	// The child holds its own descriptor once started.
	defer logFile.Close()

	cmd := exec.Command(exe, l.argsFn(l.cfg)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	// Nothing waits on the child; let it outlive us.
	return cmd.Process.Release()
}
