package exec

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/logging"
)

// CommandRunner is a wrapper around [exec.Command] that is useful for testing.
type CommandRunner interface {
	RunCommand(ctx context.Context, path string, args ...string) (string, error)
}

// Hook can rewrite a command before it is built, e.g. to prepend a privilege
// escalation tool.
type Hook interface {
	Name() string
	PreCommand(ctx context.Context, name *string, args *[]string) error
}

// Opt is a functional option for configuring a DefaultCommandRunner.
type Opt func(*DefaultCommandRunner)

// WithDir sets the working directory commands are run in.
func WithDir(dir string) Opt {
	return func(d *DefaultCommandRunner) {
		d.dir = dir
	}
}

// WithHooks adds hooks to the runner. Nil hooks are ignored.
func WithHooks(hooks ...Hook) Opt {
	return func(d *DefaultCommandRunner) {
		for _, hook := range hooks {
			if hook != nil {
				d.hooks = append(d.hooks, hook)
			}
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Opt {
	return func(d *DefaultCommandRunner) {
		if logger == nil {
			logger = logging.DiscardLogger
		}
		d.log = logger
	}
}

// WithOutput tees stdout and stderr of every command to w while still capturing them.
// Useful for long running commands like compilers.
func WithOutput(w io.Writer) Opt {
	return func(d *DefaultCommandRunner) {
		d.output = w
	}
}

// WithStdin connects the standard input of every command to stdin.
// sudo needs this to prompt for a password.
func WithStdin(stdin io.Reader) Opt {
	return func(d *DefaultCommandRunner) {
		d.stdin = stdin
	}
}

func NewDefaultCommandRunner(opts ...Opt) *DefaultCommandRunner {
	d := &DefaultCommandRunner{
		log: logging.DiscardLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type DefaultCommandRunner struct {
	dir    string
	hooks  []Hook
	log    *slog.Logger
	output io.Writer
	stdin  io.Reader
}

var _ CommandRunner = &DefaultCommandRunner{}

func (d *DefaultCommandRunner) RunCommand(ctx context.Context, path string, args ...string) (string, error) {
	for _, hook := range d.hooks {
		if err := hook.PreCommand(ctx, &path, &args); err != nil {
			return "", trace.Wrap(err, "hook %q failed for command %q", hook.Name(), path)
		}
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = d.dir
	cmd.Stdin = d.stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if d.output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, d.output)
		cmd.Stderr = io.MultiWriter(&stderr, d.output)
	}

	d.log.DebugContext(ctx, "running command", "command", cmd.String(), "dir", d.dir)
	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		return out, trace.Wrap(err, "failed to run command %q: %s", cmd.String(), strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// DryRunner is a dry runner that does not actually run the command.
// Instead, it logs the command that would have been run.
type DryRunner struct {
	log *slog.Logger
}

var _ CommandRunner = &DryRunner{}

// NewDryRunner creates a new dry runner.
func NewDryRunner(logger *slog.Logger) *DryRunner {
	if logger == nil {
		logger = logging.DiscardLogger
	}
	return &DryRunner{
		log: logger,
	}
}

// RunCommand logs the command that would have been run.
func (d *DryRunner) RunCommand(ctx context.Context, path string, args ...string) (string, error) {
	d.log.InfoContext(ctx, "dry run", "path", path, "args", args)
	return "dry run", nil
}

// SudoHook runs every command through sudo.
type SudoHook struct {
	// Path of the sudo binary. Defaults to "sudo".
	Path string
}

var _ Hook = &SudoHook{}

func NewSudoHook() *SudoHook {
	return &SudoHook{Path: "sudo"}
}

func (s *SudoHook) Name() string {
	return "sudo"
}

// PreCommand prepends sudo to the command. Commands already run through sudo are left alone.
func (s *SudoHook) PreCommand(ctx context.Context, name *string, args *[]string) error {
	sudo := s.Path
	if sudo == "" {
		sudo = "sudo"
	}
	if *name == sudo {
		return nil
	}
	*args = append([]string{*name}, *args...)
	*name = sudo
	return nil
}

// Elevated returns a runner whose commands are run with sudo unless the
// current process already runs as root.
func Elevated(opts ...Opt) *DefaultCommandRunner {
	if os.Geteuid() == 0 {
		return NewDefaultCommandRunner(opts...)
	}
	return NewDefaultCommandRunner(append(opts, WithHooks(NewSudoHook()), WithStdin(os.Stdin))...)
}
