package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/oshokin/carnival/internal/domain/product"
	"github.com/oshokin/carnival/internal/logger"
)

// ErrExecutableNotFound is returned when the title has no runnable entry point on disk.
var ErrExecutableNotFound = errors.New("executable not found")

// LaunchError reports a process that could not be started.
type LaunchError struct {
	// Command is the attempted command line.
	Command []string
	// Err is the underlying failure.
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Options control how a title is started.
type Options struct {
	// Strategy builds the command; nil means Native.
	Strategy Strategy
	// Wrapper is a shell-style command prepended to the command line.
	Wrapper string
	// Args are passed to the title.
	Args []string
	// Env entries are added to the inherited environment.
	Env []string
	// Stdin, Stdout and Stderr default to the current process streams.
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// Launch starts the installed title and waits for it. A non-zero exit code is
// returned as a result, not as an error.
func Launch(ctx context.Context, p product.Product, info product.InstallInfo, opts Options) (int, error) {
	exe, err := Executable(p, info)
	if err != nil {
		return 0, err
	}

	strategy := opts.Strategy
	if strategy == nil {
		strategy = Native{}
	}

	name, argv, env, err := strategy.Command(exe, opts.Args)
	if err != nil {
		return 0, &LaunchError{Command: append([]string{exe}, opts.Args...), Err: err}
	}

	if opts.Wrapper != "" {
		wrapper, parseErr := shellwords.Parse(opts.Wrapper)
		if parseErr != nil {
			return 0, &LaunchError{Command: []string{opts.Wrapper}, Err: fmt.Errorf("parse wrapper: %w", parseErr)}
		}

		if len(wrapper) > 0 {
			argv = append(append(wrapper[1:], name), argv...)
			name = wrapper[0]
		}
	}

	command := append([]string{name}, argv...)

	cmd := exec.CommandContext(ctx, name, argv...) //nolint:gosec // Launching the user's title is the point.
	cmd.Dir = filepath.Dir(exe)
	cmd.Env = append(append(os.Environ(), env...), opts.Env...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}

	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	logger.InfoKV(ctx, "Launching", "slug", p.Slug, "command", command, "dir", cmd.Dir)

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}

	return 0, &LaunchError{Command: command, Err: err}
}

// Executable resolves the absolute entry point of an installed title.
// The install record wins over the version metadata.
func Executable(p product.Product, info product.InstallInfo) (string, error) {
	relative := info.Executable
	if relative == "" {
		if v, ok := p.FindVersion(info.Version, info.Platform); ok {
			relative = v.Executable
		}
	}

	if relative == "" {
		return "", fmt.Errorf("%s: no entry point recorded: %w", info.Slug, ErrExecutableNotFound)
	}

	clean := filepath.FromSlash(relative)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%s: entry point %q leaves the install root: %w", info.Slug, relative, ErrExecutableNotFound)
	}

	exe, err := filepath.Abs(filepath.Join(info.InstallPath, clean))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", relative, err)
	}

	stat, err := os.Stat(exe)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", exe, ErrExecutableNotFound)
		}

		return "", fmt.Errorf("stat %s: %w", exe, err)
	}

	if stat.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", exe, ErrExecutableNotFound)
	}

	return exe, nil
}
