package launcher

import (
	"fmt"
	"os/exec"

	"github.com/oshokin/carnival/internal/domain/product"
)

// Strategy builds the process to start for an executable.
type Strategy interface {
	// Command returns the program, its arguments and extra environment entries.
	Command(exe string, args []string) (name string, argv []string, env []string, err error)
}

// Native runs the executable directly.
type Native struct{}

// Command implements Strategy.
func (Native) Command(exe string, args []string) (string, []string, []string, error) {
	return exe, append([]string(nil), args...), nil, nil
}

// Compat runs the executable through a compatibility runtime.
type Compat struct {
	// Runtime is the runtime program, looked up in PATH when not absolute.
	Runtime string
	// Prefix is exported as WINEPREFIX when not empty.
	Prefix string
}

// Command implements Strategy.
func (c Compat) Command(exe string, args []string) (string, []string, []string, error) {
	runtime := c.Runtime
	if runtime == "" {
		runtime = DefaultCompatRuntime
	}

	path, err := exec.LookPath(runtime)
	if err != nil {
		return "", nil, nil, fmt.Errorf("compatibility runtime %q: %w", runtime, err)
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, exe)
	argv = append(argv, args...)

	var env []string
	if c.Prefix != "" {
		env = append(env, "WINEPREFIX="+c.Prefix)
	}

	return path, argv, env, nil
}

// DefaultCompatRuntime is used when Compat.Runtime is empty.
const DefaultCompatRuntime = "wine"

// SelectStrategy picks Native when the build targets the host platform, or when
// noCompat forces it, and Compat otherwise.
func SelectStrategy(target, native product.Platform, noCompat bool, runtime, prefix string) Strategy {
	if noCompat || target == "" || target == native {
		return Native{}
	}

	return Compat{Runtime: runtime, Prefix: prefix}
}
