package procs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrTitleRunning is returned by callers that refuse to touch a running title.
var ErrTitleRunning = errors.New("title is running")

// processList is the process table source.
type processList func() ([]ps.Process, error)

// IsRunning reports whether a process other than this one runs executable.
// Only the base name is compared, case-insensitively on Windows.
func IsRunning(executable string) (bool, error) {
	return isRunning(ps.Processes, executable)
}

func isRunning(list processList, executable string) (bool, error) {
	name := filepath.Base(filepath.FromSlash(executable))
	if name == "" || name == "." {
		return false, nil
	}

	processes, err := list()
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	self := os.Getpid()

	for _, p := range processes {
		if p.Pid() == self {
			continue
		}

		if sameName(p.Executable(), name) {
			return true, nil
		}
	}

	return false, nil
}

func sameName(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}

	// Linux truncates comm to 15 bytes.
	if len(a) == 15 && len(b) > 15 {
		return strings.HasPrefix(b, a)
	}

	return a == b
}
