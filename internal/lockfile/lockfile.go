package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
)

const (
	// DefaultName is the lock file name used inside an install root.
	DefaultName = ".carnival.lock"

	// StaleAfter is the age after which a lock is ignored even if its pid is alive.
	StaleAfter = 24 * time.Hour

	filePermissions = 0o600
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("install root is locked by another process")

// Lock is a held advisory lock. The zero value is not usable.
type Lock struct {
	// path is the lock file location.
	path string
	// released guards against double removal.
	released bool
}

// owner is the parsed content of a lock file.
type owner struct {
	pid       int
	timestamp time.Time
}

// processAlive reports whether pid belongs to a running process.
func processAlive(pid int) bool {
	p, err := ps.FindProcess(pid)

	return err == nil && p != nil
}

// Acquire creates name inside dir and returns the held lock.
// dir must exist.
func Acquire(dir, name string) (*Lock, error) {
	if name == "" {
		name = DefaultName
	}

	path := filepath.Join(dir, name)

	err := create(path)
	if err == nil {
		return &Lock{path: path}, nil
	}

	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	seen, statErr := os.Stat(path)

	current, readErr := read(path)
	if readErr == nil && !current.stale() {
		return nil, fmt.Errorf("%s (pid %d since %s): %w",
			path, current.pid, current.timestamp.Format(time.RFC3339), ErrLocked)
	}

	// Someone else replaced the stale lock while it was being inspected.
	if now, nowErr := os.Stat(path); statErr != nil || nowErr != nil || !os.SameFile(seen, now) {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	// Abandoned or unreadable: take it over once.
	if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
	}

	if err = create(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}

		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	return &Lock{path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Calling it more than once is harmless.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}

	l.released = true

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}

	return nil
}

// create publishes a fully written lock file at path, failing with fs.ErrExist
// when one is already there. Readers never observe a partially written lock.
func create(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, err = fmt.Fprintf(tmp, "pid=%d\ntimestamp=%d\n", os.Getpid(), time.Now().Unix())
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	if err = os.Chmod(tmp.Name(), filePermissions); err != nil {
		return err
	}

	return os.Link(tmp.Name(), path)
}

func read(path string) (owner, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return owner{}, err
	}

	defer func() {
		_ = f.Close()
	}()

	var (
		result  owner
		scanner = bufio.NewScanner(f)
	)

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}

		switch key {
		case "pid":
			result.pid, err = strconv.Atoi(value)
		case "timestamp":
			var unix int64

			unix, err = strconv.ParseInt(value, 10, 64)
			result.timestamp = time.Unix(unix, 0)
		}

		if err != nil {
			return owner{}, fmt.Errorf("parse lock %s: %w", path, err)
		}
	}

	if err = scanner.Err(); err != nil {
		return owner{}, err
	}

	return result, nil
}

func (o owner) stale() bool {
	if o.pid <= 0 || o.timestamp.IsZero() {
		return true
	}

	if time.Since(o.timestamp) > StaleAfter {
		return true
	}

	return !processAlive(o.pid)
}
