package product

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Platform is the operating system a build targets.
type Platform string

// Known platforms.
const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformMac     Platform = "mac"
)

// ErrUnknownPlatform is returned for platform names that cannot be normalised.
var ErrUnknownPlatform = errors.New("unknown platform")

// ParsePlatform accepts canonical names and the short aliases used by the storefront.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win", "win64", "win32":
		return PlatformWindows, nil
	case "linux", "lin":
		return PlatformLinux, nil
	case "mac", "macos", "osx", "darwin":
		return PlatformMac, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownPlatform)
	}
}

// NativePlatform maps runtime.GOOS to a Platform.
func NativePlatform() Platform {
	return platformFromGOOS(runtime.GOOS)
}

func platformFromGOOS(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		return PlatformLinux
	}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}
