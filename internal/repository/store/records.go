package store

import (
	"path/filepath"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/domain/product"
)

// Record file names inside the configuration directory.
const (
	InstalledFilename = "installed.yml"
	LibraryFilename   = "library.yml"
	UserFilename      = "user.yml"
	SessionFilename   = "cookies.yml"
)

// NewInstalled returns the store of installed titles.
func NewInstalled(dir string) *File[product.InstalledState] {
	return NewFile(filepath.Join(dir, InstalledFilename), func() product.InstalledState {
		return make(product.InstalledState)
	})
}

// NewLibrary returns the store of the synced library.
func NewLibrary(dir string) *File[product.Library] {
	return NewFile[product.Library](filepath.Join(dir, LibraryFilename), nil)
}

// NewUser returns the store of the signed-in user's profile.
func NewUser(dir string) *File[catalog.UserInfo] {
	return NewFile[catalog.UserInfo](filepath.Join(dir, UserFilename), nil)
}

// NewSession returns the store of session cookies.
func NewSession(dir string) *File[catalog.Session] {
	return NewFile[catalog.Session](filepath.Join(dir, SessionFilename), nil)
}
