package product

// InstallInfo is the persisted record of an installed product.
type InstallInfo struct {
	// Slug identifies the product.
	Slug string `yaml:"slug"`
	// Version is the installed build label.
	Version string `yaml:"version"`
	// Platform is the platform of the installed build.
	Platform Platform `yaml:"platform"`
	// InstallPath is the absolute install root.
	InstallPath string `yaml:"install_path"`
	// Executable is the entry point relative to InstallPath.
	Executable string `yaml:"executable,omitempty"`
}

// InstalledState maps slugs to their install records. It is the source of truth
// for what is on this machine.
type InstalledState map[string]InstallInfo

// Get returns the record for slug.
func (s InstalledState) Get(slug string) (InstallInfo, bool) {
	info, ok := s[slug]

	return info, ok
}

// Clone returns a copy that can be mutated without touching s.
func (s InstalledState) Clone() InstalledState {
	cloned := make(InstalledState, len(s))
	for slug, info := range s {
		cloned[slug] = info
	}

	return cloned
}
