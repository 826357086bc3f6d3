package product

import (
	"fmt"
	"strings"
)

// ProductVersion is one published build of a product for one platform.
type ProductVersion struct {
	// Version is an opaque comparable label.
	Version string `json:"version" yaml:"version"`
	// Platform is the target operating system of the build.
	Platform Platform `json:"os" yaml:"platform"`
	// Manifest references the build manifest (absolute URL or relative to the API URL).
	Manifest string `json:"manifest" yaml:"manifest"`
	// Executable is the entry point relative to the install root.
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty"`
	// Date is the release date as reported by the storefront.
	Date string `json:"date,omitempty" yaml:"date,omitempty"`
	// Enabled is false for builds the storefront withdrew.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// String renders the version for `info` output.
func (v ProductVersion) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Version: %s\nPlatform: %s", v.Version, v.Platform)

	if v.Date != "" {
		fmt.Fprintf(&b, "\nDate: %s", v.Date)
	}

	if !v.Enabled {
		b.WriteString("\nDisabled")
	}

	return b.String()
}

// Product is a purchased catalog entry.
type Product struct {
	// Namespace is the publisher scope.
	Namespace string `json:"prod_dev_namespace" yaml:"namespace"`
	// Slug is the stable human-readable identifier.
	Slug string `json:"prod_slugged_name" yaml:"slug"`
	// ID is the numeric storefront identifier.
	ID uint64 `json:"id" yaml:"id"`
	// Name is the display name.
	Name string `json:"prod_name" yaml:"name"`
	// IDKeyName is the storefront's key name for the product.
	IDKeyName string `json:"prod_id_key_name" yaml:"id_key_name"`
	// Versions lists every published build.
	Versions []ProductVersion `json:"version" yaml:"versions"`
}

// String renders the product as a library line.
func (p *Product) String() string {
	return fmt.Sprintf("[%s]\t%s (%d)", p.Slug, p.Name, p.ID)
}

// FindVersion returns the build matching version and, when platform is not empty, platform.
func (p *Product) FindVersion(version string, platform Platform) (ProductVersion, bool) {
	for _, v := range p.Versions {
		if v.Version != version {
			continue
		}

		if platform != "" && v.Platform != platform {
			continue
		}

		return v, true
	}

	return ProductVersion{}, false
}

// Platforms returns the distinct platforms with at least one enabled build, in declaration order.
func (p *Product) Platforms() []Platform {
	seen := make(map[Platform]struct{}, len(p.Versions))
	result := make([]Platform, 0, len(p.Versions))

	for _, v := range p.Versions {
		if !v.Enabled {
			continue
		}

		if _, ok := seen[v.Platform]; ok {
			continue
		}

		seen[v.Platform] = struct{}{}
		result = append(result, v.Platform)
	}

	return result
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}

	cloned := *p
	cloned.Versions = append([]ProductVersion(nil), p.Versions...)

	return &cloned
}
