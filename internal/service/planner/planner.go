package planner

import (
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/oshokin/carnival/internal/domain/product"
)

// Compare orders two version labels: -1 if a < b, 0 if equal, 1 if a > b.
// Labels that parse as versions rank above labels that do not and are ordered
// by go-version among themselves; the rest are ordered lexicographically.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)

	switch {
	case errA == nil && errB != nil:
		return 1
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
	}

	// Labels that are equal as versions ("1.0" and "1.0.0") still get a stable order.
	return strings.Compare(a, b)
}

// Latest returns the greatest enabled version for platform.
// An empty platform matches every build.
func Latest(versions []product.ProductVersion, platform product.Platform) (product.ProductVersion, bool) {
	var (
		best  product.ProductVersion
		found bool
	)

	for _, v := range versions {
		if !v.Enabled {
			continue
		}

		if platform != "" && v.Platform != platform {
			continue
		}

		if !found || Compare(v.Version, best.Version) > 0 {
			best = v
			found = true
		}
	}

	return best, found
}

// CheckUpdates maps installed slugs to the newest version available for their platform.
// Only strictly newer versions are reported; slugs missing from the library are skipped.
func CheckUpdates(lib product.Library, installed product.InstalledState) map[string]string {
	result := make(map[string]string)

	for slug, info := range installed {
		p, err := lib.Find(slug)
		if err != nil {
			continue
		}

		latest, ok := Latest(p.Versions, info.Platform)
		if !ok {
			continue
		}

		if Compare(latest.Version, info.Version) > 0 {
			result[slug] = latest.Version
		}
	}

	return result
}
