package commands

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PrintConfig writes the effective configuration as YAML.
func (a *App) PrintConfig() error {
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	a.printf("# %s\n%s", a.dir, data)

	return nil
}
