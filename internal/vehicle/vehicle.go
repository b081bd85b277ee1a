// Package vehicle is the catalogue of supported vehicle decoder sets.
package vehicle

import (
	"fmt"
	"sort"

	"carhack/internal/decoder"
	"carhack/internal/vehicle/nissan370z"
)

var models = map[string]func() []decoder.Registration{
	nissan370z.Name: nissan370z.Registrations,
}

// Names lists the supported vehicle models.
func Names() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Registry builds the decoder registry for the named vehicle.
func Registry(name string) (*decoder.Registry, error) {
	regs, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("unknown vehicle %q (supported: %v)", name, Names())
	}
	return decoder.NewRegistry(regs()...)
}
