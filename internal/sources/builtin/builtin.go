// Package builtin holds the providers bundled with the binary. Each is
// expressed purely as scraper selector tables and request hooks.
package builtin

import (
	"fmt"

	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/sources/scraper"
)

// Provider is a bundled source definition.
type Provider struct {
	// PkgName is the catalog package name, prefixed with "builtin.".
	PkgName string
	Config  func() scraper.Config
}

// Providers returns the bundled provider definitions.
func Providers() []Provider {
	return []Provider{
		{PkgName: "builtin.novelhall", Config: NovelHall},
		{PkgName: "builtin.readlightnovel", Config: ReadLightNovel},
	}
}

// Load builds every bundled provider with client.
func Load(client driven.HTTPClient) (map[string]driven.Source, error) {
	out := make(map[string]driven.Source, len(Providers()))
	for _, p := range Providers() {
		src, err := scraper.New(p.Config(), client)
		if err != nil {
			return nil, fmt.Errorf("bundled %s: %w", p.PkgName, err)
		}
		out[p.PkgName] = src
	}
	return out, nil
}
