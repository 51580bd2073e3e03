// Package footprint provides the building footprint providers used to mask
// damage classifications down to built-up cells. Three providers are
// supported: Google Open Buildings V3 (default), OpenStreetMap via Overpass,
// and the Global Building Atlas. All of them return a binary presence mask
// on the analysis grid.
package footprint

import (
	"fmt"
	"log/slog"

	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
)

// Sources holds one constructed source per configured provider, selectable
// by name at analysis time.
type Sources struct {
	byName  map[string]domain.FootprintSource
	defName string
}

// NewSources constructs every provider from cfg. The configured default is
// used for requests that do not name a provider.
func NewSources(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Sources {
	byName := map[string]domain.FootprintSource{
		config.ProviderOpenBuildings: NewOpenBuildingsSource(cfg.OpenBuildingsURL, cfg.FootprintTimeout, metrics, logger),
		config.ProviderOSM:           NewOSMSource(cfg.OverpassURL, cfg.FootprintTimeout, metrics, logger),
		config.ProviderGBA:           NewGBASource(cfg.GBAURL, cfg.FootprintTimeout, metrics, logger),
	}
	return &Sources{byName: byName, defName: cfg.FootprintProvider}
}

// Select returns the source for name, or the configured default when name
// is empty.
func (s *Sources) Select(name string) (domain.FootprintSource, error) {
	if name == "" {
		name = s.defName
	}
	src, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown footprint provider %q", name)
	}
	return src, nil
}
