// Package catalog loads and serves the site registry. A YAML catalog is
// compiled into the binary so DB-less deployments can answer site lookups
// out of the box; operators point SITE_CATALOG at their own file to
// replace it. The same catalog seeds the Postgres sites table on boot.
package catalog

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	_ "embed"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"bloomwatch/internal/types"
)

//go:embed sites.yaml
var bundledCatalog []byte

// siteNamespace scopes the deterministic site IDs: the same key always
// yields the same UUID, so catalog-served and DB-seeded sites agree.
const siteNamespace = "bloomwatch://sites/"

type catalogDocument struct {
	Sites []siteEntry `yaml:"sites"`
}

type siteEntry struct {
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Latitude    float64       `yaml:"latitude"`
	Longitude   float64       `yaml:"longitude"`
	Country     string        `yaml:"country"`
	Description string        `yaml:"description"`
	LandUse     *landUseEntry `yaml:"land_use"`
	Anchor      *anchorEntry  `yaml:"density_anchor"`
}

type landUseEntry struct {
	Agricultural float64 `yaml:"agricultural_pct"`
	Urban        float64 `yaml:"urban_pct"`
	Industrial   float64 `yaml:"industrial_pct"`
	Forest       float64 `yaml:"forest_pct"`
	Water        float64 `yaml:"water_pct"`
	Wetland      float64 `yaml:"wetland_pct"`
}

type anchorEntry struct {
	Cells    float64 `yaml:"density_cells_per_ml"`
	Severity string  `yaml:"severity"`
	Source   string  `yaml:"source"`
}

// Catalog is an immutable, read-only view of the site registry.
type Catalog struct {
	sites []types.Site
	byKey map[string]int
}

// Load parses the catalog at path, or the bundled catalog when path is
// empty. Validation failures abort the boot: a bad registry should never
// serve traffic.
func Load(path string) (*Catalog, error) {
	raw := bundledCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading site catalog %s: %w", path, err)
		}
		raw = data
	}

	var doc catalogDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing site catalog: %w", err)
	}
	if len(doc.Sites) == 0 {
		return nil, fmt.Errorf("site catalog contains no sites")
	}

	cat := &Catalog{
		sites: make([]types.Site, 0, len(doc.Sites)),
		byKey: make(map[string]int, len(doc.Sites)),
	}
	for i, entry := range doc.Sites {
		site, err := entry.toSite()
		if err != nil {
			return nil, fmt.Errorf("site catalog entry %d: %w", i, err)
		}
		if _, dup := cat.byKey[site.Key]; dup {
			return nil, fmt.Errorf("site catalog entry %d: duplicate key %q", i, site.Key)
		}
		cat.byKey[site.Key] = len(cat.sites)
		cat.sites = append(cat.sites, site)
	}

	sort.Slice(cat.sites, func(i, j int) bool { return cat.sites[i].Key < cat.sites[j].Key })
	for i := range cat.sites {
		cat.byKey[cat.sites[i].Key] = i
	}
	return cat, nil
}

func (e siteEntry) toSite() (types.Site, error) {
	key := NormalizeKey(e.Key)
	if key == "" {
		return types.Site{}, fmt.Errorf("missing key")
	}
	if strings.TrimSpace(e.Name) == "" {
		return types.Site{}, fmt.Errorf("site %q: missing name", key)
	}
	if e.Latitude < -90 || e.Latitude > 90 {
		return types.Site{}, fmt.Errorf("site %q: latitude %v out of range", key, e.Latitude)
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		return types.Site{}, fmt.Errorf("site %q: longitude %v out of range", key, e.Longitude)
	}

	site := types.Site{
		ID:          SiteID(key),
		Key:         key,
		Name:        strings.TrimSpace(e.Name),
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Country:     strings.TrimSpace(e.Country),
		Description: strings.TrimSpace(e.Description),
		Status:      types.SiteStatusActive,
	}

	if e.LandUse != nil {
		site.Land = &types.LandCover{
			Agricultural: e.LandUse.Agricultural,
			Urban:        e.LandUse.Urban,
			Forest:       e.LandUse.Forest,
			Water:        e.LandUse.Water,
			Wetland:      e.LandUse.Wetland,
			Industrial:   e.LandUse.Industrial,
			Source:       "catalog",
		}
	}
	if e.Anchor != nil {
		sev := types.Severity(strings.ToLower(strings.TrimSpace(e.Anchor.Severity)))
		switch sev {
		case types.SeverityLow, types.SeverityModerate, types.SeverityHigh, types.SeverityVeryHigh:
		default:
			return types.Site{}, fmt.Errorf("site %q: unknown anchor severity %q", key, e.Anchor.Severity)
		}
		site.Anchor = &types.DensityAnchor{
			Cells:    e.Anchor.Cells,
			Severity: sev,
			Source:   strings.TrimSpace(e.Anchor.Source),
		}
	}
	return site, nil
}

// SiteID derives the stable UUID for a site key.
func SiteID(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(siteNamespace+NormalizeKey(key)))
}

// NormalizeKey lowercases and trims a site key for lookup.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Sites returns all catalog sites ordered by key. The slice is a copy.
func (c *Catalog) Sites() []types.Site {
	out := make([]types.Site, len(c.sites))
	copy(out, c.sites)
	return out
}

// Len returns the number of sites in the catalog.
func (c *Catalog) Len() int {
	return len(c.sites)
}

// ByKey looks up a site by its normalized key.
func (c *Catalog) ByKey(key string) (*types.Site, bool) {
	idx, ok := c.byKey[NormalizeKey(key)]
	if !ok {
		return nil, false
	}
	site := c.sites[idx]
	return &site, true
}

// Nearest returns the catalog site closest to the given coordinates and
// its distance in euclidean degrees. There is no distance cutoff: callers
// that need one apply their own threshold.
func (c *Catalog) Nearest(lat, lon float64) (*types.Site, float64) {
	if len(c.sites) == 0 {
		return nil, 0
	}
	bestIdx := 0
	bestDist := math.Inf(1)
	for i := range c.sites {
		dLat := c.sites[i].Latitude - lat
		dLon := c.sites[i].Longitude - lon
		dist := math.Sqrt(dLat*dLat + dLon*dLon)
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}
	site := c.sites[bestIdx]
	return &site, bestDist
}
