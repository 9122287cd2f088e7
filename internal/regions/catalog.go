// Package regions answers which regions a service supports and builds one
// API client per audited region.
package regions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

//go:embed data/services.json
var defaultCatalog []byte

// Lookup reports the regions a service supports within a partition.
type Lookup interface {
	SupportedRegions(service, partition string) ([]string, error)
}

// Catalog is a read-only service/partition capability table.
type Catalog struct {
	Services map[string]Service `json:"services"`
}

// Service lists supported regions keyed by partition.
type Service struct {
	Regions map[string][]string `json:"regions"`
}

// DefaultCatalog returns the table embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a table from path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a JSON capability table.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse region catalog: %w", err)
	}
	if len(c.Services) == 0 {
		return nil, fmt.Errorf("region catalog has no services")
	}
	return &c, nil
}

// SupportedRegions returns the service's regions in partition. An unknown
// service is an error; an unknown partition yields no regions.
func (c *Catalog) SupportedRegions(service, partition string) ([]string, error) {
	svc, ok := c.Services[service]
	if !ok {
		return nil, fmt.Errorf("service %q not found in region catalog", service)
	}
	return slices.Clone(svc.Regions[partition]), nil
}

// ServiceNames lists the services in the table, sorted.
func (c *Catalog) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
