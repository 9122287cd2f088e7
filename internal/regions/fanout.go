package regions

import (
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Scope is the part of the audit context the fan-out reads.
type Scope interface {
	Partition() string
	Regions() []string
	AuditSession() aws.Config
}

// Regional is an API client tagged with the region it is bound to.
type Regional[T any] struct {
	Region string
	Client T
}

// Clients builds one client per region the service supports in the scope's
// partition, narrowed to the scope's regions when any were requested.
// The result is sorted by region and may be empty.
func Clients[T any](lookup Lookup, service string, scope Scope, newClient func(aws.Config) T) ([]Regional[T], error) {
	regions, err := Resolve(lookup, service, scope.Partition(), scope.Regions())
	if err != nil {
		return nil, err
	}

	return ClientsIn(scope.AuditSession(), regions, newClient), nil
}

// ClientsIn builds one client per distinct region in regions, each from a
// copy of session. Empty names are skipped and the result is sorted by region.
func ClientsIn[T any](session aws.Config, regions []string, newClient func(aws.Config) T) []Regional[T] {
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		if r != "" {
			names = append(names, r)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	clients := make([]Regional[T], 0, len(names))
	for _, region := range names {
		cfg := session.Copy()
		cfg.Region = region
		clients = append(clients, Regional[T]{Region: region, Client: newClient(cfg)})
	}
	return clients
}

// Resolve returns the sorted set of regions to audit for service.
func Resolve(lookup Lookup, service, partition string, requested []string) ([]string, error) {
	supported, err := lookup.SupportedRegions(service, partition)
	if err != nil {
		return nil, err
	}

	var out []string
	if len(requested) == 0 {
		out = slices.Clone(supported)
	} else {
		for _, r := range supported {
			if slices.Contains(requested, r) {
				out = append(out, r)
			}
		}
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}
