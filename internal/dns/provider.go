package dns

import "context"

// Zone is a DNS zone as known to the provider.
type Zone struct {
	ID   string // provider-assigned identifier
	Name string // apex domain, e.g. "example.com"
}

// Record is a DNS record on the provider side. TTL, Proxied and Priority are
// nil when the provider did not report them or the caller leaves them to the
// provider default.
type Record struct {
	ID       string
	Name     string // absolute FQDN without trailing dot
	Type     string
	Value    string
	TTL      *int
	Proxied  *bool
	Priority *int
}

// Provider is the capability surface DNS providers must implement.
// Implementations must be safe for concurrent use.
type Provider interface {
	ListZones(ctx context.Context) ([]Zone, error)
	ListRecords(ctx context.Context, zoneID string) ([]Record, error)
	CreateZone(ctx context.Context, name string) (Zone, error)
	CreateRecord(ctx context.Context, zoneID string, record Record) (Record, error)
	UpdateRecord(ctx context.Context, zoneID, recordID string, record Record) error
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
}
