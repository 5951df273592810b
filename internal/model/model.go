// Package model holds the in-memory representation of declared DNS zones
// and the records reconciled against a provider.
package model

import (
	"fmt"
	"strings"
)

// Zone is one declared apex domain and its grouped records, as loaded from
// a single source file.
type Zone struct {
	Name   string // apex domain, e.g. "example.com"
	File   string // source file the zone was declared in
	Groups []RecordGroup
}

// RecordGroup maps a user-chosen friendly name to an ordered sequence of
// record declarations. Several records (e.g. multiple MX entries) can share
// one friendly name.
type RecordGroup struct {
	Name    string
	Records []RecordSpec
}

// RecordSpec is a single desired DNS record. TTL, Proxied and Priority are
// optional; nil means "not specified, provider default applies" and is never
// coerced to a zero value.
type RecordSpec struct {
	FriendlyName string
	ZoneName     string
	Name         string // absolute lowercase FQDN after normalization
	Type         string // "A", "CNAME", "MX", ...
	Value        string
	TTL          *int
	Proxied      *bool
	Priority     *int
}

// Key is the reconciliation identity of a desired record. The DNS name alone
// is not unique across record types, so the friendly name disambiguates.
type Key struct {
	Zone         string
	Type         string
	FriendlyName string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Zone, k.Type, k.FriendlyName)
}

// Key returns the composite reconciliation key for the spec.
func (s RecordSpec) Key() Key {
	return Key{Zone: s.ZoneName, Type: s.Type, FriendlyName: s.FriendlyName}
}

// RemoteRecord is a record as currently deployed at the provider, annotated
// with the provider-assigned identifier.
type RemoteRecord struct {
	ID       string
	ZoneName string
	Name     string
	Type     string
	Value    string
	TTL      *int
	Proxied  *bool
	Priority *int
}

// NormalizeName resolves a declared record name against its zone apex into
// an absolute lowercase FQDN without a trailing dot. "@" and the empty
// string mean the apex itself; names already ending in the apex are kept.
func NormalizeName(name, zone string) string {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	switch {
	case name == "" || name == "@":
		return zone
	case name == zone || strings.HasSuffix(name, "."+zone):
		return name
	default:
		return name + "." + zone
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
