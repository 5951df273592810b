package source

import (
	"fmt"
	"strings"

	miekgdns "github.com/miekg/dns"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/model"
)

// Flatten expands the loaded zones into a flat, ordered slice of RecordSpecs.
// Every spec carries its zone and friendly name; names are normalized to
// absolute lowercase FQDNs; record types are uppercased and checked against
// the known RR types. Optional fields stay nil when the source left them out.
//
// Uniqueness of the (zone, type, friendly name) reconciliation identity is
// enforced here, before any remote call: a friendly name declared twice in
// one zone, or the exact same record declared twice under one friendly name,
// is a ValidationError. Several records of the same type with distinct
// values under one friendly name (the multi-MX case) are legal.
func Flatten(zones []model.Zone) ([]model.RecordSpec, error) {
	var specs []model.RecordSpec
	type declKey struct {
		zone, friendly, typ, name, value string
	}
	groupSeen := make(map[string]map[string]bool) // zone → friendly name
	declSeen := make(map[declKey]bool)

	for _, zone := range zones {
		if groupSeen[zone.Name] == nil {
			groupSeen[zone.Name] = make(map[string]bool)
		}
		for _, group := range zone.Groups {
			if groupSeen[zone.Name][group.Name] {
				return nil, &ValidationError{
					Zone:         zone.Name,
					FriendlyName: group.Name,
					Reason:       "friendly name declared more than once",
				}
			}
			groupSeen[zone.Name][group.Name] = true

			if len(group.Records) == 0 {
				return nil, &ValidationError{
					Zone:         zone.Name,
					FriendlyName: group.Name,
					Reason:       "record group is empty",
				}
			}

			for _, rec := range group.Records {
				spec := rec
				spec.FriendlyName = group.Name
				spec.ZoneName = zone.Name

				if err := validateRequired(zone.Name, group.Name, spec); err != nil {
					return nil, err
				}

				spec.Type = strings.ToUpper(strings.TrimSpace(spec.Type))
				if _, known := miekgdns.StringToType[spec.Type]; !known {
					return nil, &ValidationError{
						Zone:         zone.Name,
						FriendlyName: group.Name,
						Reason:       fmt.Sprintf("unknown record type %q", rec.Type),
					}
				}
				spec.Name = model.NormalizeName(spec.Name, zone.Name)
				spec.Value = strings.TrimSpace(spec.Value)

				dk := declKey{zone.Name, group.Name, spec.Type, spec.Name, spec.Value}
				if declSeen[dk] {
					return nil, &ValidationError{
						Zone:         zone.Name,
						FriendlyName: group.Name,
						Reason:       fmt.Sprintf("duplicate record %s %s %q", spec.Type, spec.Name, spec.Value),
					}
				}
				declSeen[dk] = true

				specs = append(specs, spec)
			}
		}
	}
	return specs, nil
}

// validateRequired checks the fields a record cannot do without. Name is not
// among them: an absent name, like "@", resolves to the zone apex.
func validateRequired(zone, friendly string, spec model.RecordSpec) error {
	missing := ""
	switch {
	case strings.TrimSpace(spec.Type) == "":
		missing = "type"
	case strings.TrimSpace(spec.Value) == "":
		missing = "value"
	}
	if missing == "" {
		return nil
	}
	return &ValidationError{
		Zone:         zone,
		FriendlyName: friendly,
		Reason:       fmt.Sprintf("missing required field %q", missing),
	}
}
