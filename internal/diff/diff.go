// Package diff computes the operations that make remote DNS state match the
// declared desired state. Computation is pure: the same desired and remote
// snapshots always produce the same plan.
package diff

import (
	"fmt"
	"sort"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/fetch"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/model"
)

// Kind identifies an operation type.
type Kind string

const (
	KindCreateZone   Kind = "create-zone"
	KindCreateRecord Kind = "create"
	KindUpdateRecord Kind = "update"
	KindDeleteRecord Kind = "delete"
)

// Operation is one change to apply against the provider.
type Operation struct {
	Kind   Kind
	Zone   string
	Spec   *model.RecordSpec   // set for create/update
	Remote *model.RemoteRecord // set for update/delete
}

// Key returns a human-readable identity for the operation, used in results
// and logs.
func (o Operation) Key() string {
	switch {
	case o.Kind == KindCreateZone:
		return o.Zone
	case o.Spec != nil:
		return o.Spec.Key().String()
	case o.Remote != nil:
		return fmt.Sprintf("%s/%s/%s", o.Zone, o.Remote.Type, o.Remote.Name)
	default:
		return o.Zone
	}
}

// ZonePlan holds the ordered operations for one managed zone. Within a zone,
// creates apply before updates, updates before deletes.
type ZonePlan struct {
	Zone       string
	CreateZone bool
	ZoneID     string // provider ID when the zone already exists
	Creates    []Operation
	Updates    []Operation
	Deletes    []Operation
	Warnings   []string
	FetchErr   error // when set, the zone was excluded from diffing this run
}

// Empty reports whether the zone plan contains no operations.
func (zp *ZonePlan) Empty() bool {
	return !zp.CreateZone && len(zp.Creates) == 0 && len(zp.Updates) == 0 && len(zp.Deletes) == 0
}

// Plan is the full operation set for a run, one entry per managed zone,
// ordered by zone name.
type Plan struct {
	Zones []*ZonePlan
}

// Empty reports whether the plan contains no operations at all.
func (p *Plan) Empty() bool {
	for _, zp := range p.Zones {
		if !zp.Empty() {
			return false
		}
	}
	return true
}

// Options control plan computation.
type Options struct {
	// AllowDeletes enables delete operations for remote records in managed
	// zones that no desired spec accounts for. When false such records only
	// produce warnings.
	AllowDeletes bool
}

// Compute builds the plan for the given desired zones and specs against the
// fetched remote state. Zones absent from the desired set are never touched;
// remote zones missing a desired counterpart are never deleted.
func Compute(zones []model.Zone, specs []model.RecordSpec, state *fetch.State, opts Options) *Plan {
	specsByZone := make(map[string][]model.RecordSpec)
	for _, s := range specs {
		specsByZone[s.ZoneName] = append(specsByZone[s.ZoneName], s)
	}

	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	sort.Strings(names)

	plan := &Plan{}
	for _, name := range names {
		zp := &ZonePlan{Zone: name}
		plan.Zones = append(plan.Zones, zp)

		zs := state.Zones[name]
		desired := specsByZone[name]

		switch {
		case zs == nil || !zs.Present:
			// Everything declared for a missing zone is a create.
			zp.CreateZone = true
			for i := range desired {
				zp.Creates = append(zp.Creates, Operation{Kind: KindCreateRecord, Zone: name, Spec: &desired[i]})
			}
		case zs.Err != nil:
			zp.FetchErr = zs.Err
		default:
			zp.ZoneID = zs.ID
			diffZone(zp, desired, zs.Records, opts)
		}
	}
	return plan
}

// diffZone matches desired specs against remote records and fills in the
// zone plan. Matching runs in two passes: exact (name, type, value) joins
// first, then closest (name, type) matches minimizing field differences.
// Desired specs claim remote records in declaration order, so value
// collisions resolve to the first-declared spec.
func diffZone(zp *ZonePlan, desired []model.RecordSpec, remote []model.RemoteRecord, opts Options) {
	claimed := make([]bool, len(remote))
	matched := make([]int, len(desired))
	for i := range matched {
		matched[i] = -1
	}

	for si := range desired {
		s := &desired[si]
		for ri := range remote {
			r := &remote[ri]
			if claimed[ri] || r.Name != s.Name || r.Type != s.Type || r.Value != s.Value {
				continue
			}
			claimed[ri] = true
			matched[si] = ri
			break
		}
	}

	for si := range desired {
		if matched[si] >= 0 {
			continue
		}
		s := &desired[si]
		best, bestScore := -1, -1
		for ri := range remote {
			r := &remote[ri]
			if claimed[ri] || r.Name != s.Name || r.Type != s.Type {
				continue
			}
			score := fieldDiffs(s, r)
			if best < 0 || score < bestScore {
				best, bestScore = ri, score
			}
		}
		if best >= 0 {
			claimed[best] = true
			matched[si] = best
		}
	}

	for si := range desired {
		s := &desired[si]
		ri := matched[si]
		if ri < 0 {
			zp.Creates = append(zp.Creates, Operation{Kind: KindCreateRecord, Zone: zp.Zone, Spec: s})
			continue
		}
		r := &remote[ri]
		if fieldDiffs(s, r) > 0 {
			zp.Updates = append(zp.Updates, Operation{Kind: KindUpdateRecord, Zone: zp.Zone, Spec: s, Remote: r})
		}
	}

	for ri := range remote {
		if claimed[ri] {
			continue
		}
		r := &remote[ri]
		if opts.AllowDeletes {
			zp.Deletes = append(zp.Deletes, Operation{Kind: KindDeleteRecord, Zone: zp.Zone, Remote: r})
		} else {
			zp.Warnings = append(zp.Warnings, fmt.Sprintf(
				"remote record %s %s %q has no desired counterpart; re-run with deletes enabled to remove it",
				r.Type, r.Name, r.Value))
		}
	}
}

// fieldDiffs counts the mutable fields where the desired spec and the remote
// record disagree. Optional fields left unset in the spec mean the provider
// default applies and are not compared.
func fieldDiffs(s *model.RecordSpec, r *model.RemoteRecord) int {
	n := 0
	if s.Value != r.Value {
		n++
	}
	if s.TTL != nil && (r.TTL == nil || *r.TTL != *s.TTL) {
		n++
	}
	if s.Proxied != nil && (r.Proxied == nil || *r.Proxied != *s.Proxied) {
		n++
	}
	if s.Priority != nil && (r.Priority == nil || *r.Priority != *s.Priority) {
		n++
	}
	return n
}
