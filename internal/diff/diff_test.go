package diff

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/fetch"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/model"
)

func remoteState(zones ...*fetch.ZoneState) *fetch.State {
	state := &fetch.State{Zones: make(map[string]*fetch.ZoneState)}
	for _, zs := range zones {
		state.Zones[zs.Name] = zs
	}
	return state
}

func cnameSpec(zone, name, value string) model.RecordSpec {
	return model.RecordSpec{
		FriendlyName: name,
		ZoneName:     zone,
		Name:         model.NormalizeName(name, zone),
		Type:         "CNAME",
		Value:        value,
	}
}

func TestCompute_MissingZoneCreatesEverything(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	specs := []model.RecordSpec{cnameSpec("example.com", "www", "target.example.com")}
	state := remoteState(&fetch.ZoneState{Name: "example.com"})

	plan := Compute(zones, specs, state, Options{})
	if len(plan.Zones) != 1 {
		t.Fatalf("expected 1 zone plan, got %d", len(plan.Zones))
	}
	zp := plan.Zones[0]
	if !zp.CreateZone {
		t.Error("expected zone create")
	}
	if len(zp.Creates) != 1 || zp.Creates[0].Spec.Name != "www.example.com" {
		t.Fatalf("expected 1 record create for www.example.com, got %+v", zp.Creates)
	}
	if len(zp.Updates) != 0 || len(zp.Deletes) != 0 {
		t.Errorf("expected no updates or deletes, got %d/%d", len(zp.Updates), len(zp.Deletes))
	}
}

func TestCompute_InSyncIsEmpty(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	specs := []model.RecordSpec{cnameSpec("example.com", "www", "target.example.com")}
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			{ID: "r1", ZoneName: "example.com", Name: "www.example.com", Type: "CNAME", Value: "target.example.com"},
		},
	})

	plan := Compute(zones, specs, state, Options{})
	if !plan.Empty() {
		t.Errorf("expected empty plan, got %s", Format(plan))
	}
}

func TestCompute_ValueChangeIsUpdate(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	specs := []model.RecordSpec{cnameSpec("example.com", "www", "new.example.com")}
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			{ID: "r1", ZoneName: "example.com", Name: "www.example.com", Type: "CNAME", Value: "old.example.com"},
		},
	})

	plan := Compute(zones, specs, state, Options{})
	zp := plan.Zones[0]
	if len(zp.Updates) != 1 {
		t.Fatalf("expected 1 update, got %+v", zp)
	}
	if zp.Updates[0].Remote.ID != "r1" {
		t.Errorf("update must target the matched remote record, got %q", zp.Updates[0].Remote.ID)
	}
	if len(zp.Creates) != 0 || len(zp.Deletes) != 0 {
		t.Errorf("expected only an update, got creates=%d deletes=%d", len(zp.Creates), len(zp.Deletes))
	}
}

func TestCompute_UnsetOptionalFieldsAreNotCompared(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	spec := cnameSpec("example.com", "www", "target.example.com")
	// Desired leaves ttl and proxied unset; remote has concrete values.
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			{ID: "r1", ZoneName: "example.com", Name: "www.example.com", Type: "CNAME",
				Value: "target.example.com", TTL: model.IntPtr(3600), Proxied: model.BoolPtr(true)},
		},
	})

	plan := Compute(zones, []model.RecordSpec{spec}, state, Options{})
	if !plan.Empty() {
		t.Errorf("unset optional fields must not trigger updates, got %s", Format(plan))
	}

	spec.TTL = model.IntPtr(300)
	plan = Compute(zones, []model.RecordSpec{spec}, state, Options{})
	if len(plan.Zones[0].Updates) != 1 {
		t.Errorf("explicit ttl differing from remote must trigger an update")
	}
}

func TestCompute_OrphanGatedByDeletePolicy(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			{ID: "r9", ZoneName: "example.com", Name: "example.com", Type: "TXT", Value: "v=spf1 -all"},
		},
	})

	plan := Compute(zones, nil, state, Options{})
	zp := plan.Zones[0]
	if len(zp.Deletes) != 0 {
		t.Errorf("deletes disabled: expected no delete operations, got %d", len(zp.Deletes))
	}
	if len(zp.Warnings) != 1 {
		t.Errorf("expected 1 warning for the orphaned record, got %d", len(zp.Warnings))
	}

	plan = Compute(zones, nil, state, Options{AllowDeletes: true})
	zp = plan.Zones[0]
	if len(zp.Deletes) != 1 || zp.Deletes[0].Remote.ID != "r9" {
		t.Fatalf("deletes enabled: expected delete of r9, got %+v", zp.Deletes)
	}
}

func TestCompute_UnmanagedZonesNeverTouched(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	state := remoteState(
		&fetch.ZoneState{Name: "example.com", ID: "z1", Present: true},
	)
	// The provider also hosts other.org, but it is not in the desired set and
	// the fetcher never even lists it.

	plan := Compute(zones, nil, state, Options{AllowDeletes: true})
	for _, zp := range plan.Zones {
		if zp.Zone != "example.com" {
			t.Errorf("plan contains operation for unmanaged zone %q", zp.Zone)
		}
	}
}

func TestCompute_TieBreakPrefersClosestThenDeclarationOrder(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	ttl := model.IntPtr(300)
	specs := []model.RecordSpec{
		{FriendlyName: "a1", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "203.0.113.1", TTL: ttl},
		{FriendlyName: "a2", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "203.0.113.2", TTL: ttl},
	}
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			// Same name/type, neither value matches a spec exactly. The
			// first-declared spec claims the closer record (matching ttl).
			{ID: "r1", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "198.51.100.1", TTL: model.IntPtr(300)},
			{ID: "r2", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "198.51.100.2", TTL: model.IntPtr(60)},
		},
	})

	plan := Compute(zones, specs, state, Options{})
	zp := plan.Zones[0]
	if len(zp.Updates) != 2 {
		t.Fatalf("expected 2 updates, got creates=%d updates=%d", len(zp.Creates), len(zp.Updates))
	}
	if zp.Updates[0].Spec.FriendlyName != "a1" || zp.Updates[0].Remote.ID != "r1" {
		t.Errorf("first-declared spec should claim the closest record: got %s -> %s",
			zp.Updates[0].Spec.FriendlyName, zp.Updates[0].Remote.ID)
	}
	if zp.Updates[1].Spec.FriendlyName != "a2" || zp.Updates[1].Remote.ID != "r2" {
		t.Errorf("second spec should claim the remaining record: got %s -> %s",
			zp.Updates[1].Spec.FriendlyName, zp.Updates[1].Remote.ID)
	}
}

func TestCompute_ExactValueMatchBeatsCloseness(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}}
	specs := []model.RecordSpec{
		{FriendlyName: "a1", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "203.0.113.2"},
	}
	state := remoteState(&fetch.ZoneState{
		Name: "example.com", ID: "z1", Present: true,
		Records: []model.RemoteRecord{
			{ID: "r1", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "203.0.113.1"},
			{ID: "r2", ZoneName: "example.com", Name: "app.example.com", Type: "A", Value: "203.0.113.2"},
		},
	})

	plan := Compute(zones, specs, state, Options{AllowDeletes: true})
	zp := plan.Zones[0]
	if len(zp.Updates) != 0 {
		t.Errorf("exact value match must not update, got %+v", zp.Updates)
	}
	if len(zp.Deletes) != 1 || zp.Deletes[0].Remote.ID != "r1" {
		t.Errorf("the non-matching record should be the delete candidate, got %+v", zp.Deletes)
	}
}

func TestCompute_FetchErrorExcludesZone(t *testing.T) {
	zones := []model.Zone{{Name: "bad.com"}, {Name: "good.com"}}
	specs := []model.RecordSpec{cnameSpec("good.com", "www", "target.good.com")}
	state := remoteState(
		&fetch.ZoneState{Name: "bad.com", ID: "z1", Present: true, Err: errors.New("listing failed")},
		&fetch.ZoneState{Name: "good.com", ID: "z2", Present: true},
	)

	plan := Compute(zones, specs, state, Options{})
	if plan.Zones[0].Zone != "bad.com" || plan.Zones[0].FetchErr == nil {
		t.Errorf("expected bad.com excluded with fetch error")
	}
	if !plan.Zones[0].Empty() {
		t.Errorf("fetch-errored zone must carry no operations")
	}
	if len(plan.Zones[1].Creates) != 1 {
		t.Errorf("good.com should still plan its create")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	zones := []model.Zone{{Name: "example.com"}, {Name: "example.org"}}
	specs := []model.RecordSpec{
		cnameSpec("example.com", "www", "target.example.com"),
		cnameSpec("example.org", "www", "target.example.org"),
		{FriendlyName: "mail", ZoneName: "example.com", Name: "example.com", Type: "MX", Value: "mx1.example.com", Priority: model.IntPtr(10)},
	}
	state := remoteState(
		&fetch.ZoneState{Name: "example.com", ID: "z1", Present: true, Records: []model.RemoteRecord{
			{ID: "r1", ZoneName: "example.com", Name: "www.example.com", Type: "CNAME", Value: "stale.example.com"},
			{ID: "r2", ZoneName: "example.com", Name: "example.com", Type: "TXT", Value: "v=spf1 -all"},
		}},
		&fetch.ZoneState{Name: "example.org"},
	)

	first := Compute(zones, specs, state, Options{AllowDeletes: true})
	second := Compute(zones, specs, state, Options{AllowDeletes: true})
	if !reflect.DeepEqual(first, second) {
		t.Error("diffing identical snapshots twice produced different plans")
	}
}
