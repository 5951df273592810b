// Package fetch reads the provider's current zone and record state for a run.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/model"
)

// FetchError reports a remote read that failed after retries were exhausted.
type FetchError struct {
	Zone string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching zone %q: %v", e.Zone, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ZoneState is the remote view of one managed zone.
type ZoneState struct {
	Name    string
	ID      string // empty when the zone does not exist remotely
	Present bool
	Records []model.RemoteRecord
	Err     error // non-nil when record listing failed; the zone is excluded from diffing
}

// State is the remote snapshot for all managed zones, fetched fresh each run.
type State struct {
	Zones map[string]*ZoneState
}

// DefaultBackoff is the retry schedule for throttled or transient provider
// reads: 5 attempts, 1s base, doubling, capped at 30s.
func DefaultBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2,
		Jitter:   0.1,
		Steps:    5,
		Cap:      30 * time.Second,
	}
}

// Fetcher queries the provider for current state.
type Fetcher struct {
	Provider    dns.Provider
	Log         logr.Logger
	Concurrency int          // bound on parallel per-zone record listings
	Backoff     wait.Backoff // zero value means DefaultBackoff
}

// Fetch lists the provider's zones once, then lists records for every
// managed zone concurrently. A record listing that fails after retries marks
// only that zone's state with a FetchError; other zones proceed.
func (f *Fetcher) Fetch(ctx context.Context, zoneNames []string) (*State, error) {
	var remoteZones []dns.Zone
	err := f.withRetry(ctx, func() error {
		var listErr error
		remoteZones, listErr = f.Provider.ListZones(ctx)
		return listErr
	})
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("listing zones: %w", err)}
	}

	zoneIDs := make(map[string]string, len(remoteZones))
	for _, z := range remoteZones {
		zoneIDs[dns.NormalizeRecordName(z.Name)] = z.ID
	}

	state := &State{Zones: make(map[string]*ZoneState, len(zoneNames))}
	for _, name := range zoneNames {
		zs := &ZoneState{Name: name}
		if id, ok := zoneIDs[name]; ok {
			zs.ID = id
			zs.Present = true
		}
		state.Zones[name] = zs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency())
	for _, zs := range state.Zones {
		if !zs.Present {
			continue
		}
		g.Go(func() error {
			records, err := f.fetchRecords(gctx, zs)
			if err != nil {
				f.Log.Error(err, "failed to list records", "zone", zs.Name)
				zs.Err = &FetchError{Zone: zs.Name, Err: err}
				return nil
			}
			zs.Records = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return state, nil
}

func (f *Fetcher) fetchRecords(ctx context.Context, zs *ZoneState) ([]model.RemoteRecord, error) {
	var raw []dns.Record
	err := f.withRetry(ctx, func() error {
		var listErr error
		raw, listErr = f.Provider.ListRecords(ctx, zs.ID)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	records := make([]model.RemoteRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, model.RemoteRecord{
			ID:       r.ID,
			ZoneName: zs.Name,
			Name:     dns.NormalizeRecordName(r.Name),
			Type:     r.Type,
			Value:    r.Value,
			TTL:      r.TTL,
			Proxied:  r.Proxied,
			Priority: r.Priority,
		})
	}
	// Stable order keeps diffing deterministic across runs.
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.ID < b.ID
	})
	f.Log.V(1).Info("fetched zone records", "zone", zs.Name, "count", len(records))
	return records, nil
}

// withRetry runs fn under the fetcher's backoff schedule, retrying only
// throttled and transient provider failures.
func (f *Fetcher) withRetry(ctx context.Context, fn func() error) error {
	backoff := f.Backoff
	if backoff.Steps == 0 {
		backoff = DefaultBackoff()
	}
	return retry.OnError(backoff, dns.IsRetryable, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	})
}

func (f *Fetcher) concurrency() int {
	if f.Concurrency > 0 {
		return f.Concurrency
	}
	return 4
}
