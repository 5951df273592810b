// Package apply executes a computed plan against a DNS provider.
package apply

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/diff"
	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/dns"
)

// Outcome is the result of one applied operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result reports the outcome of a single operation. Failures carry the
// underlying cause; skips carry the reason the operation was never issued.
type Result struct {
	Op      diff.Operation
	Outcome Outcome
	Err     error
}

// Status summarizes a whole run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial failure"
	StatusTotalFailure   Status = "total failure"
)

// Report collects per-operation results. Safe for concurrent appends.
type Report struct {
	mu      sync.Mutex
	results []Result
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns the collected per-operation results.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

// Failed returns the number of operations that failed or were skipped.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results() {
		if res.Outcome != OutcomeSuccess {
			n++
		}
	}
	return n
}

// Status classifies the run: success when every operation succeeded,
// total failure when none did, partial failure otherwise. An empty run is a
// success.
func (r *Report) Status() Status {
	results := r.Results()
	if len(results) == 0 {
		return StatusSuccess
	}
	succeeded := 0
	for _, res := range results {
		if res.Outcome == OutcomeSuccess {
			succeeded++
		}
	}
	switch succeeded {
	case len(results):
		return StatusSuccess
	case 0:
		return StatusTotalFailure
	default:
		return StatusPartialFailure
	}
}

// Applier executes plans. Independent zones run concurrently; record
// operations share one bounded worker pool across zones. There is no
// automatic rollback and no write-path retry: a failed operation is reported
// and its siblings proceed.
type Applier struct {
	Provider    dns.Provider
	Log         logr.Logger
	Concurrency int // bound on parallel record operations, default 4
}

// Apply runs every operation in the plan and returns the collected results.
// Zone creation completes before any record operation for that zone; within
// a zone, creates run before updates, updates before deletes. On context
// cancellation in-flight operations finish, no new ones start, and the
// remaining operations are reported as skipped.
func (a *Applier) Apply(ctx context.Context, plan *diff.Plan) *Report {
	report := &Report{}
	sem := make(chan struct{}, a.concurrency())

	var wg sync.WaitGroup
	for _, zp := range plan.Zones {
		if zp.FetchErr != nil || zp.Empty() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.applyZone(ctx, zp, sem, report)
		}()
	}
	wg.Wait()
	return report
}

func (a *Applier) applyZone(ctx context.Context, zp *diff.ZonePlan, sem chan struct{}, report *Report) {
	zoneID := zp.ZoneID

	if zp.CreateZone {
		op := diff.Operation{Kind: diff.KindCreateZone, Zone: zp.Zone}
		if err := ctx.Err(); err != nil {
			report.add(Result{Op: op, Outcome: OutcomeSkipped, Err: err})
			a.skipAll(zp, report, err)
			return
		}
		zone, err := a.Provider.CreateZone(ctx, zp.Zone)
		if err != nil {
			a.Log.Error(err, "zone creation failed", "zone", zp.Zone)
			report.add(Result{Op: op, Outcome: OutcomeFailed, Err: err})
			a.skipAll(zp, report, fmt.Errorf("zone %q was not created: %w", zp.Zone, err))
			return
		}
		a.Log.Info("created zone", "zone", zp.Zone, "id", zone.ID)
		report.add(Result{Op: op, Outcome: OutcomeSuccess})
		zoneID = zone.ID
	}

	// Record operations for the zone depend on the zone existing, so the
	// phases below only start once the zone ID is known.
	a.runPhase(ctx, zoneID, zp.Creates, sem, report)
	a.runPhase(ctx, zoneID, zp.Updates, sem, report)
	a.runPhase(ctx, zoneID, zp.Deletes, sem, report)
}

func (a *Applier) runPhase(ctx context.Context, zoneID string, ops []diff.Operation, sem chan struct{}, report *Report) {
	var wg sync.WaitGroup
	for i := range ops {
		op := ops[i]
		if err := ctx.Err(); err != nil {
			report.add(Result{Op: op, Outcome: OutcomeSkipped, Err: err})
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			a.runOp(ctx, zoneID, op, report)
		}()
	}
	wg.Wait()
}

func (a *Applier) runOp(ctx context.Context, zoneID string, op diff.Operation, report *Report) {
	// An operation may have waited on the pool past cancellation; it must
	// not reach the provider then.
	if err := ctx.Err(); err != nil {
		report.add(Result{Op: op, Outcome: OutcomeSkipped, Err: err})
		return
	}
	var err error
	switch op.Kind {
	case diff.KindCreateRecord:
		_, err = a.Provider.CreateRecord(ctx, zoneID, specToRecord(op))
	case diff.KindUpdateRecord:
		err = a.Provider.UpdateRecord(ctx, zoneID, op.Remote.ID, specToRecord(op))
	case diff.KindDeleteRecord:
		err = a.Provider.DeleteRecord(ctx, zoneID, op.Remote.ID)
	default:
		err = fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if err != nil {
		a.Log.Error(err, "operation failed", "kind", op.Kind, "record", op.Key())
		report.add(Result{Op: op, Outcome: OutcomeFailed, Err: err})
		return
	}
	a.Log.V(1).Info("operation applied", "kind", op.Kind, "record", op.Key())
	report.add(Result{Op: op, Outcome: OutcomeSuccess})
}

func (a *Applier) skipAll(zp *diff.ZonePlan, report *Report, cause error) {
	for _, ops := range [][]diff.Operation{zp.Creates, zp.Updates, zp.Deletes} {
		for _, op := range ops {
			report.add(Result{Op: op, Outcome: OutcomeSkipped, Err: cause})
		}
	}
}

func specToRecord(op diff.Operation) dns.Record {
	s := op.Spec
	return dns.Record{
		Name:     s.Name,
		Type:     s.Type,
		Value:    s.Value,
		TTL:      s.TTL,
		Proxied:  s.Proxied,
		Priority: s.Priority,
	}
}

func (a *Applier) concurrency() int {
	if a.Concurrency > 0 {
		return a.Concurrency
	}
	return 4
}
