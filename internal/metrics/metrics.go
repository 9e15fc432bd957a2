package metrics

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// All scheduler metrics live here so main can register the views in one
// call. Exported through the opencensus prometheus exporter.

var (
	KeyEvent = tag.MustNewKey("event")
	KeyKind  = tag.MustNewKey("kind")

	MRunloopElapsedMs = stats.Int64("runloop_elapsed_ms", "time spent processing one run loop event", stats.UnitMilliseconds)
	MBeaconElapsedMs  = stats.Int64("beacon_elapsed_ms", "duration of one beacon check pass", stats.UnitMilliseconds)
	MEpochElapsedMs   = stats.Int64("epoch_elapsed_ms", "duration of one epoch schedule pass", stats.UnitMilliseconds)
	MEvictions        = stats.Int64("evictions", "nodes evicted for missed heartbeats", stats.UnitDimensionless)
	MPlacements       = stats.Int64("placements", "workload placements applied", stats.UnitDimensionless)
	MUnassignedDepth  = stats.Int64("unassigned_depth", "current depth of the unassigned workload queue", stats.UnitDimensionless)
	MBackends         = stats.Int64("registered_backends", "currently registered backends", stats.UnitDimensionless)
	MFrontends        = stats.Int64("registered_frontends", "currently registered frontends", stats.UnitDimensionless)
)

var elapsedDistribution = view.Distribution(1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500)

var allViews = []*view.View{
	{Name: "runloop_elapsed_ms", Measure: MRunloopElapsedMs, TagKeys: []tag.Key{KeyEvent}, Aggregation: elapsedDistribution},
	{Name: "beacon_elapsed_ms", Measure: MBeaconElapsedMs, Aggregation: elapsedDistribution},
	{Name: "epoch_elapsed_ms", Measure: MEpochElapsedMs, Aggregation: elapsedDistribution},
	{Name: "evictions_total", Measure: MEvictions, TagKeys: []tag.Key{KeyKind}, Aggregation: view.Count()},
	{Name: "placements_total", Measure: MPlacements, Aggregation: view.Count()},
	{Name: "unassigned_depth", Measure: MUnassignedDepth, Aggregation: view.LastValue()},
	{Name: "registered_backends", Measure: MBackends, Aggregation: view.LastValue()},
	{Name: "registered_frontends", Measure: MFrontends, Aggregation: view.LastValue()},
}

func RegisterViews() error {
	return view.Register(allViews...)
}

func RecordRunloopElapsed(ctx context.Context, event string, elapsedMs int64) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyEvent, event)}, MRunloopElapsedMs.M(elapsedMs))
}

func RecordEviction(ctx context.Context, kind string) {
	stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyKind, kind)}, MEvictions.M(1))
}

func RecordMembership(ctx context.Context, backends, frontends int) {
	stats.Record(ctx, MBackends.M(int64(backends)), MFrontends.M(int64(frontends)))
}
