// Package orchestrator turns a flat list of capability requests into a
// sequence of platform operations and reports one aggregated result.
//
// # Overview
//
// The platform can only process permissions in small batches: one dialog per
// group of related permissions, one settings screen per special permission,
// and background permissions only after their foreground counterpart. An
// [Engine] hides this behind a single call:
//
//	engine := orchestrator.New(platform.Permissions, platform.NewTimeline())
//	_, err := engine.Orchestrate(caps, orchestrator.Callbacks{
//	    Finish: func(granted, denied []capability.Capability) { ... },
//	    Anomaly: func() { ... },
//	})
//
// # Pipeline
//
// [Partition] computes the ordered batch plan. A [Session] walks the plan one
// batch at a time: before each batch it drops members that are already
// granted, skips background batches whose foreground dependencies are all
// denied, issues the batch through a request channel and waits for the
// platform to answer. Once the plan is exhausted, every requested capability
// is classified as granted or denied from fresh platform state.
//
// # Threading
//
// An Engine and its sessions live on one [Timeline]. Platform events must be
// delivered on that timeline (see [Engine.DeliverDialogResult] and
// [Engine.DeliverSettingsReturn]); delays are scheduled on it and never block
// it. The token allocator and the attempted-name set are the only state
// shared between engines.
package orchestrator
