// Package testing provides deterministic doubles for exercising the
// permission engine without a device.
//
// # Quick Start
//
// Drive an engine with a fake platform on a fake timeline:
//
//	func TestCameraFlow(t *testing.T) {
//	    p := permittest.NewFakePlatform()
//	    tl := permittest.NewFakeTimeline()
//	    engine := orchestrator.New(p, tl, orchestrator.WithTokens(token.New()))
//
//	    p.OnDialog = func(call permittest.DialogCall) {
//	        p.Grant(call.Names...)
//	        tl.Post(func() { engine.DeliverDialogResult(call.Token) })
//	    }
//
//	    engine.Orchestrate(caps, cb)
//	    if err := tl.Settle(100); err != nil {
//	        t.Fatal(err)
//	    }
//	}
//
// # Time
//
// [FakeTimeline] never runs work on its own. [FakeTimeline.Pump] runs what is
// due now, [FakeTimeline.Advance] moves the virtual clock and runs what
// becomes due on the way, and [FakeTimeline.Settle] advances until the queue
// is empty.
package testing
