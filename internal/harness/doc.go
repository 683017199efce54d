// Package harness replays comment wall scenarios against the scheduling
// core and checks the resulting trace.
//
// A scenario is a timeline of wall operations at logical millisecond
// offsets. The harness drives an engine.Wall synchronously with a manual
// clock, a resettable instance id source and a fixed per-rune label
// width, so a scenario produces the same trace on every run.
//
// # Scenario Format
//
//	name: bulk_load_loop
//	description: "Loaded message loops until deleted"
//	wall:
//	  surface_width: 800
//	  speed: 140
//	char_px: 10
//	steps:
//	  - at: 0
//	    load:
//	      - { id: A, content: hi }
//	  - at: 1000
//	    upsert: { id: B, content: yo }
//	  - at: 7000
//	    settle: true
//	  - at: 7000
//	    remove: A
//	assertions:
//	  - type: active_count
//	    count: 1
//	  - type: no_instances_for
//	    message: A
//
// Each step carries exactly one operation:
//
//   - load: replace the pool and force-spawn every message
//   - upsert: insert or replace one message
//   - remove: delete one message and its instances
//   - spawn: schedule a traversal (with force: true to start immediately)
//   - complete: signal completion of an instance id
//   - resize: change the surface width
//   - settle: complete, in end-time order, every instance that finishes
//     at or before the step time, as a renderer would
//
// # Assertion Types
//
//   - active_count: number of in-flight instances at the end
//   - lane_distinct: the listed messages' instances occupy distinct lanes
//   - no_instances_for: no in-flight instance references the message
//   - min_duration: every spawned instance respects the duration floor
//   - lane_spacing: same-lane instances never start inside the
//     previous instance's gap window
//
// # Golden Traces
//
// RunWithGolden compares the JSON trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
