// Package harness runs route conformance scenarios.
//
// A scenario names two layouts from a CUE bundle and an operation that binds
// them. The harness binds one route per PET over an in-process mesh, fills
// every source cell with its global linear index plus one, runs the route,
// and compares each destination cell with a reference computed serially
// from the layouts (and weights, for regrids).
//
// # Scenario Format
//
//	name: halo_line
//	description: "Four PETs on a line exchange one halo cell"
//	layouts: ../layouts        # CUE file or package directory
//	operation: halo            # halo | redist | redistv | regrid | domlist
//	src: line
//	dst: ""                    # every operation but halo
//	weights: ""                # regrid only
//	kind: R8
//	options: async,pack_xp
//	rank_trans: [1, 0]         # redist only
//	runs: 2
//	assertions:
//	  - type: fill_exact
//	  - type: recv_regions
//	    pet: 1
//	    peer: 0
//	    regions: ["[3:3]"]
//
// # Assertion Types
//
//   - fill_exact: every PET bound and ran, and every destination cell holds
//     the reference value; cells the transfer must not touch keep the fill
//   - recv_regions: one PET's recv table entries from one peer
//   - idempotent: repeated runs left every destination unchanged
//   - unmapped_count: destination cells of one PET without a weight row
//   - error_code: a PET (or any PET) failed with the given route error code
//
// # Deterministic Testing
//
// Route ids come from testutil.SequentialIDs and sequence numbers from a
// testutil.DeterministicClock assigned in PET order after the run, so
// snapshots and store contents are identical across runs. Golden snapshots
// hold table sizes and traffic per PET, never ids or keys.
package harness
