// Package route precomputes and replays communication schedules for
// distributed arrays.
//
// A Route is constructed empty over a transport, bound by exactly one
// precompute call (PrecomputeHalo, PrecomputeRedist, PrecomputeRedistV,
// PrecomputeRegrid, or PrecomputeDomList), then Run any number of times
// against buffers that share the bound layout.
//
// Precompute is symmetric: every PET runs the same overlap computation over
// the complete global layout description and derives both its send and its
// recv table locally. No messages are exchanged while binding, and every PET
// reaches the same verdict on invalid layouts.
//
// Run is collective. All PETs must call it with the same options, and a
// single Route must not be re-bound or destroyed while a Run is in flight.
// Routes sharing a transport may run concurrently, even when they are bound
// to the same layout: each route takes its message tags from its sequence
// number on the transport, so PETs must construct their routes in the same
// order (or number them with WithTag).
package route
