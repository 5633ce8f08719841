// Package ir provides the index-space and layout types shared by every
// gridroute package.
//
// This package contains data definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// description of distributed arrays the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - All indices are 0-based. Callers using another origin translate at the
//     boundary with FromOrigin / ToOrigin.
//   - Ranges are inclusive on both ends ([Lo, Hi]); Hi < Lo means empty.
//   - Decompositions are complete and global: every PET holds the same
//     description, which is what makes symmetric precompute possible.
//   - Canonical JSON (hash.go) never contains floats; weight factors are
//     hashed through their IEEE-754 bit patterns.
package ir
