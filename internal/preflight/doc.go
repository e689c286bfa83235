// Package preflight provides readiness checks for the filesystem paths and
// external binaries segcheck depends on.
//
// These checks run in two contexts:
//   - The daemon runtime calls RunAll before opening the segment store and
//     logs every failed check as a warning.
//   - The CLI "segcheck doctor" command renders the same results, plus a
//     reachability probe of a running server (CheckServer).
package preflight
