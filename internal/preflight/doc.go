// Package preflight provides readiness checks for the directories and
// services reelgate depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll at startup and hands SpaceGuard to the scheduler,
//     which stops a drain before starting a record when the output volume is
//     nearly full.
//   - The CLI "reelgate check" command prints RunAll alongside dependency
//     status.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
