// Package preflight provides readiness checks for the filesystem paths and
// external binaries a conversion run depends on.
//
// These checks run in two contexts:
//   - The convert command runs them before opening a recording, so a doomed
//     run fails in seconds instead of after minutes of frame processing.
//   - The CLI "refract status" command uses individual check functions to
//     display environment health.
package preflight
