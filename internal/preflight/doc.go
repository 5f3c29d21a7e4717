// Package preflight provides readiness checks for the filesystem paths that
// comictag reads from and writes to.
//
// These checks run in two contexts:
//   - The CLI "apply" command calls RunAll before a batch run and refuses to
//     start when any check fails.
//   - The CLI "doctor" command prints every check with its detail.
package preflight
