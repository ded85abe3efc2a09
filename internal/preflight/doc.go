// Package preflight validates the runtime environment before and during a
// run: directory access, the external transfer binary, and the free-space
// floor the storage budget guard enforces per subject.
package preflight
