// Package smc reads and writes the .smc capture container format.
//
// One archive holds one (subject, performance, variant) capture unit as a
// hierarchical keyed store: top-level metadata, per-camera calibration,
// per-camera frame payloads (color JPEG, mask PNG), audio samples, 2D/3D
// facial keypoints, FLAME parametric-model frames, UV textures, and a scan
// mesh with per-camera scan masks.
//
// Access is lazy: payloads are read and decoded on demand. Every accessor
// distinguishes three outcomes: a structurally invalid request fails with a
// validation error, a valid request whose data was never captured reports
// ok=false, and a successful read returns the decoded value. Callers must
// treat ok=false as routine, not exceptional.
package smc
